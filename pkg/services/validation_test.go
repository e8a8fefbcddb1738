package services

import (
	"math"
	"testing"

	"farmadvisor-client/pkg/apierr"
	"farmadvisor-client/pkg/models"

	"github.com/stretchr/testify/assert"
)

func TestInputValidatorMessages(t *testing.T) {
	v := NewInputValidator(500)
	negative := -2.0

	tests := []struct {
		name    string
		mutate  func(*models.AnalysisInput)
		message string
	}{
		{"temperature", func(in *models.AnalysisInput) { in.Temperature = 60 }, "Temperature must be between 0 and 50°C"},
		{"moisture", func(in *models.AnalysisInput) { in.Moisture = -1 }, "Moisture must be between 0 and 100%"},
		{"negative quantity", func(in *models.AnalysisInput) { in.FertilizerQuantity = -5 }, "Fertilizer quantity must be greater than 0 and at most 500 kg"},
		{"quantity over max", func(in *models.AnalysisInput) { in.FertilizerQuantity = 501 }, "Fertilizer quantity must be greater than 0 and at most 500 kg"},
		{"potassium", func(in *models.AnalysisInput) { in.Potassium = &negative }, "Potassium must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := exampleInput()
			tt.mutate(&input)

			err := v.Validate(input)
			assert.True(t, apierr.Is(err, apierr.KindValidationFailed))
			assert.Equal(t, tt.message, apierr.UserMessage(err))
		})
	}
}

func TestInputValidatorDefaultsUpperBound(t *testing.T) {
	v := NewInputValidator(0)
	assert.Equal(t, DefaultMaxFertilizerQuantity, v.MaxQuantity())

	input := exampleInput()
	input.FertilizerQuantity = 1e9
	err := v.Validate(input)
	assert.True(t, apierr.Is(err, apierr.KindValidationFailed))
	assert.Equal(t, "Fertilizer quantity must be greater than 0 and at most 500 kg", apierr.UserMessage(err))

	input.FertilizerQuantity = 500
	assert.NoError(t, v.Validate(input))
}

func TestInputValidatorRejectsNonFiniteValues(t *testing.T) {
	v := NewInputValidator(500)
	nan := math.NaN()

	tests := []struct {
		name    string
		mutate  func(*models.AnalysisInput)
		message string
	}{
		{"infinite quantity", func(in *models.AnalysisInput) { in.FertilizerQuantity = math.Inf(1) }, "Fertilizer quantity must be greater than 0 and at most 500 kg"},
		{"nan quantity", func(in *models.AnalysisInput) { in.FertilizerQuantity = math.NaN() }, "Fertilizer quantity must be greater than 0 and at most 500 kg"},
		{"nan temperature", func(in *models.AnalysisInput) { in.Temperature = math.NaN() }, "Temperature must be between 0 and 50°C"},
		{"nan nitrogen", func(in *models.AnalysisInput) { in.Nitrogen = &nan }, "Nitrogen must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := exampleInput()
			tt.mutate(&input)

			err := v.Validate(input)
			assert.True(t, apierr.Is(err, apierr.KindValidationFailed))
			assert.Equal(t, tt.message, apierr.UserMessage(err))
		})
	}
}
