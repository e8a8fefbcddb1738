package services

import (
	"errors"
	"fmt"
	"math"

	"farmadvisor-client/pkg/apierr"
	"farmadvisor-client/pkg/models"

	"github.com/go-playground/validator/v10"
)

// DefaultMaxFertilizerQuantity 上限が指定されない場合の施肥量の上限(kg)
const DefaultMaxFertilizerQuantity = 500.0

// InputValidator 分析入力の範囲チェック（送信前に行う唯一の業務ルール）
type InputValidator struct {
	validate    *validator.Validate
	maxQuantity float64
}

// NewInputValidator 施肥量の上限を指定してInputValidatorを作成
// 0以下の上限は DefaultMaxFertilizerQuantity に置き換えます。
func NewInputValidator(maxQuantity float64) *InputValidator {
	if maxQuantity <= 0 || math.IsNaN(maxQuantity) || math.IsInf(maxQuantity, 0) {
		maxQuantity = DefaultMaxFertilizerQuantity
	}
	return &InputValidator{
		validate:    validator.New(),
		maxQuantity: maxQuantity,
	}
}

// MaxQuantity 施肥量の上限
func (v *InputValidator) MaxQuantity() float64 {
	return v.maxQuantity
}

// Validate 範囲外の値があれば ValidationFailed を返す
func (v *InputValidator) Validate(input models.AnalysisInput) error {
	// NaN は範囲タグの比較をすり抜けるため先に弾く
	if field, ok := nonFiniteField(input); ok {
		return apierr.ValidationFailed(v.describe(field))
	}
	if err := v.validate.Struct(input); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return apierr.ValidationFailed(v.describe(fieldErrs[0].StructField()))
		}
		return apierr.ValidationFailed(fmt.Sprintf("Invalid input: %v", err))
	}
	if input.FertilizerQuantity > v.maxQuantity {
		return apierr.ValidationFailed(v.quantityMessage())
	}
	return nil
}

func nonFiniteField(input models.AnalysisInput) (string, bool) {
	fields := []struct {
		name  string
		value *float64
	}{
		{"Temperature", &input.Temperature},
		{"Moisture", &input.Moisture},
		{"FertilizerQuantity", &input.FertilizerQuantity},
		{"Nitrogen", input.Nitrogen},
		{"Potassium", input.Potassium},
		{"Phosphorous", input.Phosphorous},
	}
	for _, f := range fields {
		if f.value != nil && (math.IsNaN(*f.value) || math.IsInf(*f.value, 0)) {
			return f.name, true
		}
	}
	return "", false
}

func (v *InputValidator) describe(field string) string {
	switch field {
	case "Temperature":
		return "Temperature must be between 0 and 50°C"
	case "Moisture":
		return "Moisture must be between 0 and 100%"
	case "FertilizerQuantity":
		return v.quantityMessage()
	case "Nitrogen", "Potassium", "Phosphorous":
		return fmt.Sprintf("%s must not be negative", field)
	}
	return fmt.Sprintf("%s is invalid", field)
}

func (v *InputValidator) quantityMessage() string {
	return fmt.Sprintf("Fertilizer quantity must be greater than 0 and at most %g kg", v.maxQuantity)
}
