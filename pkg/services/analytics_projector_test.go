package services

import (
	"encoding/json"
	"testing"

	"farmadvisor-client/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeSummary(t *testing.T, raw string) *models.AnalyticsSummary {
	t.Helper()
	var summary models.AnalyticsSummary
	require.NoError(t, json.Unmarshal([]byte(raw), &summary))
	return &summary
}

func TestProjectAnalyticsEmpty(t *testing.T) {
	for name, summary := range map[string]*models.AnalyticsSummary{
		"nil":        nil,
		"zero total": decodeSummary(t, `{"total_analyses":0,"by_crop":{"Maize":0}}`),
	} {
		t.Run(name, func(t *testing.T) {
			p := ProjectAnalytics(summary)
			assert.True(t, p.Empty)
			assert.NotNil(t, p.Categories)
			assert.Empty(t, p.Categories)
			assert.NotNil(t, p.TimeSeries)
			assert.Empty(t, p.TimeSeries)
		})
	}
}

func TestProjectAnalyticsKeepsCategoryOrder(t *testing.T) {
	summary := decodeSummary(t, `{
		"total_analyses": 4,
		"success_rate": 75,
		"average_efficiency": 80.5,
		"by_crop": {"Wheat": 1, "Maize": 2, "Cotton": 1},
		"by_compatibility": {"Compatible": 3, "Incompatible": 1}
	}`)

	p := ProjectAnalytics(summary)
	require.False(t, p.Empty)
	assert.Equal(t, 4, p.TotalAnalyses)
	assert.Equal(t, 80.5, p.AverageEfficiency)
	require.Len(t, p.Categories, 4)

	crop := p.Categories[0]
	assert.Equal(t, models.SeriesByCrop, crop.Key)
	assert.Equal(t, []models.CategoryPoint{
		{Label: "Wheat", Count: 1, Percent: 25},
		{Label: "Maize", Count: 2, Percent: 50},
		{Label: "Cotton", Count: 1, Percent: 25},
	}, crop.Points)

	// 返されなかった分布は空の系列になる
	assert.Equal(t, models.SeriesByFertilizer, p.Categories[1].Key)
	assert.Empty(t, p.Categories[1].Points)
	assert.Equal(t, 75.0, p.Categories[2].Points[0].Percent)
	assert.Empty(t, p.Categories[3].Points)
}

func TestProjectAnalyticsTimeSeries(t *testing.T) {
	t.Run("shared prefix", func(t *testing.T) {
		summary := &models.AnalyticsSummary{
			TotalAnalyses: 3,
			TimeSeries: models.TimeSeries{
				Dates:      []string{"2024-03-01", "2024-03-02", "2024-03-03"},
				Quantities: []float64{30, 40},
				RiskScores: []float64{15, 20, 25},
			},
		}
		points := ProjectAnalytics(summary).TimeSeries
		require.Len(t, points, 2)
		assert.Equal(t, "2024-03-02", points[1].Date)
		assert.Equal(t, 40.0, *points[1].Quantity)
		assert.Equal(t, 20.0, *points[1].RiskScore)
		assert.Nil(t, points[1].Score)
	})

	t.Run("absent series do not shorten", func(t *testing.T) {
		summary := &models.AnalyticsSummary{
			TotalAnalyses: 2,
			TimeSeries: models.TimeSeries{
				Dates:  []string{"2024-03-01", "2024-03-02"},
				Scores: []float64{70, 90},
			},
		}
		points := ProjectAnalytics(summary).TimeSeries
		require.Len(t, points, 2)
		assert.Nil(t, points[0].Quantity)
		assert.Equal(t, 90.0, *points[1].Score)
	})

	t.Run("no dates", func(t *testing.T) {
		summary := &models.AnalyticsSummary{
			TotalAnalyses: 1,
			TimeSeries:    models.TimeSeries{Quantities: []float64{30}},
		}
		assert.Empty(t, ProjectAnalytics(summary).TimeSeries)
	})
}
