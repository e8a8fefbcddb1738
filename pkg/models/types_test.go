package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistributionPreservesKeyOrder(t *testing.T) {
	var d Distribution
	err := json.Unmarshal([]byte(`{"Wheat": 2, "Maize": 5, "Barley": 1}`), &d)
	require.NoError(t, err)

	require.Len(t, d, 3)
	assert.Equal(t, "Wheat", d[0].Label)
	assert.Equal(t, "Maize", d[1].Label)
	assert.Equal(t, "Barley", d[2].Label)
	assert.Equal(t, 8.0, d.Total())
}

func TestDistributionAcceptsListForm(t *testing.T) {
	var d Distribution
	err := json.Unmarshal([]byte(`[{"name": "Optimal", "value": 4}, {"label": "Excessive", "count": 1}]`), &d)
	require.NoError(t, err)

	assert.Equal(t, Distribution{{Label: "Optimal", Count: 4}, {Label: "Excessive", Count: 1}}, d)
}

func TestDistributionNullAndMissing(t *testing.T) {
	var summary AnalyticsSummary
	err := json.Unmarshal([]byte(`{"total_analyses": 3, "by_crop": null}`), &summary)
	require.NoError(t, err)

	assert.Nil(t, summary.ByCrop)
	assert.Nil(t, summary.ByFertilizer)
	assert.True(t, summary.HasData())
}

func TestDistributionRejectsScalar(t *testing.T) {
	var d Distribution
	assert.Error(t, json.Unmarshal([]byte(`42`), &d))
}

func TestDefaultAnalysisInputUsesFarmWeather(t *testing.T) {
	temp, humidity := 31.5, 62.0
	input := DefaultAnalysisInput(&FarmProfile{SoilType: "Clayey", Temperature: &temp, Humidity: &humidity})

	assert.Equal(t, 31.5, input.Temperature)
	assert.Equal(t, 62.0, input.Moisture)
	assert.Equal(t, "Clayey", input.SoilType)
	assert.Equal(t, "Maize", input.CropType)
	assert.Equal(t, "Urea", input.FertilizerName)
	assert.Equal(t, 30.0, input.FertilizerQuantity)
}

func TestAnalysisInputWireNames(t *testing.T) {
	body, err := json.Marshal(AnalysisInput{Temperature: 26, Moisture: 45, CropType: "Maize", FertilizerName: "Urea", FertilizerQuantity: 30})
	require.NoError(t, err)

	assert.Contains(t, string(body), `"Temparature":26`)
	assert.Contains(t, string(body), `"Fertilizer_Quantity":30`)
	assert.NotContains(t, string(body), "Nitrogen")
}

func TestParseConfigKind(t *testing.T) {
	kind, ok := ParseConfigKind("soil")
	assert.True(t, ok)
	assert.Equal(t, ConfigSoilTypes, kind)

	_, ok = ParseConfigKind("weather")
	assert.False(t, ok)
}

func TestUserDisplayName(t *testing.T) {
	var u *User
	assert.Equal(t, "Farmer", u.DisplayName())
	assert.Equal(t, "Asha", (&User{Name: "Asha"}).DisplayName())
}
