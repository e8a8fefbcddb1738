package models

// 分布系列のキー（グラフ描画面と1対1で対応）
const (
	SeriesByCrop           = "by_crop"
	SeriesByFertilizer     = "by_fertilizer"
	SeriesByCompatibility  = "by_compatibility"
	SeriesByQuantityStatus = "by_quantity_status"
)

// CategoryPoint 分布グラフの1項目
type CategoryPoint struct {
	Label   string  `json:"label"`
	Count   float64 `json:"count"`
	Percent float64 `json:"percent"` // 総分析件数に対する割合
}

// CategorySeries 分布グラフ1枚分の系列
type CategorySeries struct {
	Key    string          `json:"key"`
	Title  string          `json:"title"`
	Points []CategoryPoint `json:"points"`
}

// Total 系列内の件数合計
func (s CategorySeries) Total() float64 {
	var sum float64
	for _, p := range s.Points {
		sum += p.Count
	}
	return sum
}

// TimePoint 時系列グラフの1点。サービスが返さなかった値は nil
type TimePoint struct {
	Date      string   `json:"date"`
	Quantity  *float64 `json:"quantity,omitempty"`
	RiskScore *float64 `json:"risk_score,omitempty"`
	Score     *float64 `json:"score,omitempty"`
}

// Projection 分析統計をグラフ描画用に変換した結果
type Projection struct {
	Empty             bool             `json:"empty"`
	TotalAnalyses     int              `json:"total_analyses"`
	SuccessRate       float64          `json:"success_rate"`
	AverageEfficiency float64          `json:"average_efficiency"`
	Categories        []CategorySeries `json:"categories"`
	TimeSeries        []TimePoint      `json:"time_series"`
}
