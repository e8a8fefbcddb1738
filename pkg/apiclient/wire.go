package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"farmadvisor-client/pkg/models"
)

// --- 応答の生データ構造 ---
// サービスの改版ごとにフィールド名が異なるため、既知の名前をすべて受け取り
// normalize* 関数で models の型に一度だけ変換します。

// wireResult 予測結果の生データ
type wireResult struct {
	Compatibility        string                 `json:"compatibility"`
	OverallCompatibility string                 `json:"overall_compatibility"`
	Reason               string                 `json:"reason"`
	CompatibilityReason  string                 `json:"compatibility_reason"`
	QuantityStatus       string                 `json:"quantity_status"`
	QuantityReason       string                 `json:"quantity_reason"`
	QuantityMessage      string                 `json:"quantity_message"`
	Recommendations      []string               `json:"recommendations"`
	Suggestions          []string               `json:"suggestions"`
	EfficiencyScore      *float64               `json:"efficiency_score"`
	OverallScore         *float64               `json:"overall_score"`
	RiskScore            *float64               `json:"risk_score"`
	TemperatureStatus    string                 `json:"temperature_status"`
	TemperatureRange     string                 `json:"temperature_range"`
	MoistureStatus       string                 `json:"moisture_status"`
	MoistureRange        string                 `json:"moisture_range"`
	SoilCompatibility    string                 `json:"soil_compatibility"`
	QuantityRange        string                 `json:"quantity_range"`
	FertilizerInfo       *models.FertilizerInfo `json:"fertilizer_info"`
}

// normalizePrediction 予測結果を正規化する。判定がない結果は不正な応答として扱う
func normalizePrediction(w *wireResult) (*models.PredictionResult, error) {
	if w == nil {
		return nil, malformed("prediction result", nil)
	}
	verdict := firstNonEmpty(w.Compatibility, w.OverallCompatibility)
	if verdict == "" {
		return nil, malformed("prediction result without compatibility verdict", nil)
	}

	result := &models.PredictionResult{
		Compatibility:  verdict,
		Reason:         firstNonEmpty(w.Reason, w.CompatibilityReason),
		QuantityStatus: w.QuantityStatus,
		QuantityReason: firstNonEmpty(w.QuantityReason, w.QuantityMessage),
		RiskScore:      w.RiskScore,
		Details: models.ResultDetails{
			TemperatureStatus: w.TemperatureStatus,
			TemperatureRange:  w.TemperatureRange,
			MoistureStatus:    w.MoistureStatus,
			MoistureRange:     w.MoistureRange,
			SoilCompatibility: w.SoilCompatibility,
			QuantityRange:     w.QuantityRange,
			Fertilizer:        w.FertilizerInfo,
		},
	}

	if result.Reason == "" {
		result.Reason = describeConditions(w)
	}
	if result.QuantityReason == "" && w.QuantityRange != "" {
		result.QuantityReason = "Recommended range: " + w.QuantityRange
	}

	result.EfficiencyScore = w.EfficiencyScore
	if result.EfficiencyScore == nil {
		result.EfficiencyScore = w.OverallScore
	}

	recs := w.Recommendations
	if len(recs) == 0 {
		recs = w.Suggestions
	}
	result.Recommendations = make([]string, 0, len(recs))
	for _, r := range recs {
		if r = strings.TrimSpace(r); r != "" {
			result.Recommendations = append(result.Recommendations, r)
		}
	}
	return result, nil
}

// describeConditions 理由が返されない旧形式向けに条件の要約を作る
func describeConditions(w *wireResult) string {
	var parts []string
	if w.TemperatureStatus != "" {
		parts = append(parts, fmt.Sprintf("Temperature %s", strings.ToLower(w.TemperatureStatus)))
	}
	if w.MoistureStatus != "" {
		parts = append(parts, fmt.Sprintf("moisture %s", strings.ToLower(w.MoistureStatus)))
	}
	if w.SoilCompatibility != "" {
		parts = append(parts, fmt.Sprintf("soil compatibility %s", strings.ToLower(w.SoilCompatibility)))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ", ")
}

// wireHistoryRecord 履歴1件の生データ（フラット形式と input_data/result 入れ子形式）
type wireHistoryRecord struct {
	ID                 string                `json:"id"`
	MongoID            string                `json:"_id"`
	CropType           string                `json:"crop_type"`
	Fertilizer         string                `json:"fertilizer"`
	FertilizerName     string                `json:"fertilizer_name"`
	Quantity           *float64              `json:"quantity"`
	FertilizerQuantity *float64              `json:"fertilizer_quantity"`
	Compatibility      string                `json:"compatibility"`
	Score              *float64              `json:"score"`
	Timestamp          *string               `json:"timestamp"`
	Input              *models.AnalysisInput `json:"input_data"`
	Result             *wireResult           `json:"result"`
}

func normalizeHistoryRecord(w wireHistoryRecord) models.HistoryRecord {
	rec := models.HistoryRecord{
		ID:            firstNonEmpty(w.ID, w.MongoID),
		CropType:      w.CropType,
		Fertilizer:    firstNonEmpty(w.Fertilizer, w.FertilizerName),
		Quantity:      w.Quantity,
		Compatibility: w.Compatibility,
		Score:         w.Score,
	}
	if rec.Quantity == nil {
		rec.Quantity = w.FertilizerQuantity
	}
	if w.Input != nil {
		if rec.CropType == "" {
			rec.CropType = w.Input.CropType
		}
		if rec.Fertilizer == "" {
			rec.Fertilizer = w.Input.FertilizerName
		}
		if rec.Quantity == nil {
			q := w.Input.FertilizerQuantity
			rec.Quantity = &q
		}
	}
	if w.Result != nil {
		if rec.Compatibility == "" {
			rec.Compatibility = firstNonEmpty(w.Result.Compatibility, w.Result.OverallCompatibility)
		}
		if rec.Score == nil {
			rec.Score = w.Result.EfficiencyScore
			if rec.Score == nil {
				rec.Score = w.Result.OverallScore
			}
		}
	}
	if w.Timestamp != nil {
		rec.Timestamp = parseTimestamp(*w.Timestamp)
	}
	return rec
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp ISO8601（タイムゾーンなしを含む）を解析。解析できなければ nil
func parseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// wireHistoryPage 履歴応答
type wireHistoryPage struct {
	History     []wireHistoryRecord `json:"history"`
	Records     []wireHistoryRecord `json:"records"`
	Page        int                 `json:"page"`
	CurrentPage int                 `json:"current_page"`
	TotalPages  int                 `json:"total_pages"`
	Limit       int                 `json:"limit"`
}

func normalizeHistoryPage(w wireHistoryPage, requestedPage, limit int) *models.HistoryPage {
	raw := w.History
	if raw == nil {
		raw = w.Records
	}
	page := &models.HistoryPage{
		Records:    make([]models.HistoryRecord, 0, len(raw)),
		Page:       w.Page,
		TotalPages: w.TotalPages,
		Limit:      w.Limit,
	}
	for _, r := range raw {
		page.Records = append(page.Records, normalizeHistoryRecord(r))
	}
	if page.Page <= 0 {
		page.Page = w.CurrentPage
	}
	if page.Page <= 0 {
		page.Page = requestedPage
	}
	if page.TotalPages <= 0 {
		// ページ情報を返さない改版では単一ページとして扱う
		page.TotalPages = 1
	}
	if page.TotalPages < page.Page {
		page.TotalPages = page.Page
	}
	if page.Limit <= 0 {
		page.Limit = limit
	}
	return page
}

// wireTimePoint 日付・施肥量・リスクスコアの三つ組
type wireTimePoint struct {
	Date      string   `json:"date"`
	Label     string   `json:"label"`
	Quantity  *float64 `json:"quantity"`
	RiskScore *float64 `json:"risk_score"`
	Score     *float64 `json:"score"`
}

// wireTimeSeries 並列配列形式と三つ組リスト形式の両方を受け付ける
type wireTimeSeries struct {
	models.TimeSeries
}

func (w *wireTimeSeries) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	if trimmed[0] == '[' {
		var points []wireTimePoint
		if err := json.Unmarshal(trimmed, &points); err != nil {
			return err
		}
		ts := models.TimeSeries{Dates: make([]string, 0, len(points))}
		// 位置で対応させるため、値が欠けた時点でその系列の追加を打ち切る
		var quantities, risks, scores []float64
		qOpen, rOpen, sOpen := true, true, true
		for _, p := range points {
			ts.Dates = append(ts.Dates, firstNonEmpty(p.Date, p.Label))
			quantities, qOpen = appendPositional(quantities, p.Quantity, qOpen)
			risks, rOpen = appendPositional(risks, p.RiskScore, rOpen)
			scores, sOpen = appendPositional(scores, p.Score, sOpen)
		}
		ts.Quantities, ts.RiskScores, ts.Scores = quantities, risks, scores
		w.TimeSeries = ts
		return nil
	}

	var arrays struct {
		Dates      []string  `json:"dates"`
		Labels     []string  `json:"labels"`
		Quantities []float64 `json:"quantities"`
		RiskScores []float64 `json:"risk_scores"`
		Scores     []float64 `json:"scores"`
	}
	if err := json.Unmarshal(trimmed, &arrays); err != nil {
		return err
	}
	w.TimeSeries = models.TimeSeries{
		Dates:      arrays.Dates,
		Quantities: arrays.Quantities,
		RiskScores: arrays.RiskScores,
		Scores:     arrays.Scores,
	}
	if w.TimeSeries.Dates == nil {
		w.TimeSeries.Dates = arrays.Labels
	}
	return nil
}

// wireAnalytics 分析統計の生データ
type wireAnalytics struct {
	TotalAnalyses              int                 `json:"total_analyses"`
	SuccessRate                *float64            `json:"success_rate"`
	CompatibilityRate          *float64            `json:"compatibility_rate"`
	AverageEfficiency          *float64            `json:"average_efficiency"`
	AverageScore               *float64            `json:"average_score"`
	ByCrop                     models.Distribution `json:"by_crop"`
	CropDistribution           models.Distribution `json:"crop_distribution"`
	ByFertilizer               models.Distribution `json:"by_fertilizer"`
	FertilizerDistribution     models.Distribution `json:"fertilizer_distribution"`
	ByCompatibility            models.Distribution `json:"by_compatibility"`
	CompatibilityDistribution  models.Distribution `json:"compatibility_distribution"`
	ByQuantityStatus           models.Distribution `json:"by_quantity_status"`
	QuantityStatusDistribution models.Distribution `json:"quantity_status_distribution"`
	TimeSeries                 wireTimeSeries      `json:"time_series"`
}

func normalizeAnalytics(w *wireAnalytics) *models.AnalyticsSummary {
	summary := &models.AnalyticsSummary{
		TotalAnalyses:    w.TotalAnalyses,
		ByCrop:           firstDistribution(w.ByCrop, w.CropDistribution),
		ByFertilizer:     firstDistribution(w.ByFertilizer, w.FertilizerDistribution),
		ByCompatibility:  firstDistribution(w.ByCompatibility, w.CompatibilityDistribution),
		ByQuantityStatus: firstDistribution(w.ByQuantityStatus, w.QuantityStatusDistribution),
		TimeSeries:       w.TimeSeries.TimeSeries,
	}
	if summary.TotalAnalyses < 0 {
		summary.TotalAnalyses = 0
	}
	if w.SuccessRate != nil {
		summary.SuccessRate = *w.SuccessRate
	} else if w.CompatibilityRate != nil {
		summary.SuccessRate = *w.CompatibilityRate
	}
	if w.AverageEfficiency != nil {
		summary.AverageEfficiency = *w.AverageEfficiency
	} else if w.AverageScore != nil {
		summary.AverageEfficiency = *w.AverageScore
	}
	return summary
}

// wireUser ユーザーの生データ（管理APIは _id を返す）
type wireUser struct {
	models.User
	MongoID string `json:"_id"`
}

func (w wireUser) normalize() models.User {
	u := w.User
	if u.ID == "" {
		u.ID = w.MongoID
	}
	return u
}

func appendPositional(values []float64, v *float64, open bool) ([]float64, bool) {
	if !open || v == nil {
		return values, false
	}
	return append(values, *v), true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstDistribution(values ...models.Distribution) models.Distribution {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
