package models

import "time"

// User represents the authenticated farmer returned by /login and /register
type User struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	Name        string       `json:"name"`
	IsAdmin     bool         `json:"is_admin"`
	FarmDetails *FarmProfile `json:"farm_details,omitempty"`
}

// DisplayName 表示用の名前（未設定なら "Farmer"）
func (u *User) DisplayName() string {
	if u == nil || u.Name == "" {
		return "Farmer"
	}
	return u.Name
}

// FarmProfile 農場情報
type FarmProfile struct {
	Location     string   `json:"location"`
	FarmSize     float64  `json:"farm_size"`
	SoilType     string   `json:"soil_type"`
	PrimaryCrops []string `json:"primary_crops,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"` // 登録時に保存された気温
	Humidity     *float64 `json:"humidity,omitempty"`    // 登録時に保存された湿度
}

// RegisterRequest 新規登録リクエスト
type RegisterRequest struct {
	Email        string   `json:"email" binding:"required,email"`
	Password     string   `json:"password" binding:"required,min=6"`
	Name         string   `json:"name,omitempty"`
	SoilType     string   `json:"soil_type,omitempty"`
	FarmSize     float64  `json:"farm_size,omitempty"`
	Location     string   `json:"location,omitempty"`
	PrimaryCrops []string `json:"primary_crops,omitempty"`
}

// LoginRequest ログインリクエスト
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AnalysisInput 適合性チェックに送信する農業パラメータ
// JSONのフィールド名はサービス側の表記（Temparature を含む）に合わせています。
type AnalysisInput struct {
	Temperature        float64  `json:"Temparature" validate:"gte=0,lte=50"`
	Moisture           float64  `json:"Moisture" validate:"gte=0,lte=100"`
	SoilType           string   `json:"Soil_Type,omitempty"`
	CropType           string   `json:"Crop_Type"`
	FertilizerName     string   `json:"Fertilizer_Name"`
	FertilizerQuantity float64  `json:"Fertilizer_Quantity" validate:"gt=0"`
	Nitrogen           *float64 `json:"Nitrogen,omitempty" validate:"omitempty,gte=0"`
	Potassium          *float64 `json:"Potassium,omitempty" validate:"omitempty,gte=0"`
	Phosphorous        *float64 `json:"Phosphorous,omitempty" validate:"omitempty,gte=0"`
}

// DefaultAnalysisInput 農場情報から入力フォームの初期値を作成
func DefaultAnalysisInput(farm *FarmProfile) AnalysisInput {
	input := AnalysisInput{
		Temperature:        26,
		Moisture:           45,
		SoilType:           "Loamy",
		CropType:           "Maize",
		FertilizerName:     "Urea",
		FertilizerQuantity: 30,
	}
	if farm == nil {
		return input
	}
	if farm.Temperature != nil {
		input.Temperature = *farm.Temperature
	}
	if farm.Humidity != nil {
		input.Moisture = *farm.Humidity
	}
	if farm.SoilType != "" {
		input.SoilType = farm.SoilType
	}
	return input
}

// FertilizerInfo 肥料の補足情報
type FertilizerInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Application string `json:"application"`
}

// ResultDetails 予測結果の詳細項目（サービスが返す場合のみ）
type ResultDetails struct {
	TemperatureStatus string          `json:"temperature_status,omitempty"`
	TemperatureRange  string          `json:"temperature_range,omitempty"`
	MoistureStatus    string          `json:"moisture_status,omitempty"`
	MoistureRange     string          `json:"moisture_range,omitempty"`
	SoilCompatibility string          `json:"soil_compatibility,omitempty"`
	QuantityRange     string          `json:"quantity_range,omitempty"`
	Fertilizer        *FertilizerInfo `json:"fertilizer_info,omitempty"`
}

// PredictionResult 正規化済みの予測結果
type PredictionResult struct {
	Compatibility   string        `json:"compatibility"`
	Reason          string        `json:"reason"`
	QuantityStatus  string        `json:"quantity_status"`
	QuantityReason  string        `json:"quantity_reason"`
	Recommendations []string      `json:"recommendations"`
	EfficiencyScore *float64      `json:"efficiency_score,omitempty"`
	RiskScore       *float64      `json:"risk_score,omitempty"`
	Details         ResultDetails `json:"details"`
}

// HistoryRecord 正規化済みの履歴1件
type HistoryRecord struct {
	ID            string     `json:"id"`
	CropType      string     `json:"crop_type"`
	Fertilizer    string     `json:"fertilizer"`
	Quantity      *float64   `json:"quantity,omitempty"`
	Compatibility string     `json:"compatibility"`
	Score         *float64   `json:"score,omitempty"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
}

// HistoryPage 履歴の1ページ分
type HistoryPage struct {
	Records    []HistoryRecord `json:"records"`
	Page       int             `json:"page"`
	TotalPages int             `json:"total_pages"`
	Limit      int             `json:"limit"`
}

// TimeSeries 日付・施肥量・リスクスコアの並列配列
// サービスが返さなかった系列は nil のまま保持します（空配列とは区別）。
type TimeSeries struct {
	Dates      []string  `json:"dates"`
	Quantities []float64 `json:"quantities,omitempty"`
	RiskScores []float64 `json:"risk_scores,omitempty"`
	Scores     []float64 `json:"scores,omitempty"` // 総合スコア（旧形式 time_series.scores）
}

// AnalyticsSummary サーバーが集計した分析統計
type AnalyticsSummary struct {
	TotalAnalyses     int          `json:"total_analyses"`
	SuccessRate       float64      `json:"success_rate"`
	AverageEfficiency float64      `json:"average_efficiency"`
	ByCrop            Distribution `json:"by_crop"`
	ByFertilizer      Distribution `json:"by_fertilizer"`
	ByCompatibility   Distribution `json:"by_compatibility"`
	ByQuantityStatus  Distribution `json:"by_quantity_status"`
	TimeSeries        TimeSeries   `json:"time_series"`
}

// HasData 集計対象が1件以上あるか
func (a *AnalyticsSummary) HasData() bool {
	return a != nil && a.TotalAnalyses > 0
}

// ConfigKind 選択肢リストの種類
type ConfigKind string

const (
	ConfigSoilTypes       ConfigKind = "soil-types"
	ConfigCropTypes       ConfigKind = "crop-types"
	ConfigFertilizerNames ConfigKind = "fertilizer-names"
)

// ParseConfigKind 文字列から ConfigKind を取得（短縮形 soil/crop/fertilizer も可）
func ParseConfigKind(s string) (ConfigKind, bool) {
	switch s {
	case "soil", string(ConfigSoilTypes):
		return ConfigSoilTypes, true
	case "crop", string(ConfigCropTypes):
		return ConfigCropTypes, true
	case "fertilizer", string(ConfigFertilizerNames):
		return ConfigFertilizerNames, true
	}
	return "", false
}

// ConfigOptions 入力フォームの選択肢
type ConfigOptions struct {
	SoilTypes       []string `json:"soil_types"`
	CropTypes       []string `json:"crop_types"`
	FertilizerNames []string `json:"fertilizer_names"`
	Static          bool     `json:"static"` // サーバー取得に失敗し固定リストを使用
}

// StaticConfigOptions サーバーから取得できない場合の固定リスト
func StaticConfigOptions() ConfigOptions {
	return ConfigOptions{
		SoilTypes:       []string{"Sandy", "Loamy", "Black", "Red", "Clayey"},
		CropTypes:       []string{"Maize", "Sugarcane", "Cotton", "Tobacco", "Paddy", "Barley", "Wheat", "Millets", "Oil seeds", "Pulses", "Ground Nuts"},
		FertilizerNames: []string{"Urea", "DAP", "14-35-14", "28-28", "17-17-17", "20-20", "10-26-26"},
		Static:          true,
	}
}

// NoticeType 通知の種類
type NoticeType string

const (
	NoticeSuccess NoticeType = "success"
	NoticeError   NoticeType = "error"
)

// Notice 一定時間後に自動で消えるユーザー向けメッセージ
type Notice struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Type      NoticeType `json:"type"`
	CreatedAt time.Time  `json:"created_at"`
}

// View 表示すべき画面
type View string

const (
	ViewLogin     View = "login"
	ViewDashboard View = "dashboard"
)
