// Package report は現在の予測結果と入力パラメータからレポート文書を組み立てます。
//
// ローカルで表計算ブックを作る方式と、サーバーの描画エンドポイントに任せる方式があり、
// どちらも同じ入力から同じ内容の文書を返します。
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"farmadvisor-client/pkg/apierr"
	"farmadvisor-client/pkg/models"
)

// AppName レポートの見出しに表示するアプリ名
const AppName = "FarmAdvisor"

// レポート方式
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

// Input レポートの材料（キャッシュ済みの状態そのもの）
type Input struct {
	Result      *models.PredictionResult
	Input       models.AnalysisInput
	Farm        *models.FarmProfile
	User        *models.User
	GeneratedAt time.Time
}

// Row 項目名と値
type Row struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Section 文書の1区画
type Section struct {
	Title string   `json:"title"`
	Rows  []Row    `json:"rows,omitempty"`
	Items []string `json:"items,omitempty"`
}

// Document 組み立て済みのレポート
type Document struct {
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Body        []byte    `json:"-"`
	Sections    []Section `json:"sections"`
}

// Assembler レポートを組み立てる
type Assembler interface {
	Assemble(ctx context.Context, in Input) (*Document, error)
}

// BuildSections 固定レイアウトの区画を作る
// 見出し、入力パラメータ表、結果、推奨事項（あれば）、効率スコア（あれば）の順です。
func BuildSections(in Input) ([]Section, error) {
	if in.Result == nil {
		return nil, apierr.NoResult()
	}
	generatedAt := in.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}

	header := Section{
		Title: AppName + " Analysis Report",
		Rows: []Row{
			{Label: "Generated", Value: generatedAt.Format("2006-01-02 15:04")},
			{Label: "Farmer", Value: in.User.DisplayName()},
		},
	}
	if in.Farm != nil && in.Farm.Location != "" {
		header.Rows = append(header.Rows, Row{Label: "Location", Value: in.Farm.Location})
	}
	if in.Farm != nil && in.Farm.FarmSize > 0 {
		header.Rows = append(header.Rows, Row{Label: "Farm Size", Value: fmt.Sprintf("%s hectares", formatNumber(in.Farm.FarmSize))})
	}

	params := Section{
		Title: "Input Parameters",
		Rows: []Row{
			{Label: "Temperature", Value: formatNumber(in.Input.Temperature) + "°C"},
			{Label: "Moisture", Value: formatNumber(in.Input.Moisture) + "%"},
			{Label: "Soil Type", Value: orDash(in.Input.SoilType)},
			{Label: "Crop Type", Value: orDash(in.Input.CropType)},
			{Label: "Fertilizer", Value: orDash(in.Input.FertilizerName)},
			{Label: "Quantity", Value: formatNumber(in.Input.FertilizerQuantity) + " kg"},
		},
	}
	for _, n := range []struct {
		label string
		value *float64
	}{
		{"Nitrogen", in.Input.Nitrogen},
		{"Potassium", in.Input.Potassium},
		{"Phosphorous", in.Input.Phosphorous},
	} {
		if n.value != nil {
			params.Rows = append(params.Rows, Row{Label: n.label, Value: formatNumber(*n.value)})
		}
	}

	r := in.Result
	results := Section{
		Title: "Results",
		Rows: []Row{
			{Label: "Compatibility", Value: r.Compatibility},
			{Label: "Reason", Value: orDash(r.Reason)},
			{Label: "Quantity Status", Value: orDash(r.QuantityStatus)},
			{Label: "Quantity Reason", Value: orDash(r.QuantityReason)},
		},
	}
	if r.RiskScore != nil {
		results.Rows = append(results.Rows, Row{Label: "Risk Score", Value: formatNumber(*r.RiskScore)})
	}

	sections := []Section{header, params, results}
	if len(r.Recommendations) > 0 {
		items := make([]string, len(r.Recommendations))
		copy(items, r.Recommendations)
		sections = append(sections, Section{Title: "Recommendations", Items: items})
	}
	if r.EfficiencyScore != nil {
		sections = append(sections, Section{
			Title: "Efficiency",
			Rows:  []Row{{Label: "Efficiency Score", Value: formatNumber(*r.EfficiencyScore) + "%"}},
		})
	}
	return sections, nil
}

// FileName ダウンロード用のファイル名 FarmReport_<作物>_<日付>.<拡張子>
func FileName(crop string, at time.Time, ext string) string {
	crop = strings.TrimSpace(crop)
	if crop == "" {
		crop = "Crop"
	}
	crop = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, crop)
	return fmt.Sprintf("FarmReport_%s_%s.%s", crop, at.Format("2006-01-02"), ext)
}

func formatNumber(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
