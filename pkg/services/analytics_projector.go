package services

import "farmadvisor-client/pkg/models"

// ProjectAnalytics は分析統計をグラフ用の系列に変換します。
//
// 総分析件数が0または統計がない場合は Empty を返し、系列は作りません。
// 分布はサービスが返したキー順のまま並べ、割合は総分析件数で割ります。
// 時系列は日付・施肥量・リスクスコアを位置で対応させ、長さが揃わない場合は
// 共通の先頭部分だけを使います。
func ProjectAnalytics(summary *models.AnalyticsSummary) models.Projection {
	if !summary.HasData() {
		return models.Projection{
			Empty:      true,
			Categories: []models.CategorySeries{},
			TimeSeries: []models.TimePoint{},
		}
	}

	total := float64(summary.TotalAnalyses)
	return models.Projection{
		TotalAnalyses:     summary.TotalAnalyses,
		SuccessRate:       summary.SuccessRate,
		AverageEfficiency: summary.AverageEfficiency,
		Categories: []models.CategorySeries{
			projectDistribution(models.SeriesByCrop, "Analyses by Crop", summary.ByCrop, total),
			projectDistribution(models.SeriesByFertilizer, "Analyses by Fertilizer", summary.ByFertilizer, total),
			projectDistribution(models.SeriesByCompatibility, "Compatibility Outcomes", summary.ByCompatibility, total),
			projectDistribution(models.SeriesByQuantityStatus, "Quantity Status", summary.ByQuantityStatus, total),
		},
		TimeSeries: zipTimeSeries(summary.TimeSeries),
	}
}

func projectDistribution(key, title string, dist models.Distribution, total float64) models.CategorySeries {
	series := models.CategorySeries{
		Key:    key,
		Title:  title,
		Points: make([]models.CategoryPoint, 0, len(dist)),
	}
	for _, c := range dist {
		series.Points = append(series.Points, models.CategoryPoint{
			Label:   c.Label,
			Count:   c.Count,
			Percent: c.Count / total * 100,
		})
	}
	return series
}

// zipTimeSeries 返された系列の共通の長さまで位置で対応させる
// 返されなかった系列（nil）は長さの計算に含めません。
func zipTimeSeries(ts models.TimeSeries) []models.TimePoint {
	n := len(ts.Dates)
	for _, values := range [][]float64{ts.Quantities, ts.RiskScores, ts.Scores} {
		if values != nil && len(values) < n {
			n = len(values)
		}
	}

	points := make([]models.TimePoint, 0, n)
	for i := 0; i < n; i++ {
		points = append(points, models.TimePoint{
			Date:      ts.Dates[i],
			Quantity:  valueAt(ts.Quantities, i),
			RiskScore: valueAt(ts.RiskScores, i),
			Score:     valueAt(ts.Scores, i),
		})
	}
	return points
}

func valueAt(values []float64, i int) *float64 {
	if values == nil {
		return nil
	}
	v := values[i]
	return &v
}
