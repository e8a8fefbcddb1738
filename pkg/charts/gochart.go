package charts

import (
	"bytes"
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// GoChartRenderer go-chart でPNGを描画するRenderer
type GoChartRenderer struct{}

// NewGoChartRenderer 新しいGoChartRendererを作成
func NewGoChartRenderer() *GoChartRenderer {
	return &GoChartRenderer{}
}

// Render 種類に応じて棒・円・折れ線グラフを描画する
func (r *GoChartRenderer) Render(kind Kind, series Series, width, height int) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch kind {
	case KindBar:
		err = renderBar(&buf, series, width, height)
	case KindPie:
		err = renderPie(&buf, series, width, height)
	case KindLine:
		err = renderLine(&buf, series, width, height)
	default:
		return nil, fmt.Errorf("unsupported chart kind: %s", kind)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderBar(buf *bytes.Buffer, series Series, width, height int) error {
	bars := make([]chart.Value, 0, len(series.Categories))
	maxCount := 0.0
	for _, c := range series.Categories {
		bars = append(bars, chart.Value{Label: c.Label, Value: c.Count})
		maxCount = math.Max(maxCount, c.Count)
	}
	if len(bars) == 0 {
		return fmt.Errorf("bar chart %q has no categories", series.Title)
	}

	bc := chart.BarChart{
		Title:      series.Title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		BarWidth:   barWidth(width, len(bars)),
		// 件数がすべて同じでも軸が潰れないよう範囲を明示する
		YAxis: chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: niceMax(maxCount)}},
		Bars:  bars,
	}
	return bc.Render(chart.PNG, buf)
}

func renderPie(buf *bytes.Buffer, series Series, width, height int) error {
	values := make([]chart.Value, 0, len(series.Categories))
	for _, c := range series.Categories {
		// 件数0の扇形は描けないため除外する
		if c.Count <= 0 {
			continue
		}
		values = append(values, chart.Value{Label: pieLabel(c.Label, c.Percent), Value: c.Count})
	}
	if len(values) == 0 {
		return fmt.Errorf("pie chart %q has no positive values", series.Title)
	}

	size := width
	if height < size {
		size = height
	}
	pc := chart.PieChart{
		Title:  series.Title,
		Width:  size,
		Height: size,
		Values: values,
	}
	return pc.Render(chart.PNG, buf)
}

func pieLabel(label string, percent float64) string {
	if percent <= 0 {
		return label
	}
	return fmt.Sprintf("%s (%.0f%%)", label, percent)
}

type lineSpec struct {
	name  string
	color drawing.Color
	ys    []float64
}

func renderLine(buf *bytes.Buffer, series Series, width, height int) error {
	n := len(series.Points)
	if n == 0 {
		return fmt.Errorf("line chart %q has no points", series.Title)
	}

	specs := []lineSpec{
		{name: "Quantity (kg)", color: chart.ColorBlue},
		{name: "Risk Score", color: chart.ColorRed},
		{name: "Score", color: chart.ColorGreen},
	}
	xs := make([]float64, 0, n)
	ticks := make([]chart.Tick, 0, n)
	for i, p := range series.Points {
		xs = append(xs, float64(i))
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: p.Date})
		for j, v := range []*float64{p.Quantity, p.RiskScore, p.Score} {
			if v != nil {
				specs[j].ys = append(specs[j].ys, *v)
			}
		}
	}

	minY, maxY := 0.0, 0.0
	var lines []chart.Series
	for _, spec := range specs {
		if len(spec.ys) == 0 {
			continue
		}
		for _, y := range spec.ys {
			minY = math.Min(minY, y)
			maxY = math.Max(maxY, y)
		}
		seriesXs := xs[:len(spec.ys)]
		ys := spec.ys
		if len(ys) == 1 {
			// 1点だけでは範囲が作れないため同じ値を隣に並べる
			seriesXs = []float64{seriesXs[0], seriesXs[0] + 1}
			ys = []float64{ys[0], ys[0]}
		}
		lines = append(lines, chart.ContinuousSeries{
			Name:    spec.name,
			XValues: seriesXs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: spec.color,
				StrokeWidth: 2,
				DotColor:    spec.color,
				DotWidth:    3,
			},
		})
	}
	if len(lines) == 0 {
		return fmt.Errorf("line chart %q has no values", series.Title)
	}

	maxX := float64(n - 1)
	if maxX < 1 {
		maxX = 1
		ticks = append(ticks, chart.Tick{Value: 1, Label: ""})
	}
	ch := chart.Chart{
		Title:      series.Title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: "Date", Range: &chart.ContinuousRange{Min: 0, Max: maxX}, Ticks: ticks},
		YAxis:      chart.YAxis{Range: &chart.ContinuousRange{Min: minY, Max: niceMax(maxY)}},
		Series:     lines,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch.Render(chart.PNG, buf)
}

// niceMax 最大値に余白を加えた軸の上限（0以下なら1）
func niceMax(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return math.Ceil(v * 1.1)
}

func barWidth(width, bars int) int {
	w := (width - 80) / (bars * 2)
	switch {
	case w < 8:
		return 8
	case w > 60:
		return 60
	}
	return w
}
