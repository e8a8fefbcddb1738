package charts

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"farmadvisor-client/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRenderer 描画回数だけを数えるRenderer
type fakeRenderer struct {
	mu    sync.Mutex
	calls []Kind
	err   error
}

func (f *fakeRenderer) Render(kind Kind, _ Series, _, _ int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, kind)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("png"), nil
}

func float(v float64) *float64 { return &v }

func sampleProjection() models.Projection {
	return models.Projection{
		TotalAnalyses: 4,
		Categories: []models.CategorySeries{
			{Key: models.SeriesByCrop, Title: "Analyses by Crop", Points: []models.CategoryPoint{{Label: "Maize", Count: 3}, {Label: "Wheat", Count: 1}}},
			{Key: models.SeriesByFertilizer, Title: "Analyses by Fertilizer", Points: []models.CategoryPoint{{Label: "Urea", Count: 4}}},
			{Key: models.SeriesByCompatibility, Title: "Compatibility Outcomes", Points: []models.CategoryPoint{{Label: "Compatible", Count: 4, Percent: 100}}},
			{Key: models.SeriesByQuantityStatus, Title: "Quantity Status", Points: []models.CategoryPoint{}},
		},
		TimeSeries: []models.TimePoint{
			{Date: "2024-03-01", Quantity: float(20), RiskScore: float(10)},
			{Date: "2024-03-02", Quantity: float(35), RiskScore: float(25)},
		},
	}
}

func TestRebindKeepsSingleInstance(t *testing.T) {
	m := NewManager(&fakeRenderer{}, 640, 360, nil)

	var last *Instance
	for i := 0; i < 10; i++ {
		inst, err := m.Bind(SurfaceCrop, KindBar, Series{Categories: []models.CategoryPoint{{Label: "Maize", Count: 1}}})
		require.NoError(t, err)
		last = inst
	}

	assert.Equal(t, 1, m.Live())
	current, ok := m.Instance(SurfaceCrop)
	require.True(t, ok)
	assert.Equal(t, last.ID, current.ID)

	stats := m.Stats()
	assert.Equal(t, 10, stats.Created)
	assert.Equal(t, 9, stats.Released)
	assert.Equal(t, 1, stats.Live)
}

func TestBindFailureLeavesSurfaceEmpty(t *testing.T) {
	renderer := &fakeRenderer{}
	m := NewManager(renderer, 640, 360, nil)

	_, err := m.Bind(SurfaceCrop, KindBar, Series{})
	require.NoError(t, err)

	renderer.err = errors.New("boom")
	_, err = m.Bind(SurfaceCrop, KindBar, Series{})
	require.Error(t, err)

	assert.Equal(t, 0, m.Live())
	assert.Equal(t, NoDataPlaceholder, m.Placeholder(SurfaceCrop))
}

func TestBindProjectionBindsSurfaces(t *testing.T) {
	renderer := &fakeRenderer{}
	m := NewManager(renderer, 640, 360, nil)

	require.NoError(t, m.BindProjection(sampleProjection()))

	// 施肥量ステータスは空のため描画しない
	assert.Equal(t, 4, m.Live())
	_, ok := m.Instance(SurfaceQuantityStatus)
	assert.False(t, ok)
	assert.Equal(t, NoDataPlaceholder, m.Placeholder(SurfaceQuantityStatus))

	inst, ok := m.Instance(SurfaceCompatibility)
	require.True(t, ok)
	assert.Equal(t, KindPie, inst.Kind)
	inst, ok = m.Instance(SurfaceTimeSeries)
	require.True(t, ok)
	assert.Equal(t, KindLine, inst.Kind)
	assert.Empty(t, m.Placeholder(SurfaceTimeSeries))

	// 何度バインドし直しても描画面ごとに1つ
	for i := 0; i < 5; i++ {
		require.NoError(t, m.BindProjection(sampleProjection()))
	}
	assert.Equal(t, 4, m.Live())
}

func TestEmptyProjectionCreatesNoInstances(t *testing.T) {
	renderer := &fakeRenderer{}
	m := NewManager(renderer, 640, 360, nil)

	require.NoError(t, m.BindProjection(sampleProjection()))
	require.Equal(t, 4, m.Live())
	renderer.calls = nil

	require.NoError(t, m.BindProjection(models.Projection{Empty: true}))
	assert.Equal(t, 0, m.Live())
	assert.Empty(t, renderer.calls)
	for _, surface := range Surfaces {
		assert.Equal(t, NoDataPlaceholder, m.Placeholder(surface))
	}
}

func TestReleaseAll(t *testing.T) {
	m := NewManager(&fakeRenderer{}, 640, 360, nil)
	require.NoError(t, m.BindProjection(sampleProjection()))

	m.ReleaseAll()
	m.Release(SurfaceCrop)

	stats := m.Stats()
	assert.Equal(t, 0, stats.Live)
	assert.Equal(t, stats.Created, stats.Released)
}

func TestParseSurface(t *testing.T) {
	s, ok := ParseSurface("time-series")
	assert.True(t, ok)
	assert.Equal(t, SurfaceTimeSeries, s)

	_, ok = ParseSurface("radar")
	assert.False(t, ok)
}

func TestGoChartRendererProducesPNG(t *testing.T) {
	renderer := NewGoChartRenderer()
	pngHeader := []byte("\x89PNG")

	bar, err := renderer.Render(KindBar, Series{
		Title:      "Analyses by Crop",
		Categories: []models.CategoryPoint{{Label: "Maize", Count: 3}, {Label: "Wheat", Count: 3}},
	}, 640, 360)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(bar, pngHeader))

	pie, err := renderer.Render(KindPie, Series{
		Title:      "Compatibility Outcomes",
		Categories: []models.CategoryPoint{{Label: "Compatible", Count: 3, Percent: 75}, {Label: "Not Compatible", Count: 1, Percent: 25}, {Label: "Unknown", Count: 0}},
	}, 640, 360)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pie, pngHeader))

	line, err := renderer.Render(KindLine, Series{
		Title:  "Fertilizer Usage Over Time",
		Points: []models.TimePoint{{Date: "2024-03-01", Quantity: float(20), RiskScore: float(12)}},
	}, 640, 360)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(line, pngHeader))
}

func TestGoChartRendererRejectsEmptySeries(t *testing.T) {
	renderer := NewGoChartRenderer()

	_, err := renderer.Render(KindBar, Series{}, 640, 360)
	assert.Error(t, err)
	_, err = renderer.Render(KindPie, Series{Categories: []models.CategoryPoint{{Label: "A", Count: 0}}}, 640, 360)
	assert.Error(t, err)
	_, err = renderer.Render(KindLine, Series{Points: []models.TimePoint{{Date: "2024-03-01"}}}, 640, 360)
	assert.Error(t, err)
	_, err = renderer.Render(Kind("radar"), Series{}, 640, 360)
	assert.Error(t, err)
}
