// Package charts は分析統計のグラフを描画面ごとに1つだけ保持します。
//
// 同じ描画面へ再バインドする際は、必ず既存のインスタンスを解放してから
// 新しいインスタンスを作成します。
package charts

import (
	"fmt"
	"sync"
	"time"

	"farmadvisor-client/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NoDataPlaceholder データがない描画面に表示する文言
const NoDataPlaceholder = "No data available yet. Run an analysis to see your statistics."

// Surface グラフの描画面
type Surface string

const (
	SurfaceCrop           Surface = "crop"
	SurfaceFertilizer     Surface = "fertilizer"
	SurfaceCompatibility  Surface = "compatibility"
	SurfaceQuantityStatus Surface = "quantity-status"
	SurfaceTimeSeries     Surface = "time-series"
)

// Surfaces 分析画面の描画面（表示順）
var Surfaces = []Surface{
	SurfaceCrop,
	SurfaceFertilizer,
	SurfaceCompatibility,
	SurfaceQuantityStatus,
	SurfaceTimeSeries,
}

// ParseSurface 文字列から Surface を取得
func ParseSurface(s string) (Surface, bool) {
	for _, surface := range Surfaces {
		if string(surface) == s {
			return surface, true
		}
	}
	return "", false
}

// Kind グラフの種類
type Kind string

const (
	KindBar  Kind = "bar"
	KindPie  Kind = "pie"
	KindLine Kind = "line"
)

// Series 描画する系列（Kind に応じてどちらか一方を使う）
type Series struct {
	Title      string
	Categories []models.CategoryPoint
	Points     []models.TimePoint
}

// empty 描画する値がないか
func (s Series) empty() bool {
	for _, p := range s.Points {
		if p.Quantity != nil || p.RiskScore != nil || p.Score != nil {
			return false
		}
	}
	for _, c := range s.Categories {
		if c.Count > 0 {
			return false
		}
	}
	return true
}

// Instance 描画面にバインドされたグラフ
type Instance struct {
	ID        string    `json:"id"`
	Surface   Surface   `json:"surface"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	PNG       []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Renderer 系列を画像に変換する
type Renderer interface {
	Render(kind Kind, series Series, width, height int) ([]byte, error)
}

// Stats 作成・解放したインスタンス数
type Stats struct {
	Created  int `json:"created"`
	Released int `json:"released"`
	Live     int `json:"live"`
}

// Manager 描画面からインスタンスへの対応表を管理する
type Manager struct {
	renderer Renderer
	width    int
	height   int
	logger   *zap.Logger

	mu        sync.RWMutex
	instances map[Surface]*Instance
	created   int
	released  int
}

// NewManager 新しいManagerを作成
func NewManager(renderer Renderer, width, height int, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		renderer:  renderer,
		width:     width,
		height:    height,
		logger:    logger,
		instances: make(map[Surface]*Instance),
	}
}

// Bind 既存のインスタンスを解放してから新しいグラフを描画する
// 描画に失敗した場合、その描画面は空（プレースホルダー表示）になります。
func (m *Manager) Bind(surface Surface, kind Kind, series Series) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.releaseLocked(surface)

	png, err := m.renderer.Render(kind, series, m.width, m.height)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s chart: %w", surface, err)
	}

	inst := &Instance{
		ID:        uuid.NewString(),
		Surface:   surface,
		Kind:      kind,
		Title:     series.Title,
		PNG:       png,
		CreatedAt: time.Now(),
	}
	m.instances[surface] = inst
	m.created++
	m.logger.Debug("chart bound", zap.String("surface", string(surface)), zap.String("id", inst.ID))
	return inst, nil
}

// Release 描画面のインスタンスを解放する（なければ何もしない）
func (m *Manager) Release(surface Surface) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked(surface)
}

func (m *Manager) releaseLocked(surface Surface) {
	inst, ok := m.instances[surface]
	if !ok {
		return
	}
	delete(m.instances, surface)
	m.released++
	m.logger.Debug("chart released", zap.String("surface", string(surface)), zap.String("id", inst.ID))
}

// ReleaseAll すべての描画面を解放する
func (m *Manager) ReleaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for surface := range m.instances {
		m.releaseLocked(surface)
	}
}

// Instance 描画面に現在バインドされているインスタンス
func (m *Manager) Instance(surface Surface) (*Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[surface]
	return inst, ok
}

// Live 現在有効なインスタンス数
func (m *Manager) Live() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.instances)
}

// Stats 作成・解放の累計
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{Created: m.created, Released: m.released, Live: len(m.instances)}
}

// Placeholder インスタンスがない描画面に表示する文言。インスタンスがあれば空文字
func (m *Manager) Placeholder(surface Surface) string {
	if _, ok := m.Instance(surface); ok {
		return ""
	}
	return NoDataPlaceholder
}

// BindProjection 分析統計の変換結果を全描画面にバインドする
// 統計が空の場合はすべて解放し、グラフは作成しません。
func (m *Manager) BindProjection(p models.Projection) error {
	if p.Empty {
		m.ReleaseAll()
		return nil
	}

	var firstErr error
	for _, target := range targetsFor(p) {
		if target.series.empty() {
			m.Release(target.surface)
			continue
		}
		if _, err := m.Bind(target.surface, target.kind, target.series); err != nil {
			m.logger.Warn("chart render failed", zap.String("surface", string(target.surface)), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

type bindTarget struct {
	surface Surface
	kind    Kind
	series  Series
}

// targetsFor 変換結果の各系列を描画面に割り当てる
func targetsFor(p models.Projection) []bindTarget {
	surfaceByKey := map[string]Surface{
		models.SeriesByCrop:           SurfaceCrop,
		models.SeriesByFertilizer:     SurfaceFertilizer,
		models.SeriesByCompatibility:  SurfaceCompatibility,
		models.SeriesByQuantityStatus: SurfaceQuantityStatus,
	}

	targets := make([]bindTarget, 0, len(Surfaces))
	for _, cat := range p.Categories {
		surface, ok := surfaceByKey[cat.Key]
		if !ok {
			continue
		}
		kind := KindBar
		if surface == SurfaceCompatibility || surface == SurfaceQuantityStatus {
			kind = KindPie
		}
		targets = append(targets, bindTarget{
			surface: surface,
			kind:    kind,
			series:  Series{Title: cat.Title, Categories: cat.Points},
		})
	}
	targets = append(targets, bindTarget{
		surface: SurfaceTimeSeries,
		kind:    KindLine,
		series:  Series{Title: "Fertilizer Usage Over Time", Points: p.TimeSeries},
	})
	return targets
}
