package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"farmadvisor-client/pkg/apierr"
	"farmadvisor-client/pkg/charts"
	"farmadvisor-client/pkg/models"
	"farmadvisor-client/pkg/services"

	"github.com/gin-gonic/gin"
)

// AdvisorHandler はログイン後のダッシュボード操作のハンドラです。
type AdvisorHandler struct {
	service *services.AdvisorService
	charts  *charts.Manager
}

// NewAdvisorHandler は新しいAdvisorHandlerを生成します。
func NewAdvisorHandler(service *services.AdvisorService, manager *charts.Manager) *AdvisorHandler {
	return &AdvisorHandler{service: service, charts: manager}
}

// --- 認証 ---

// Login はログインしてセッション読み込みの結果を返します。
func (h *AdvisorHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	user, loadReport, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"user": user, "failed": loadReport.Failed(), "state": h.service.State()})
}

// Register は新規登録してセッションを確立します。
func (h *AdvisorHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	user, loadReport, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"user": user, "failed": loadReport.Failed(), "state": h.service.State()})
}

// Logout はセッションを破棄します。
func (h *AdvisorHandler) Logout(c *gin.Context) {
	if err := h.service.Logout(); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"view": models.ViewLogin})
}

// Session は現在の画面とキャッシュ内容を返します。
func (h *AdvisorHandler) Session(c *gin.Context) {
	respondOK(c, gin.H{"state": h.service.State(), "is_admin": h.service.IsAdmin()})
}

// Messages は表示中の通知を返します。
func (h *AdvisorHandler) Messages(c *gin.Context) {
	respondOK(c, gin.H{"messages": h.service.Notices().Active()})
}

// DismissMessage は通知を消します。
func (h *AdvisorHandler) DismissMessage(c *gin.Context) {
	respondOK(c, gin.H{"dismissed": h.service.Notices().Dismiss(c.Param("id"))})
}

// --- 入力フォーム・農場 ---

// ConfigOptions は入力フォームの選択肢を返します。
func (h *AdvisorHandler) ConfigOptions(c *gin.Context) {
	respondOK(c, gin.H{
		"options":      h.service.ConfigOptions(c.Request.Context()),
		"defaults":     h.service.DefaultInput(),
		"max_quantity": h.service.Validator().MaxQuantity(),
	})
}

// GetFarm はキャッシュ済みの農場情報を返します。refresh=true で取得し直します。
func (h *AdvisorHandler) GetFarm(c *gin.Context) {
	if c.Query("refresh") == "true" {
		if err := h.service.RefreshFarmProfile(c.Request.Context()); err != nil {
			respondError(c, err)
			return
		}
	}
	respondOK(c, gin.H{"farm": h.service.State().Farm})
}

// UpdateFarm は農場情報を更新します。
func (h *AdvisorHandler) UpdateFarm(c *gin.Context) {
	var farm models.FarmProfile
	if !bindJSON(c, &farm) {
		return
	}
	updated, err := h.service.UpdateFarm(c.Request.Context(), farm)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"farm": updated})
}

// --- 分析 ---

// ValidateAnalysis は送信前の範囲チェックだけを行います。
func (h *AdvisorHandler) ValidateAnalysis(c *gin.Context) {
	var input models.AnalysisInput
	if !bindJSON(c, &input) {
		return
	}
	if err := h.service.ValidateInput(input); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"valid": true})
}

// SubmitAnalysis は予測を依頼し、更新後の状態を返します。
func (h *AdvisorHandler) SubmitAnalysis(c *gin.Context) {
	var input models.AnalysisInput
	if !bindJSON(c, &input) {
		return
	}
	result, err := h.service.SubmitAnalysis(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"result": result, "state": h.service.State()})
}

// GetResult は最後の予測結果を返します。
func (h *AdvisorHandler) GetResult(c *gin.Context) {
	result, ok := h.service.Result()
	if !ok || result == nil {
		respondError(c, apierr.NoResult())
		return
	}
	respondOK(c, gin.H{"result": result, "input": h.service.State().LastInput})
}

// DownloadReport はレポートをファイルとして返します。
func (h *AdvisorHandler) DownloadReport(c *gin.Context) {
	doc, err := h.service.GenerateReport(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}

// --- 履歴 ---

// GetHistory は履歴の指定ページを取得します。
func (h *AdvisorHandler) GetHistory(c *gin.Context) {
	page, err := h.service.RefreshHistory(c.Request.Context(), queryInt(c, "page", 1))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"history": page})
}

// DeleteHistory は履歴1件を削除します。
func (h *AdvisorHandler) DeleteHistory(c *gin.Context) {
	if err := h.service.DeleteHistoryRecord(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	st := h.service.State()
	respondOK(c, gin.H{"history": st.History})
}

// --- 分析統計・グラフ ---

// chartStatus 描画面ごとの表示状態
type chartStatus struct {
	Surface     charts.Surface   `json:"surface"`
	Instance    *charts.Instance `json:"instance,omitempty"`
	Placeholder string           `json:"placeholder,omitempty"`
}

func (h *AdvisorHandler) chartStatuses() []chartStatus {
	out := make([]chartStatus, 0, len(charts.Surfaces))
	for _, surface := range charts.Surfaces {
		st := chartStatus{Surface: surface}
		if inst, ok := h.charts.Instance(surface); ok {
			st.Instance = inst
		} else {
			st.Placeholder = h.charts.Placeholder(surface)
		}
		out = append(out, st)
	}
	return out
}

// ActivateAnalytics は分析タブの表示時に呼ばれ、未取得の場合だけ取得します。
func (h *AdvisorHandler) ActivateAnalytics(c *gin.Context) {
	summary, err := h.service.ActivateAnalytics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"analytics": summary, "projection": h.service.Projection(), "charts": h.chartStatuses()})
}

// RefreshAnalytics は分析統計を取得し直します。
func (h *AdvisorHandler) RefreshAnalytics(c *gin.Context) {
	summary, err := h.service.RefreshAnalytics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"analytics": summary, "projection": h.service.Projection(), "charts": h.chartStatuses()})
}

// GetChart は描画面のPNGを返します。グラフがなければプレースホルダー文言を返します。
func (h *AdvisorHandler) GetChart(c *gin.Context) {
	surface, ok := charts.ParseSurface(strings.TrimSuffix(c.Param("surface"), ".png"))
	if !ok {
		respondError(c, apierr.ValidationFailed("Unknown chart: "+c.Param("surface")))
		return
	}
	inst, ok := h.charts.Instance(surface)
	if !ok {
		respondOK(c, gin.H{"surface": surface, "placeholder": h.charts.Placeholder(surface)})
		return
	}
	c.Header("X-Chart-Instance", inst.ID)
	c.Data(http.StatusOK, "image/png", inst.PNG)
}

// ChartStats は作成・解放したグラフ数を返します。
func (h *AdvisorHandler) ChartStats(c *gin.Context) {
	respondOK(c, gin.H{"stats": h.charts.Stats()})
}
