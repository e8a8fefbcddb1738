package handlers

import (
	"net/http"
	"sync/atomic"

	"farmadvisor-client/pkg/apierr"
	"farmadvisor-client/pkg/services"

	"github.com/gin-gonic/gin"
)

// AdminHandler は管理者向け操作のハンドラです。
// 管理者かどうかはログイン中のユーザーの is_admin で判定します。
type AdminHandler struct {
	service *services.AdvisorService

	// maintenance atomic.Boolを使用して、スレッドセーフな読み書きを保証します。
	maintenance atomic.Bool
}

// NewAdminHandler は新しいAdminHandlerを生成します。
func NewAdminHandler(service *services.AdvisorService) *AdminHandler {
	return &AdminHandler{service: service}
}

// ConfigItemRequest は選択肢追加のリクエストボディです。
type ConfigItemRequest struct {
	Item string `json:"item" binding:"required"`
}

// ListUsers は全ユーザーを返します。
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.service.AdminUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"users": users})
}

// UserAnalytics は指定ユーザーの分析統計を返します。
func (h *AdminHandler) UserAnalytics(c *gin.Context) {
	summary, projection, err := h.service.AdminAnalytics(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"analytics": summary, "projection": projection})
}

// UserHistory は指定ユーザーの履歴を返します。
func (h *AdminHandler) UserHistory(c *gin.Context) {
	page, err := h.service.AdminHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"history": page})
}

// AddConfigItem は選択肢を追加します。
func (h *AdminHandler) AddConfigItem(c *gin.Context) {
	kind, ok := configKindParam(c)
	if !ok {
		return
	}
	var req ConfigItemRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.service.AdminAddConfigItem(c.Request.Context(), kind, req.Item); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"kind": kind, "item": req.Item})
}

// RemoveConfigItem は選択肢を削除します。
func (h *AdminHandler) RemoveConfigItem(c *gin.Context) {
	kind, ok := configKindParam(c)
	if !ok {
		return
	}
	if err := h.service.AdminRemoveConfigItem(c.Request.Context(), kind, c.Param("item")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"kind": kind, "item": c.Param("item")})
}

// StartMaintenance はメンテナンスモードを開始します。
func (h *AdminHandler) StartMaintenance(c *gin.Context) {
	h.setMaintenance(c, true, "Maintenance mode started")
}

// StopMaintenance はメンテナンスモードを停止します。
func (h *AdminHandler) StopMaintenance(c *gin.Context) {
	h.setMaintenance(c, false, "Maintenance mode stopped")
}

func (h *AdminHandler) setMaintenance(c *gin.Context, on bool, message string) {
	if !h.service.IsAdmin() {
		respondError(c, apierr.Forbidden("Administrator access required"))
		return
	}
	h.maintenance.Store(on)
	respondOK(c, gin.H{"message": message})
}

// GetHealthStatus は現在のサーバーの状態を返します。
func (h *AdminHandler) GetHealthStatus(c *gin.Context) {
	respondOK(c, gin.H{"isMaintenanceMode": h.maintenance.Load()})
}

// HealthCheck は外部のヘルスチェッカー（例: ロードバランサー）からのリクエストに応答します。
func (h *AdminHandler) HealthCheck(c *gin.Context) {
	if h.maintenance.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "message": "Server is in maintenance mode"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
