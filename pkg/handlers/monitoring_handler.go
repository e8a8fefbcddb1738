package handlers

import (
	"net/http"

	"farmadvisor-client/pkg/services"

	"github.com/gin-gonic/gin"
)

// MonitoringHandler はモニタリング関連の操作のハンドラです。
type MonitoringHandler struct {
	Service *services.MonitoringService
}

// NewMonitoringHandler は新しいMonitoringHandlerを生成します。
func NewMonitoringHandler(service *services.MonitoringService) *MonitoringHandler {
	return &MonitoringHandler{
		Service: service,
	}
}

// GetLogs は集計されたログデータを返します。
// direction=inbound|outbound でエンドポイント別の集計を絞り込めます。
func (h *MonitoringHandler) GetLogs(c *gin.Context) {
	var hours int
	switch c.DefaultQuery("period", "24h") {
	case "1h":
		hours = 1
	case "7d":
		hours = 24 * 7
	default:
		hours = 24
	}

	data := h.Service.GetDashboardData(hours)
	if direction := services.Direction(c.Query("direction")); direction != "" {
		filtered := make([]services.EndpointStat, 0, len(data.Endpoints))
		for _, e := range data.Endpoints {
			if e.Direction == direction {
				filtered = append(filtered, e)
			}
		}
		data.Endpoints = filtered
	}
	c.JSON(http.StatusOK, data)
}
