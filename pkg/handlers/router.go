package handlers

import (
	"time"

	"farmadvisor-client/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterOptions ルーター構築に必要なハンドラと設定
type RouterOptions struct {
	Advisor     *AdvisorHandler
	Admin       *AdminHandler
	Monitoring  *MonitoringHandler
	Monitor     *services.MonitoringService
	CORSOrigins []string
}

// NewRouter はBFFのルーティングを登録したGinエンジンを返します。
func NewRouter(opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// ミドルウェアの登録
	if opts.Monitor != nil {
		r.Use(opts.Monitor.LoggingMiddleware())
	}
	r.Use(corsMiddleware(opts.CORSOrigins))

	// ヘルスチェックエンドポイント
	r.GET("/health", opts.Admin.HealthCheck)

	v1 := r.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/login", opts.Advisor.Login)
			auth.POST("/register", opts.Advisor.Register)
			auth.POST("/logout", opts.Advisor.Logout)
		}

		v1.GET("/session", opts.Advisor.Session)
		v1.GET("/messages", opts.Advisor.Messages)
		v1.DELETE("/messages/:id", opts.Advisor.DismissMessage)
		v1.GET("/config/options", opts.Advisor.ConfigOptions)
		v1.GET("/farm", opts.Advisor.GetFarm)
		v1.POST("/farm", opts.Advisor.UpdateFarm)

		analysis := v1.Group("/analysis")
		{
			analysis.POST("", opts.Advisor.SubmitAnalysis)
			analysis.POST("/validate", opts.Advisor.ValidateAnalysis)
			analysis.GET("/result", opts.Advisor.GetResult)
			analysis.GET("/report", opts.Advisor.DownloadReport)
		}

		v1.GET("/history", opts.Advisor.GetHistory)
		v1.DELETE("/history/:id", opts.Advisor.DeleteHistory)

		v1.GET("/analytics", opts.Advisor.ActivateAnalytics)
		v1.POST("/analytics/refresh", opts.Advisor.RefreshAnalytics)
		v1.GET("/charts", opts.Advisor.ChartStats)
		v1.GET("/charts/:surface", opts.Advisor.GetChart)

		// 管理者向けAPI
		admin := v1.Group("/admin")
		{
			admin.GET("/users", opts.Admin.ListUsers)
			admin.GET("/analytics/:id", opts.Admin.UserAnalytics)
			admin.GET("/history/:id", opts.Admin.UserHistory)
			admin.POST("/config/:kind", opts.Admin.AddConfigItem)
			admin.DELETE("/config/:kind/:item", opts.Admin.RemoveConfigItem)
			admin.GET("/health-status", opts.Admin.GetHealthStatus)
			admin.POST("/maintenance/start", opts.Admin.StartMaintenance)
			admin.POST("/maintenance/stop", opts.Admin.StopMaintenance)
		}

		// モニタリングAPI
		if opts.Monitoring != nil {
			monitoring := v1.Group("/monitoring")
			{
				monitoring.GET("/logs", opts.Monitoring.GetLogs)
			}
		}
	}
	return r
}

// corsMiddleware 許可オリジンが未設定なら全オリジンを許可する
func corsMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return cors.Default()
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition", "X-Chart-Instance"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
