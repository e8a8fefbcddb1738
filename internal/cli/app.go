// Package cli はfarmadvisorコマンドのサブコマンドと、各コマンドが共有する
// コンポーネントの組み立てを提供します。
package cli

import (
	"fmt"

	config "farmadvisor-client/configs"
	"farmadvisor-client/pkg/apiclient"
	"farmadvisor-client/pkg/charts"
	"farmadvisor-client/pkg/handlers"
	"farmadvisor-client/pkg/report"
	"farmadvisor-client/pkg/services"
	"farmadvisor-client/pkg/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// App 設定から組み立てたコンポーネント一式
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Backend *session.SQLiteBackend
	Session *session.Store
	Client  *apiclient.Client
	Charts  *charts.Manager
	Monitor *services.MonitoringService
	Notices *services.NoticeBoard
	Advisor *services.AdvisorService
}

// NewApp セッションDBを開き、保存済みの認証情報を復元してからサービスを組み立てる
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	backend := session.NewSQLiteBackend(cfg.SessionDBPath, logger)
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	codec, err := session.LoadCodec(backend, cfg.SessionHashKey, cfg.SessionBlockKey, logger)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("failed to load session keys: %w", err)
	}
	store := session.NewStore(backend, codec, logger)
	if err := store.Restore(); err != nil {
		backend.Close()
		return nil, err
	}

	monitor := services.NewMonitoringService(logger)
	client := apiclient.New(apiclient.Options{
		BaseURL:  cfg.APIBaseURL,
		Timeout:  cfg.RequestTimeout,
		Logger:   logger,
		Observer: monitor,
	}, store)
	manager := charts.NewManager(charts.NewGoChartRenderer(), cfg.ChartWidth, cfg.ChartHeight, logger)
	notices := services.NewNoticeBoard(cfg.MessageTTL)

	var assembler report.Assembler
	switch cfg.ReportMode {
	case report.ModeRemote:
		assembler = report.NewRemoteAssembler(client)
	default:
		assembler = report.NewLocalAssembler()
	}

	advisor := services.NewAdvisorService(client, store, manager, assembler, notices, services.AdvisorOptions{
		MaxFertilizerQuantity: cfg.MaxFertilizerQuantity,
		HistoryPageSize:       cfg.HistoryPageSize,
	}, logger)

	logger.Info("farmadvisor client initialized",
		zap.String("api", cfg.APIBaseURL),
		zap.String("report_mode", cfg.ReportMode),
		zap.String("session_db", cfg.SessionDBPath),
	)
	return &App{
		Config:  cfg,
		Logger:  logger,
		Backend: backend,
		Session: store,
		Client:  client,
		Charts:  manager,
		Monitor: monitor,
		Notices: notices,
		Advisor: advisor,
	}, nil
}

// Router BFFのルーター
func (a *App) Router() *gin.Engine {
	return handlers.NewRouter(handlers.RouterOptions{
		Advisor:     handlers.NewAdvisorHandler(a.Advisor, a.Charts),
		Admin:       handlers.NewAdminHandler(a.Advisor),
		Monitoring:  handlers.NewMonitoringHandler(a.Monitor),
		Monitor:     a.Monitor,
		CORSOrigins: a.Config.CORSAllowOrigins,
	})
}

// Close タイマーを止めてセッションDBを閉じる
func (a *App) Close() error {
	a.Notices.Close()
	return a.Backend.Close()
}
