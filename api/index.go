package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"sync"

	config "farmadvisor-client/configs"
	"farmadvisor-client/internal/cli"
	"farmadvisor-client/internal/logging"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	app     *gin.Engine
	initErr error
	once    sync.Once
)

// setupApp はGinアプリケーションを初期化します。
// サーバーレス環境では、リクエストごとに初期化が走らないようsync.Onceで一度だけ実行します。
func setupApp() (*gin.Engine, error) {
	once.Do(func() {
		// .envファイルはVercelの環境変数設定から読み込まれるため、ここではgodotenvを呼び出しません。
		cfg := config.LoadConfig()
		if os.Getenv("FARMADVISOR_SESSION_DB") == "" {
			// 書き込めるのは/tmpだけ
			cfg.SessionDBPath = filepath.Join(os.TempDir(), "farmadvisor", "session.db")
		}

		logger := logging.Must(cfg.Environment)
		gin.SetMode(gin.ReleaseMode)

		a, err := cli.NewApp(cfg, logger)
		if err != nil {
			logger.Error("failed to initialize application", zap.Error(err))
			initErr = err
			return
		}
		app = a.Router()
	})
	return app, initErr
}

// Handler はVercelのエントリーポイントです。
func Handler(w http.ResponseWriter, r *http.Request) {
	engine, err := setupApp()
	if err != nil {
		http.Error(w, `{"success":false,"error":"service unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	engine.ServeHTTP(w, r)
}
