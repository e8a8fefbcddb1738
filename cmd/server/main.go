// Command server はFarmAdvisorのJSON APIだけを起動するサーバーです。
// コンテナ配備など、CLIを同梱しない環境で使います。
package main

import (
	"log"

	config "farmadvisor-client/configs"
	"farmadvisor-client/internal/cli"
	"farmadvisor-client/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	cfg := config.LoadConfig()
	logger := logging.Must(cfg.Environment)
	defer logger.Sync() //nolint:errcheck

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := cli.NewApp(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}
	defer app.Close()

	r := app.Router()

	logger.Info("starting server", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("failed to run server", zap.Error(err))
	}
}
