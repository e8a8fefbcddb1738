// Package logging はアプリケーション全体で使うzapロガーを生成します。
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New は環境に応じたロガーを生成します。
// production では JSON 形式、それ以外は人が読みやすい開発用フォーマットになります。
func New(environment string) (*zap.Logger, error) {
	if environment == "production" {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg.Build()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg.Build()
}

// Must は New が失敗した場合に Nop ロガーへフォールバックします。
func Must(environment string) *zap.Logger {
	logger, err := New(environment)
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
