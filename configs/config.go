package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// MinFertilizerQuantityCap 施肥量上限として許容する最小値
	MinFertilizerQuantityCap = 200.0
	// MaxFertilizerQuantityCap 施肥量上限として許容する最大値
	MaxFertilizerQuantityCap = 500.0
)

// Config holds the application configuration
type Config struct {
	Port                  string
	Environment           string
	APIBaseURL            string
	RequestTimeout        time.Duration
	MaxFertilizerQuantity float64
	HistoryPageSize       int
	SessionDBPath         string
	SessionHashKey        string
	SessionBlockKey       string
	MessageTTL            time.Duration
	ReportMode            string
	ChartWidth            int
	ChartHeight           int
	CORSAllowOrigins      []string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Port:                  getEnv("PORT", "8080"),
		Environment:           getEnv("ENVIRONMENT", "development"),
		APIBaseURL:            strings.TrimSuffix(getEnv("FARMADVISOR_API_URL", "https://fertilizer-backend-jj59.onrender.com"), "/"),
		RequestTimeout:        getEnvDuration("FARMADVISOR_REQUEST_TIMEOUT", 30*time.Second),
		MaxFertilizerQuantity: clampQuantityCap(getEnvFloat("FARMADVISOR_MAX_FERTILIZER_QUANTITY", MaxFertilizerQuantityCap)),
		HistoryPageSize:       getEnvInt("FARMADVISOR_HISTORY_PAGE_SIZE", 10),
		SessionDBPath:         getEnv("FARMADVISOR_SESSION_DB", defaultSessionDBPath()),
		SessionHashKey:        getEnv("FARMADVISOR_SESSION_HASH_KEY", ""),
		SessionBlockKey:       getEnv("FARMADVISOR_SESSION_BLOCK_KEY", ""),
		MessageTTL:            getEnvDuration("FARMADVISOR_MESSAGE_TTL", 5*time.Second),
		ReportMode:            strings.ToLower(getEnv("FARMADVISOR_REPORT_MODE", "local")),
		ChartWidth:            getEnvInt("FARMADVISOR_CHART_WIDTH", 640),
		ChartHeight:           getEnvInt("FARMADVISOR_CHART_HEIGHT", 360),
		CORSAllowOrigins:      splitList(getEnv("CORS_ALLOW_ORIGINS", "")),
	}
}

// IsProduction 本番環境かどうか
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt 整数の環境変数を取得（解析できない場合はデフォルト値）
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

// getEnvFloat 小数の環境変数を取得
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration "30s" 形式、または秒数の整数を受け付ける
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}

func clampQuantityCap(v float64) float64 {
	if v < MinFertilizerQuantityCap {
		return MinFertilizerQuantityCap
	}
	if v > MaxFertilizerQuantityCap {
		return MaxFertilizerQuantityCap
	}
	return v
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// defaultSessionDBPath ~/.farmadvisor/session.db（ホームが取れない場合はカレント）
func defaultSessionDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".farmadvisor", "session.db")
	}
	return filepath.Join(home, ".farmadvisor", "session.db")
}
