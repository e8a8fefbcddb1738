package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	// テスト用の環境変数を設定
	testCases := map[string]string{
		"PORT":                                "9090",
		"ENVIRONMENT":                         "test",
		"FARMADVISOR_API_URL":                 "https://advisor.example.com/",
		"FARMADVISOR_REQUEST_TIMEOUT":         "12s",
		"FARMADVISOR_MAX_FERTILIZER_QUANTITY": "300",
		"FARMADVISOR_HISTORY_PAGE_SIZE":       "25",
		"FARMADVISOR_MESSAGE_TTL":             "3",
		"FARMADVISOR_REPORT_MODE":             "Remote",
		"CORS_ALLOW_ORIGINS":                  "http://localhost:3000, http://127.0.0.1:3000",
	}

	// 環境変数を設定
	for key, value := range testCases {
		os.Setenv(key, value)
	}

	// テスト後にクリーンアップ
	defer func() {
		for key := range testCases {
			os.Unsetenv(key)
		}
	}()

	cfg := LoadConfig()

	if cfg.Port != "9090" {
		t.Errorf("Expected Port to be '9090', got '%s'", cfg.Port)
	}

	if cfg.Environment != "test" {
		t.Errorf("Expected Environment to be 'test', got '%s'", cfg.Environment)
	}

	if cfg.APIBaseURL != "https://advisor.example.com" {
		t.Errorf("Expected trailing slash to be trimmed, got '%s'", cfg.APIBaseURL)
	}

	if cfg.RequestTimeout != 12*time.Second {
		t.Errorf("Expected RequestTimeout to be 12s, got %v", cfg.RequestTimeout)
	}

	if cfg.MaxFertilizerQuantity != 300 {
		t.Errorf("Expected MaxFertilizerQuantity to be 300, got %v", cfg.MaxFertilizerQuantity)
	}

	if cfg.HistoryPageSize != 25 {
		t.Errorf("Expected HistoryPageSize to be 25, got %d", cfg.HistoryPageSize)
	}

	if cfg.MessageTTL != 3*time.Second {
		t.Errorf("Expected MessageTTL to be 3s, got %v", cfg.MessageTTL)
	}

	if cfg.ReportMode != "remote" {
		t.Errorf("Expected ReportMode to be 'remote', got '%s'", cfg.ReportMode)
	}

	if len(cfg.CORSAllowOrigins) != 2 || cfg.CORSAllowOrigins[1] != "http://127.0.0.1:3000" {
		t.Errorf("Unexpected CORSAllowOrigins: %v", cfg.CORSAllowOrigins)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	// 環境変数をクリア
	vars := []string{
		"PORT", "ENVIRONMENT", "FARMADVISOR_API_URL", "FARMADVISOR_REQUEST_TIMEOUT",
		"FARMADVISOR_MAX_FERTILIZER_QUANTITY", "FARMADVISOR_HISTORY_PAGE_SIZE",
		"FARMADVISOR_MESSAGE_TTL", "FARMADVISOR_REPORT_MODE", "CORS_ALLOW_ORIGINS",
	}

	for _, v := range vars {
		os.Unsetenv(v)
	}

	cfg := LoadConfig()

	// デフォルト値の検証
	if cfg.Port != "8080" {
		t.Errorf("Expected default Port to be '8080', got '%s'", cfg.Port)
	}

	if cfg.Environment != "development" {
		t.Errorf("Expected default Environment to be 'development', got '%s'", cfg.Environment)
	}

	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("Expected default RequestTimeout to be 30s, got %v", cfg.RequestTimeout)
	}

	if cfg.MaxFertilizerQuantity != 500 {
		t.Errorf("Expected default MaxFertilizerQuantity to be 500, got %v", cfg.MaxFertilizerQuantity)
	}

	if cfg.ReportMode != "local" {
		t.Errorf("Expected default ReportMode to be 'local', got '%s'", cfg.ReportMode)
	}

	if cfg.SessionDBPath == "" {
		t.Error("Expected a default session DB path")
	}
}

func TestMaxFertilizerQuantityIsClamped(t *testing.T) {
	testCases := []struct {
		value    string
		expected float64
	}{
		{"100", 200},
		{"350", 350},
		{"900", 500},
		{"abc", 500},
	}

	for _, tc := range testCases {
		os.Setenv("FARMADVISOR_MAX_FERTILIZER_QUANTITY", tc.value)
		cfg := LoadConfig()
		if cfg.MaxFertilizerQuantity != tc.expected {
			t.Errorf("FARMADVISOR_MAX_FERTILIZER_QUANTITY=%s: got %v, expected %v", tc.value, cfg.MaxFertilizerQuantity, tc.expected)
		}
	}
	os.Unsetenv("FARMADVISOR_MAX_FERTILIZER_QUANTITY")
}
