package services

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxLogEntries 保持するログの上限（古いものから捨てる）
const maxLogEntries = 2000

// Direction 通信の向き
type Direction string

const (
	// Inbound UIからBFFへのリクエスト
	Inbound Direction = "inbound"
	// Outbound BFFからファームアドバイザーAPIへの呼び出し
	Outbound Direction = "outbound"
)

// LogEntry は単一のリクエストログを表します。
type LogEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	Direction    Direction     `json:"direction"`
	Path         string        `json:"path"`
	Method       string        `json:"method"`
	StatusCode   int           `json:"status_code"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
}

func (e LogEntry) failed() bool {
	return e.StatusCode >= 500 || e.StatusCode == 0 || e.Error != ""
}

// MonitoringService はBFFへのリクエストとAPI呼び出しを記録します。
type MonitoringService struct {
	logger *zap.Logger

	mu   sync.RWMutex
	logs []LogEntry
}

// NewMonitoringService は新しいMonitoringServiceを生成します。
func NewMonitoringService(logger *zap.Logger) *MonitoringService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MonitoringService{
		logger: logger,
		logs:   make([]LogEntry, 0),
	}
}

// LogRequest はリクエストを記録します。
func (s *MonitoringService) LogRequest(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	if over := len(s.logs) - maxLogEntries; over > 0 {
		s.logs = append(s.logs[:0], s.logs[over:]...)
	}
}

// ObserveCall はAPIクライアントからの呼び出し結果を記録します。
func (s *MonitoringService) ObserveCall(method, path string, status int, elapsed time.Duration, err error) {
	entry := LogEntry{
		Timestamp:    time.Now().Add(-elapsed),
		Direction:    Outbound,
		Path:         stripQuery(path),
		Method:       method,
		StatusCode:   status,
		ResponseTime: elapsed,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	s.LogRequest(entry)
}

// LoggingMiddleware はリクエスト情報を記録するGinミドルウェアです。
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.Request.URL.Path
		elapsed := time.Since(start)
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", elapsed),
		)

		// モニタリング画面自身へのアクセスは集計しない
		if strings.HasPrefix(path, "/api/v1/monitoring") {
			return
		}
		entry := LogEntry{
			Timestamp:    start,
			Direction:    Inbound,
			Path:         path,
			Method:       c.Request.Method,
			StatusCode:   c.Writer.Status(),
			ResponseTime: elapsed,
		}
		if len(c.Errors) > 0 {
			entry.Error = c.Errors.String()
		}
		s.LogRequest(entry)
	}
}

// EndpointStat エンドポイントごとの集計
type EndpointStat struct {
	Direction      Direction `json:"direction"`
	Endpoint       string    `json:"endpoint"`
	Requests       int       `json:"requests"`
	AvgResponseMs  int64     `json:"avg_response_ms"`
	Failures       int       `json:"failures"`
	LastStatusCode int       `json:"last_status_code"`
}

// DashboardData はダッシュボードに表示するための集計済みデータです。
type DashboardData struct {
	RequestsOverTime []map[string]interface{} `json:"requestsOverTime"`
	StatusCodes      []map[string]interface{} `json:"statusCodes"`
	Endpoints        []EndpointStat           `json:"endpoints"`
	RecentErrors     []LogEntry               `json:"recentErrors"`
}

// GetDashboardData は指定された期間のログを集計してダッシュボード用データを返します。
func (s *MonitoringService) GetDashboardData(periodHours int) DashboardData {
	if periodHours <= 0 {
		periodHours = 24
	}

	s.mu.RLock()
	now := time.Now()
	since := now.Add(-time.Duration(periodHours) * time.Hour)
	filtered := make([]LogEntry, 0, len(s.logs))
	for _, log := range s.logs {
		if log.Timestamp.After(since) {
			filtered = append(filtered, log)
		}
	}
	s.mu.RUnlock()

	// 時間ごとの件数（過去から現在の順）
	requestsOverTime := make([]map[string]interface{}, periodHours)
	bucketIndex := make(map[int64]int, periodHours)
	for i := 0; i < periodHours; i++ {
		hour := now.Add(-time.Duration(periodHours-1-i) * time.Hour).Truncate(time.Hour)
		bucketIndex[hour.Unix()] = i
		requestsOverTime[i] = map[string]interface{}{"time": hour.Format("15:00"), "requests": 0}
	}
	for _, log := range filtered {
		if i, ok := bucketIndex[log.Timestamp.Truncate(time.Hour).Unix()]; ok {
			requestsOverTime[i]["requests"] = requestsOverTime[i]["requests"].(int) + 1
		}
	}

	// ステータスコードの分類
	classes := []string{"2xx Success", "4xx Client Error", "5xx Server Error", "No Response"}
	classCounts := make(map[string]int, len(classes))
	for _, log := range filtered {
		switch {
		case log.StatusCode >= 200 && log.StatusCode < 300:
			classCounts[classes[0]]++
		case log.StatusCode >= 400 && log.StatusCode < 500:
			classCounts[classes[1]]++
		case log.StatusCode >= 500:
			classCounts[classes[2]]++
		case log.StatusCode == 0:
			classCounts[classes[3]]++
		}
	}
	statusCodes := make([]map[string]interface{}, 0, len(classes))
	for _, name := range classes {
		statusCodes = append(statusCodes, map[string]interface{}{"name": name, "value": classCounts[name]})
	}

	// エンドポイント別
	type accumulator struct {
		stat  EndpointStat
		total time.Duration
	}
	byEndpoint := make(map[string]*accumulator)
	for _, log := range filtered {
		key := string(log.Direction) + " " + log.Method + " " + log.Path
		acc, ok := byEndpoint[key]
		if !ok {
			acc = &accumulator{stat: EndpointStat{Direction: log.Direction, Endpoint: log.Method + " " + log.Path}}
			byEndpoint[key] = acc
		}
		acc.stat.Requests++
		acc.total += log.ResponseTime
		acc.stat.LastStatusCode = log.StatusCode
		if log.failed() {
			acc.stat.Failures++
		}
	}
	endpoints := make([]EndpointStat, 0, len(byEndpoint))
	for _, acc := range byEndpoint {
		acc.stat.AvgResponseMs = acc.total.Milliseconds() / int64(acc.stat.Requests)
		endpoints = append(endpoints, acc.stat)
	}
	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].Requests != endpoints[j].Requests {
			return endpoints[i].Requests > endpoints[j].Requests
		}
		return endpoints[i].Endpoint < endpoints[j].Endpoint
	})

	// 直近のエラー（新しい順に最大10件）
	recentErrors := make([]LogEntry, 0)
	for i := len(filtered) - 1; i >= 0 && len(recentErrors) < 10; i-- {
		if filtered[i].failed() {
			recentErrors = append(recentErrors, filtered[i])
		}
	}

	return DashboardData{
		RequestsOverTime: requestsOverTime,
		StatusCodes:      statusCodes,
		Endpoints:        endpoints,
		RecentErrors:     recentErrors,
	}
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
