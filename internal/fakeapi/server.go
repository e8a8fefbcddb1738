// Package fakeapi はテスト用のファームアドバイザーAPIです。
//
// 実サービスと同じエンドポイントと応答形式をメモリ上の状態で再現し、
// 失敗・遅延・トークン失効をテストから注入できます。
package fakeapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// 固定の認証情報
const (
	Token      = "test-token"
	AdminToken = "admin-token"
	Password   = "secret123"
)

type record struct {
	ID            string
	UserID        string
	CropType      string
	Fertilizer    string
	Quantity      float64
	Compatibility string
	QuantityState string
	Score         float64
	Risk          float64
	Timestamp     time.Time
}

type failure struct {
	status  int
	message string
}

// Server テスト用のAPIサーバー
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	expired   bool
	farm      map[string]interface{}
	records   []record
	nextID    int
	config    map[string][]string
	calls     map[string]int
	failures  map[string]failure
	gates     map[string]chan struct{}
	entered   map[string]chan struct{}
	lastInput map[string]interface{}
}

// New サーバーを起動する。テスト終了時に自動で停止します
func New(t interface{ Cleanup(func()) }) *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		farm: map[string]interface{}{
			"location":      "Nakuru",
			"farm_size":     2.5,
			"soil_type":     "Loamy",
			"primary_crops": []string{"Maize"},
			"temperature":   24.0,
			"humidity":      55.0,
		},
		config: map[string][]string{
			"soil-types":       {"Loamy", "Sandy", "Clayey"},
			"crop-types":       {"Maize", "Wheat", "Paddy"},
			"fertilizer-names": {"Urea", "DAP", "17-17-17"},
		},
		calls:    make(map[string]int),
		failures: make(map[string]failure),
		gates:    make(map[string]chan struct{}),
		entered:  make(map[string]chan struct{}),
	}

	r := gin.New()
	r.Use(s.track())
	r.POST("/login", s.login)
	r.POST("/register", s.register)

	auth := r.Group("/", s.authenticate())
	auth.GET("/config/:kind", s.configList)
	auth.GET("/farm/profile", s.farmProfile)
	auth.POST("/farm/update", s.updateFarm)
	auth.POST("/predict", s.predict)
	auth.GET("/history", s.history)
	auth.DELETE("/history/:id", s.deleteHistory)
	auth.GET("/analytics", s.analytics)
	auth.POST("/generate-report", s.generateReport)

	admin := auth.Group("/admin", s.requireAdmin())
	admin.GET("/users", s.adminUsers)
	admin.GET("/analytics/:id", s.adminAnalytics)
	admin.GET("/history/:id", s.adminHistory)
	admin.POST("/config/:kind", s.adminAddConfig)
	admin.DELETE("/config/:kind/:item", s.adminRemoveConfig)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Server.Close)
	return s
}

// --- テストからの操作 ---

// Calls パスへの呼び出し回数
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// Fail パスへの呼び出しを指定ステータスで失敗させる
func (s *Server) Fail(path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = failure{status: status, message: message}
}

// Recover Fail を解除する
func (s *Server) Recover(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, path)
}

// ExpireTokens 以降のリクエストを 401 にする
func (s *Server) ExpireTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired = true
}

// Hold パスへの次のリクエストを release が呼ばれるまで止める
// entered はリクエストが到着した時点で閉じられます。
func (s *Server) Hold(path string) (entered <-chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate := make(chan struct{})
	arrived := make(chan struct{})
	s.gates[path] = gate
	s.entered[path] = arrived
	var once sync.Once
	return arrived, func() { once.Do(func() { close(gate) }) }
}

// LastPredictInput 最後に /predict が受け取ったJSON
func (s *Server) LastPredictInput() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastInput
}

// RecordCount 保存済みの履歴件数
func (s *Server) RecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// --- ミドルウェア ---

func (s *Server) track() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		s.mu.Lock()
		s.calls[path]++
		f, failing := s.failures[path]
		gate := s.gates[path]
		arrived := s.entered[path]
		delete(s.gates, path)
		delete(s.entered, path)
		s.mu.Unlock()

		if gate != nil {
			close(arrived)
			select {
			case <-gate:
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}
		if failing {
			c.AbortWithStatusJSON(f.status, gin.H{"success": false, "message": f.message})
			return
		}
		c.Next()
	}
}

func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		s.mu.Lock()
		expired := s.expired
		s.mu.Unlock()

		if header == "" || (token != Token && token != AdminToken) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Token is missing"})
			return
		}
		if expired {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Token has expired"})
			return
		}
		c.Set("user_id", userIDFor(token))
		c.Set("admin", token == AdminToken)
		c.Next()
	}
}

func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool("admin") {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Admin access required"})
			return
		}
		c.Next()
	}
}

func userIDFor(token string) string {
	if token == AdminToken {
		return "admin-1"
	}
	return "user-1"
}

// --- 認証 ---

func (s *Server) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email and password required"})
		return
	}
	if req.Password != Password {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, s.authPayload(req.Email, ""))
}

func (s *Server) register(c *gin.Context) {
	var req map[string]interface{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}
	email, _ := req["email"].(string)
	name, _ := req["name"].(string)
	if strings.HasPrefix(email, "taken") {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email already registered"})
		return
	}
	c.JSON(http.StatusCreated, s.authPayload(email, name))
}

func (s *Server) authPayload(email, name string) gin.H {
	admin := strings.HasPrefix(email, "admin")
	token := Token
	if admin {
		token = AdminToken
	}
	s.mu.Lock()
	s.expired = false
	farm := copyMap(s.farm)
	s.mu.Unlock()
	return gin.H{
		"success": true,
		"token":   token,
		"user": gin.H{
			"id":           userIDFor(token),
			"email":        email,
			"name":         name,
			"is_admin":     admin,
			"farm_details": farm,
		},
	}
}

// --- 設定・農場 ---

func (s *Server) configList(c *gin.Context) {
	s.mu.Lock()
	items, ok := s.config[c.Param("kind")]
	out := append([]string(nil), items...)
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Unknown config"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": out})
}

func (s *Server) farmProfile(c *gin.Context) {
	s.mu.Lock()
	farm := copyMap(s.farm)
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"success": true, "farm_details": farm})
}

func (s *Server) updateFarm(c *gin.Context) {
	var req map[string]interface{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid farm details"})
		return
	}
	s.mu.Lock()
	for k, v := range req {
		s.farm[k] = v
	}
	farm := copyMap(s.farm)
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"success": true, "farm_details": farm})
}

// --- 予測・履歴 ---

func (s *Server) predict(c *gin.Context) {
	var input map[string]interface{}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid input"})
		return
	}
	crop, _ := input["Crop_Type"].(string)
	fertilizer, _ := input["Fertilizer_Name"].(string)
	quantity, _ := input["Fertilizer_Quantity"].(float64)

	compatibility, quantityStatus, score, risk := "Compatible", "Optimal", 85.0, 15.0
	if quantity > 100 {
		compatibility, quantityStatus, score, risk = "Partially Compatible", "Excessive", 55.0, 60.0
	}

	s.mu.Lock()
	s.lastInput = input
	s.nextID++
	rec := record{
		ID:            "rec-" + strconv.Itoa(s.nextID),
		UserID:        userIDFor(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")),
		CropType:      crop,
		Fertilizer:    fertilizer,
		Quantity:      quantity,
		Compatibility: compatibility,
		QuantityState: quantityStatus,
		Score:         score,
		Risk:          risk,
		Timestamp:     time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC).Add(time.Duration(s.nextID) * 24 * time.Hour),
	}
	s.records = append(s.records, rec)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result": gin.H{
			"compatibility":    compatibility,
			"reason":           fmt.Sprintf("%s suits %s under the given conditions", fertilizer, crop),
			"quantity_status":  quantityStatus,
			"quantity_reason":  "Recommended range: 20-100 kg",
			"recommendations":  []string{"Apply in the early morning", "Irrigate after application"},
			"efficiency_score": score,
			"risk_score":       risk,
		},
		"input": input,
	})
}

func (s *Server) history(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	c.JSON(http.StatusOK, s.historyPayload(c.GetString("user_id"), page, limit))
}

func (s *Server) historyPayload(userID string, page, limit int) gin.H {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 新しい順
	mine := make([]record, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].UserID == userID {
			mine = append(mine, s.records[i])
		}
	}
	totalPages := (len(mine) + limit - 1) / limit
	if totalPages == 0 {
		totalPages = 1
	}
	start := (page - 1) * limit
	if start > len(mine) {
		start = len(mine)
	}
	end := start + limit
	if end > len(mine) {
		end = len(mine)
	}

	items := make([]gin.H, 0, end-start)
	for _, r := range mine[start:end] {
		items = append(items, gin.H{
			"id":            r.ID,
			"crop_type":     r.CropType,
			"fertilizer":    r.Fertilizer,
			"quantity":      r.Quantity,
			"compatibility": r.Compatibility,
			"score":         r.Score,
			"timestamp":     r.Timestamp.Format("2006-01-02T15:04:05.000000"),
		})
	}
	return gin.H{
		"success":     true,
		"history":     items,
		"page":        page,
		"total_pages": totalPages,
		"limit":       limit,
	}
}

func (s *Server) deleteHistory(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.records {
		if r.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			c.JSON(http.StatusOK, gin.H{"success": true})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Record not found"})
}

// --- 分析統計 ---

func (s *Server) analytics(c *gin.Context) {
	c.Data(http.StatusOK, "application/json", s.analyticsPayload(c.GetString("user_id")))
}

// analyticsPayload 分布のキー順を保つためJSONを手で組み立てる
func (s *Server) analyticsPayload(userID string) []byte {
	s.mu.Lock()
	var mine []record
	for _, r := range s.records {
		if r.UserID == userID {
			mine = append(mine, r)
		}
	}
	s.mu.Unlock()

	var byCrop, byFertilizer, byCompatibility, byQuantity orderedCounts
	dates := make([]string, 0, len(mine))
	quantities := make([]float64, 0, len(mine))
	risks := make([]float64, 0, len(mine))
	compatible, scoreSum := 0, 0.0
	for _, r := range mine {
		byCrop.add(r.CropType)
		byFertilizer.add(r.Fertilizer)
		byCompatibility.add(r.Compatibility)
		byQuantity.add(r.QuantityState)
		dates = append(dates, r.Timestamp.Format("2006-01-02"))
		quantities = append(quantities, r.Quantity)
		risks = append(risks, r.Risk)
		scoreSum += r.Score
		if r.Compatibility == "Compatible" {
			compatible++
		}
	}
	successRate, avg := 0.0, 0.0
	if len(mine) > 0 {
		successRate = float64(compatible) / float64(len(mine)) * 100
		avg = scoreSum / float64(len(mine))
	}

	series, _ := json.Marshal(map[string]interface{}{"dates": dates, "quantities": quantities, "risk_scores": risks})

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"success":true,"analytics":{"total_analyses":%d,"success_rate":%g,"average_efficiency":%g,`, len(mine), successRate, avg)
	fmt.Fprintf(&buf, `"by_crop":%s,"by_fertilizer":%s,"by_compatibility":%s,"by_quantity_status":%s,"time_series":%s}}`,
		byCrop.json(), byFertilizer.json(), byCompatibility.json(), byQuantity.json(), series)
	return buf.Bytes()
}

type orderedCounts struct {
	keys   []string
	counts map[string]int
}

func (o *orderedCounts) add(key string) {
	if o.counts == nil {
		o.counts = make(map[string]int)
	}
	if _, ok := o.counts[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.counts[key]++
}

func (o *orderedCounts) json() string {
	parts := make([]string, 0, len(o.keys))
	for _, k := range o.keys {
		name, _ := json.Marshal(k)
		parts = append(parts, fmt.Sprintf("%s:%d", name, o.counts[k]))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// --- レポート ---

func (s *Server) generateReport(c *gin.Context) {
	var req struct {
		Result map[string]interface{} `json:"result"`
		Input  map[string]interface{} `json:"input"`
		Farmer string                 `json:"farmer"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Result == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Result is required"})
		return
	}
	html := fmt.Sprintf(`<html><body><h1 class="title">Farm Report</h1><p>Farmer: %s</p><p>Compatibility: %v</p><script>track()</script></body></html>`,
		req.Farmer, req.Result["compatibility"])
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// --- 管理者 ---

func (s *Server) adminUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"users": []gin.H{
			{"_id": "user-1", "email": "farmer@example.com", "name": "Amina", "is_admin": false},
			{"_id": "admin-1", "email": "admin@example.com", "name": "Admin", "is_admin": true},
		},
	})
}

func (s *Server) adminAnalytics(c *gin.Context) {
	c.Data(http.StatusOK, "application/json", s.analyticsPayload(c.Param("id")))
}

func (s *Server) adminHistory(c *gin.Context) {
	c.JSON(http.StatusOK, s.historyPayload(c.Param("id"), 1, 50))
}

func (s *Server) adminAddConfig(c *gin.Context) {
	var req struct {
		Item string `json:"item"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Item == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Item is required"})
		return
	}
	s.mu.Lock()
	s.config[c.Param("kind")] = append(s.config[c.Param("kind")], req.Item)
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) adminRemoveConfig(c *gin.Context) {
	kind, item := c.Param("kind"), c.Param("item")
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.config[kind]
	for i, v := range items {
		if v == item {
			s.config[kind] = append(items[:i], items[i+1:]...)
			c.JSON(http.StatusOK, gin.H{"success": true})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Item not found"})
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
