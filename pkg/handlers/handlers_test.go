package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"farmadvisor-client/internal/fakeapi"
	"farmadvisor-client/pkg/apiclient"
	"farmadvisor-client/pkg/charts"
	"farmadvisor-client/pkg/report"
	"farmadvisor-client/pkg/services"
	"farmadvisor-client/pkg/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	api    *fakeapi.Server
	router *gin.Engine
	charts *charts.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	api := fakeapi.New(t)
	store := session.NewStore(
		session.NewMemoryBackend(),
		session.NewCodec([]byte("0123456789abcdef0123456789abcdef"), []byte("abcdef0123456789")),
		zap.NewNop(),
	)
	monitor := services.NewMonitoringService(zap.NewNop())
	client := apiclient.New(apiclient.Options{BaseURL: api.URL, Timeout: 5 * time.Second, Observer: monitor}, store)
	manager := charts.NewManager(charts.NewGoChartRenderer(), 480, 300, zap.NewNop())
	notices := services.NewNoticeBoard(time.Minute)
	t.Cleanup(notices.Close)

	advisor := services.NewAdvisorService(client, store, manager, report.NewLocalAssembler(), notices,
		services.AdvisorOptions{MaxFertilizerQuantity: 500, HistoryPageSize: 10}, zap.NewNop())

	router := NewRouter(RouterOptions{
		Advisor:    NewAdvisorHandler(advisor, manager),
		Admin:      NewAdminHandler(advisor),
		Monitoring: NewMonitoringHandler(monitor),
		Monitor:    monitor,
	})
	return &testEnv{api: api, router: router, charts: manager}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T, email string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": email, "password": fakeapi.Password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

var exampleAnalysis = gin.H{
	"Temparature":         26,
	"Moisture":            45,
	"Soil_Type":           "Loamy",
	"Crop_Type":           "Maize",
	"Fertilizer_Name":     "Urea",
	"Fertilizer_Quantity": 30,
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestLoginAndSession(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	state := decode(t, w)["state"].(map[string]interface{})
	assert.Equal(t, "login", state["view"])

	w = env.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "farmer@example.com", "password": fakeapi.Password})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Empty(t, body["failed"])
	state = body["state"].(map[string]interface{})
	assert.Equal(t, "dashboard", state["view"])
	assert.Equal(t, "Nakuru", state["farm"].(map[string]interface{})["location"])

	w = env.do(t, http.MethodGet, "/api/v1/messages", nil)
	messages := decode(t, w)["messages"].([]interface{})
	require.NotEmpty(t, messages)
	assert.Equal(t, "Login successful!", messages[0].(map[string]interface{})["text"])
}

func TestLoginRequiresCredentials(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "farmer@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, env.api.Calls("/login"))

	w = env.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "farmer@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Invalid credentials", body["error"])
	assert.Equal(t, "rejected", body["kind"])
	assert.NotContains(t, body, "view")
}

func TestWrongPasswordKeepsCurrentSession(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "farmer@example.com")

	w := env.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "other@example.com", "password": "nope"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/session", nil)
	state := decode(t, w)["state"].(map[string]interface{})
	assert.Equal(t, "dashboard", state["view"])
	assert.NotNil(t, state["farm"])
}

func TestUpstreamUnauthenticatedReturnsLoginView(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "farmer@example.com")
	env.api.ExpireTokens()

	w := env.do(t, http.MethodGet, "/api/v1/history?page=1", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	body := decode(t, w)
	assert.Equal(t, "login", body["view"])
	assert.Equal(t, "Token has expired", body["error"])

	w = env.do(t, http.MethodGet, "/api/v1/session", nil)
	state := decode(t, w)["state"].(map[string]interface{})
	assert.Equal(t, "login", state["view"])
	assert.Nil(t, state["history"])
}

func TestSubmitAnalysisValidation(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "farmer@example.com")

	invalid := gin.H{}
	for k, v := range exampleAnalysis {
		invalid[k] = v
	}
	invalid["Fertilizer_Quantity"] = -5

	w := env.do(t, http.MethodPost, "/api/v1/analysis/validate", invalid)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/analysis", invalid)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_failed", decode(t, w)["kind"])
	assert.Equal(t, 0, env.api.Calls("/predict"))

	w = env.do(t, http.MethodPost, "/api/v1/analysis/validate", exampleAnalysis)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSubmitAnalysisRendersCharts(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "farmer@example.com")

	w := env.do(t, http.MethodGet, "/api/v1/charts/crop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, charts.NoDataPlaceholder, decode(t, w)["placeholder"])

	w = env.do(t, http.MethodPost, "/api/v1/analysis", exampleAnalysis)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Compatible", body["result"].(map[string]interface{})["compatibility"])

	for _, surface := range charts.Surfaces {
		w = env.do(t, http.MethodGet, "/api/v1/charts/"+string(surface), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")), surface)
	}

	w = env.do(t, http.MethodGet, "/api/v1/charts/unknown", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/analytics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, float64(1), body["analytics"].(map[string]interface{})["total_analyses"])
	assert.Len(t, body["charts"], len(charts.Surfaces))
	// ログイン時と分析後の2回だけ。タブ表示では取得し直さない
	assert.Equal(t, 2, env.api.Calls("/analytics"))
}

func TestResultAndReport(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "farmer@example.com")

	w := env.do(t, http.MethodGet, "/api/v1/analysis/result", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodGet, "/api/v1/analysis/report", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "no_result", decode(t, w)["kind"])

	w = env.do(t, http.MethodPost, "/api/v1/analysis", exampleAnalysis)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/analysis/result", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Maize", decode(t, w)["input"].(map[string]interface{})["Crop_Type"])

	w = env.do(t, http.MethodGet, "/api/v1/analysis/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "FarmReport_Maize_")
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotEmpty(t, w.Body.Bytes())
}

func TestHistoryAndDelete(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "farmer@example.com")
	for i := 0; i < 2; i++ {
		w := env.do(t, http.MethodPost, "/api/v1/analysis", exampleAnalysis)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := env.do(t, http.MethodGet, "/api/v1/history?page=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	records := decode(t, w)["history"].(map[string]interface{})["records"].([]interface{})
	require.Len(t, records, 2)
	id := records[0].(map[string]interface{})["id"].(string)

	w = env.do(t, http.MethodDelete, "/api/v1/history/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	records = decode(t, w)["history"].(map[string]interface{})["records"].([]interface{})
	assert.Len(t, records, 1)
	assert.Equal(t, 1, env.api.RecordCount())

	w = env.do(t, http.MethodDelete, "/api/v1/history/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBusyAnalysisReturnsConflict(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "farmer@example.com")

	entered, release := env.api.Hold("/predict")
	defer release()

	done := make(chan int, 1)
	go func() {
		done <- env.do(t, http.MethodPost, "/api/v1/analysis", exampleAnalysis).Code
	}()
	<-entered

	w := env.do(t, http.MethodPost, "/api/v1/analysis", exampleAnalysis)
	assert.Equal(t, http.StatusConflict, w.Code)

	release()
	assert.Equal(t, http.StatusOK, <-done)
}

func TestFarmEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "farmer@example.com")

	w := env.do(t, http.MethodPost, "/api/v1/farm", gin.H{"location": "Eldoret", "farm_size": 4, "soil_type": "Red"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Eldoret", decode(t, w)["farm"].(map[string]interface{})["location"])

	w = env.do(t, http.MethodGet, "/api/v1/farm?refresh=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Red", decode(t, w)["farm"].(map[string]interface{})["soil_type"])

	w = env.do(t, http.MethodGet, "/api/v1/config/options", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(500), body["max_quantity"])
	assert.Equal(t, false, body["options"].(map[string]interface{})["static"])
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "farmer@example.com")

	w := env.do(t, http.MethodGet, "/api/v1/admin/users", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(t, http.MethodPost, "/api/v1/admin/maintenance/start", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := newTestEnv(t)
	admin.login(t, "admin@example.com")

	w = admin.do(t, http.MethodGet, "/api/v1/admin/users", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["users"], 2)

	w = admin.do(t, http.MethodPost, "/api/v1/admin/config/crop", gin.H{"item": "Ground Nuts"})
	require.Equal(t, http.StatusOK, w.Code)
	w = admin.do(t, http.MethodDelete, "/api/v1/admin/config/crop-types/Ground%20Nuts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = admin.do(t, http.MethodPost, "/api/v1/admin/config/colors", gin.H{"item": "Blue"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = admin.do(t, http.MethodPost, "/api/v1/admin/maintenance/start", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = admin.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = admin.do(t, http.MethodPost, "/api/v1/admin/maintenance/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = admin.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMonitoringLogs(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "farmer@example.com")

	w := env.do(t, http.MethodGet, "/api/v1/monitoring/logs?period=1h&direction=outbound", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var data services.DashboardData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &data))
	require.NotEmpty(t, data.Endpoints)
	for _, e := range data.Endpoints {
		assert.Equal(t, services.Outbound, e.Direction)
	}
	assert.Len(t, data.RequestsOverTime, 1)

	w = env.do(t, http.MethodGet, "/api/v1/monitoring/logs?direction=inbound", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &data))
	require.Len(t, data.Endpoints, 1)
	assert.Equal(t, "POST /api/v1/auth/login", data.Endpoints[0].Endpoint)
}
