package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	config "farmadvisor-client/configs"
	"farmadvisor-client/internal/cli"
	"farmadvisor-client/internal/fakeapi"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestApp(t *testing.T) *cli.App {
	t.Helper()
	api := fakeapi.New(t)

	cfg := config.LoadConfig()
	cfg.APIBaseURL = api.URL
	cfg.SessionDBPath = filepath.Join(t.TempDir(), "session.db")
	cfg.SessionHashKey = ""
	cfg.SessionBlockKey = ""

	app, err := cli.NewApp(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

func TestApplicationSetup(t *testing.T) {
	app := newTestApp(t)
	assert.NotNil(t, app.Advisor)
	assert.NotNil(t, app.Charts)
	_, ok := app.Session.Credential()
	assert.False(t, ok)
}

func TestRouterSetup(t *testing.T) {
	r := newTestApp(t).Router()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/v1/config/options", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Maize")
}
