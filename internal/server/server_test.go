package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"bluewell/internal/auth"
	"bluewell/internal/config"
	"bluewell/internal/database"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, authOpts auth.Options) http.Handler {
	t.Helper()

	db := database.NewMemoryService(database.NewMemoryStore())
	require.NoError(t, auth.InitAuthPackage(db.Queries(), authOpts))

	cfg := config.Config{
		Port:            8080,
		Location:        time.UTC,
		DefaultStepGoal: 8000,
		EstimateLogPath: filepath.Join(t.TempDir(), "estimates.jsonl"),
	}
	return NewServer(cfg, db).Handler
}

func TestHealthHandler(t *testing.T) {
	h := newTestHandler(t, auth.Options{DevAuthBypass: true, DevUserID: "dev"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "online", body["status"])
	db, ok := body["database"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "memory", db["backend"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newTestHandler(t, auth.Options{SessionSecret: "s3cret"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/survey", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	token, err := auth.GenerateAccessToken("user-7", "u7@duke.edu", "Sky")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/survey", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"completed":false`)
}

func TestDevBypassReportsMissingDiningData(t *testing.T) {
	h := newTestHandler(t, auth.Options{DevAuthBypass: true, DevUserID: "dev"})

	// No dining data is loaded, so plan generation reports the conflict.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/plan/today", nil))
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func TestAIRateLimiter(t *testing.T) {
	e := echo.New()
	e.GET("/limited", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("user_id", c.Request().Header.Get("X-User"))
			return next(c)
		}
	}, AIRateLimiter(1, 2))

	call := func(userID string) int {
		req := httptest.NewRequest(http.MethodGet, "/limited", nil)
		req.Header.Set("X-User", userID)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, call("a"))
	assert.Equal(t, http.StatusNoContent, call("a"))
	assert.Equal(t, http.StatusTooManyRequests, call("a"))

	// Budgets are per user.
	assert.Equal(t, http.StatusNoContent, call("b"))
}
