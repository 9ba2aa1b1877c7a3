package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ownafarm/ownafarm-gateway/internal/apikey"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(hashes []string) *gin.Engine {
	router := gin.New()
	router.Use(APIKeyAuth(hashes))
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func TestAPIKeyAuthOpenWhenUnconfigured(t *testing.T) {
	router := newAuthRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyAuthAcceptsValidKey(t *testing.T) {
	fullKey, _, err := apikey.Generate()
	require.NoError(t, err)
	hash, err := apikey.Hash(fullKey)
	require.NoError(t, err)
	router := newAuthRouter([]string{hash})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-API-Key", fullKey)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyAuthRejectsMissingOrWrongKey(t *testing.T) {
	fullKey, _, err := apikey.Generate()
	require.NoError(t, err)
	hash, err := apikey.Hash(fullKey)
	require.NoError(t, err)
	router := newAuthRouter([]string{hash})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-API-Key", "ofg_wrongkey")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimiterEnforcesBurst(t *testing.T) {
	router := gin.New()
	router.Use(NewRateLimiter(1, 2).Middleware())
	router.GET("/work", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/work", nil)
		req.Header.Set("X-Forwarded-For", "10.0.0.1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiterExemptsHealth(t *testing.T) {
	router := gin.New()
	router.Use(NewRateLimiter(1, 1).Middleware())
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	router := gin.New()
	router.Use(NewRateLimiter(1, 1).Middleware())
	router.GET("/work", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/work", nil)
		req.Header.Set("X-Forwarded-For", ip)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1"))
	// A different client has its own budget.
	assert.Equal(t, http.StatusOK, send("10.0.0.2"))
}
