package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimiterPerKey(t *testing.T) {
	limiter := NewRateLimiter(1, 2)

	assert.True(t, limiter.Allow("1"))
	assert.True(t, limiter.Allow("1"))
	assert.False(t, limiter.Allow("1"), "burst exhausted")
	assert.True(t, limiter.Allow("2"), "keys are limited independently")
}

func TestRateLimiterCleanup(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	limiter.idle = time.Millisecond

	limiter.Allow("1")
	time.Sleep(5 * time.Millisecond)
	limiter.Cleanup()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Empty(t, limiter.limiters)
}

func TestRateLimiterMiddleware(t *testing.T) {
	limiter := NewRateLimiter(0.001, 1)
	router := gin.New()
	router.POST("/users/:user_id/trades", limiter.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	send := func(path string) int {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		return w.Code
	}

	assert.Equal(t, http.StatusCreated, send("/users/1/trades"))
	assert.Equal(t, http.StatusTooManyRequests, send("/users/1/trades"))
	assert.Equal(t, http.StatusCreated, send("/users/2/trades"))
}

func TestRequestIDAndLogger(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), RequestLogger(zap.NewNop()), CORS())
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, w.Header().Get("X-Request-ID"), w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/ping", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
