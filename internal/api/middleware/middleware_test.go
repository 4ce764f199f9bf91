package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replaykit/replayd/internal/infrastructure/logging"
)

func newRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw)
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pong": true})
	})
	return r
}

func get(r *gin.Engine, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitPerIP(t *testing.T) {
	r := newRouter(RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 1}))

	w := get(r, "10.0.0.1:5000", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = get(r, "10.0.0.1:5000", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate limit exceeded")

	// A different caller has its own bucket.
	w = get(r, "10.0.0.2:5000", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGlobalRateLimitSharesOneBucket(t *testing.T) {
	r := newRouter(GlobalRateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 1}))

	w := get(r, "10.0.0.1:5000", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = get(r, "10.0.0.2:5000", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestLimiterScopeSelection(t *testing.T) {
	perIP := newRouter(Limiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, Scope: "per_ip"}))
	require.Equal(t, http.StatusOK, get(perIP, "10.0.0.1:1", nil).Code)
	assert.Equal(t, http.StatusOK, get(perIP, "10.0.0.2:1", nil).Code)

	global := newRouter(Limiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, Scope: "global"}))
	require.Equal(t, http.StatusOK, get(global, "10.0.0.1:1", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(global, "10.0.0.2:1", nil).Code)
}

func TestLimiterPoolSweepsIdleClients(t *testing.T) {
	pool := newLimiterPool(RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	pool.ttl = 10 * time.Millisecond

	start := time.Now()
	pool.allow("10.0.0.1", start)
	require.Len(t, pool.clients, 1)

	// The next request lands after the TTL; the idle entry goes away.
	pool.allow("10.0.0.2", start.Add(50*time.Millisecond))
	assert.Len(t, pool.clients, 1)
	_, ok := pool.clients["10.0.0.2"]
	assert.True(t, ok)
}

func TestTraceAssignsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Trace(logging.NewNop()))
	var seen string
	r.GET("/ping", func(c *gin.Context) {
		seen = RequestID(c)
		c.JSON(http.StatusOK, gin.H{"pong": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.Equal(t, http.StatusOK, w.Code)
	echoed := w.Header().Get(TraceHeader)
	assert.True(t, strings.HasPrefix(echoed, "req_"), "unexpected request id %q", echoed)
	assert.Equal(t, echoed, seen)
}

func TestTraceKeepsCallerSuppliedID(t *testing.T) {
	r := newRouter(Trace(logging.NewNop()))

	w := get(r, "10.0.0.1:5000", map[string]string{TraceHeader: "req_from_caller"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req_from_caller", w.Header().Get(TraceHeader))
}

func TestCORSPreflightAndSimpleRequest(t *testing.T) {
	r := newRouter(CORS(DefaultCORSConfig()))

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = get(r, "10.0.0.1:5000", map[string]string{"Origin": "http://dashboard.local"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
