package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"crmhub/pkg/config"
	codes "crmhub/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2})

	assert.True(t, rl.Allow("user:1"))
	assert.True(t, rl.Allow("user:1"))
	assert.False(t, rl.Allow("user:1"))
	// 不同 key 互不影响
	assert.True(t, rl.Allow("user:2"))
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 0.5, Burst: 1})
	r := gin.New()
	r.POST("/roles", func(c *gin.Context) {
		if id := c.GetHeader("X-User"); id != "" {
			n, _ := strconv.ParseUint(id, 10, 32)
			c.Set(ctxUserID, uint(n))
		}
		c.Next()
	}, rl.Middleware(), ok)

	send := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/roles", nil)
		if user != "" {
			req.Header.Set("X-User", user)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	first := send("7")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Contains(t, first.Body.String(), `"code":200`)

	limited := send("7")
	assert.Contains(t, limited.Body.String(), `"code":`+strconv.Itoa(codes.CodeTooManyRequests))
	assert.Equal(t, "2", limited.Header().Get("Retry-After"))

	// 另一个用户与匿名请求各有独立额度
	assert.Contains(t, send("8").Body.String(), `"code":200`)
	assert.Contains(t, send("").Body.String(), `"code":200`)
}

func TestRateLimiter_MinimumBurst(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 0})
	assert.True(t, rl.Allow("ip:127.0.0.1"))
	assert.False(t, rl.Allow("ip:127.0.0.1"))
}
