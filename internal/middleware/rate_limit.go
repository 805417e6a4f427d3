package middleware

import (
	"fmt"
	"math"
	"sync"
	"time"

	"crmhub/pkg/config"
	"crmhub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	rateLimiterCapacity = 10000
	rateLimiterIdleTTL  = 10 * time.Minute
)

// RateLimiter 按用户（未登录时按IP）限流，空闲的限流器由 LRU 过期淘汰
type RateLimiter struct {
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
	r        rate.Limit
	burst    int
}

// NewRateLimiter 创建限流器
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: expirable.NewLRU[string, *rate.Limiter](rateLimiterCapacity, nil, rateLimiterIdleTTL),
		r:        rate.Limit(cfg.RequestsPerSecond),
		burst:    burst,
	}
}

// Allow key 是否仍在限额内
func (rl *RateLimiter) Allow(key string) bool {
	return rl.limiter(key).Allow()
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.limiters.Get(key)
	if !ok {
		l = rate.NewLimiter(rl.r, rl.burst)
	}
	// 每次访问刷新过期时间
	rl.limiters.Add(key, l)
	return l
}

// Middleware 超限时返回 429
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if userID, ok := CurrentUserID(c); ok {
			key = fmt.Sprintf("user:%d", userID)
		}

		if !rl.Allow(key) {
			retry := 1
			if rl.r > 0 {
				retry = int(math.Ceil(1 / float64(rl.r)))
			}
			c.Header("Retry-After", fmt.Sprintf("%d", retry))
			response.TooManyRequests(c, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}
		c.Next()
	}
}
