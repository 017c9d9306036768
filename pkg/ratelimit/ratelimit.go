// Package ratelimit 对登录、注册等匿名接口按IP限流
package ratelimit

import (
	"context"
	"sync"
	"time"

	"vst-portal/pkg/logger"
	"vst-portal/pkg/redis"
	"vst-portal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limiter 判断某个key是否允许通过
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter 基于Redis的固定窗口限流，多实例共享计数
type RedisLimiter struct {
	limit  int64
	window time.Duration
}

// NewRedisLimiter 创建Redis限流器
func NewRedisLimiter(limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{limit: int64(limit), window: window}
}

// Allow 计数并判断是否超限
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := redis.IncrWithTTL(ctx, key, l.window)
	if err != nil {
		return false, err
	}
	return count <= l.limit, nil
}

// LocalLimiter 进程内令牌桶限流，未启用Redis时使用
type LocalLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*localBucket
	limit     rate.Limit
	burst     int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter 每个窗口内允许 limit 次请求
func NewLocalLimiter(limit int, window time.Duration) *LocalLimiter {
	return &LocalLimiter{
		limiters: make(map[string]*localBucket),
		limit:    rate.Limit(float64(limit) / window.Seconds()),
		burst:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow 取对应key的令牌桶
func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)
	b, ok := l.limiters[key]
	if !ok {
		b = &localBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1), nil
}

// sweep 每个窗口清理一次空闲超过一个窗口的令牌桶，此时桶已回满，删除等同重置
func (l *LocalLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for key, b := range l.limiters {
		if now.Sub(b.lastSeen) >= l.window {
			delete(l.limiters, key)
		}
	}
}

// Len 当前跟踪的key数量
func (l *LocalLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// New 根据Redis是否可用选择实现，limit<=0 时返回 nil（不限流）
func New(limit int, window time.Duration) Limiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if redis.Enabled() {
		return NewRedisLimiter(limit, window)
	}
	return NewLocalLimiter(limit, window)
}

// Middleware 按 scope+客户端IP 限流，限流存储异常时放行并记录日志
func Middleware(scope string, limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		ip := c.ClientIP()
		allowed, err := limiter.Allow(c.Request.Context(), scope+":"+ip)
		if err != nil {
			logger.Warn("限流存储异常，已放行", zap.String("scope", scope), zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			logger.Warn("请求被限流", zap.String("scope", scope), zap.String("ip", ip))
			response.TooManyRequests(c, "too many requests, try again later")
			return
		}
		c.Next()
	}
}
