package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/socialnet/network/pkg/config"
	"github.com/socialnet/network/pkg/logging"
	"github.com/socialnet/network/pkg/telemetry"
)

const requestIDHeader = "X-Request-ID"

// requestLogger tags every request with an ID, wraps it in a span and logs
// the outcome.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(requestIDHeader, requestID)

		ctx, span := telemetry.StartSpan(c.Request.Context(), c.Request.Method+" "+c.FullPath())
		defer span.End()
		ctx = logging.NewContext(ctx, logger.With(zap.String("request_id", requestID)))
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", c.FullPath()),
			attribute.Int("http.status_code", status),
		)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}
		if id := viewerID(c); id != 0 {
			fields = append(fields, zap.Int64("account_id", id))
		}

		reqLogger := logging.FromContext(c.Request.Context())
		if status >= http.StatusInternalServerError {
			reqLogger.Error("Request completed", fields...)
		} else {
			reqLogger.Info("Request completed", fields...)
		}
	}
}

type accountLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter caps write requests per signed-in account
type RateLimiter struct {
	limit           rate.Limit
	perMinute       int
	burst           int
	cleanupInterval time.Duration

	mu       sync.Mutex
	limiters map[int64]*accountLimiter

	stopCh chan struct{}
	once   sync.Once
}

// NewRateLimiter creates a rate limiter and starts evicting idle accounts in
// the background. It returns nil when rate limiting is disabled.
func NewRateLimiter(cfg *config.RateLimitConfig) *RateLimiter {
	if !cfg.Enabled {
		return nil
	}

	rl := &RateLimiter{
		limit:           rate.Limit(float64(cfg.PerMinute) / 60.0),
		perMinute:       cfg.PerMinute,
		burst:           cfg.Burst,
		cleanupInterval: 5 * time.Minute,
		limiters:        make(map[int64]*accountLimiter),
		stopCh:          make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the background cleanup
func (rl *RateLimiter) Stop() {
	if rl == nil {
		return
	}
	rl.once.Do(func() { close(rl.stopCh) })
}

// Allow reports whether accountID may make another write now
func (rl *RateLimiter) Allow(accountID int64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	al, ok := rl.limiters[accountID]
	if !ok {
		al = &accountLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[accountID] = al
	}
	al.lastAccess = time.Now()
	return al.limiter.Allow()
}

// Len returns the number of accounts currently tracked
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Middleware rejects writes over the limit with 429. Anonymous requests pass
// through; they are turned away by the login check.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil {
			c.Next()
			return
		}
		id := viewerID(c)
		if id == 0 || rl.Allow(id) {
			c.Next()
			return
		}

		// seconds until one token is back
		retryAfter := (60 + rl.perMinute - 1) / rl.perMinute
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		logging.FromContext(c.Request.Context()).Warn("Rate limit exceeded", zap.Int64("account_id", id))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests."})
	}
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup drops accounts idle for more than two cleanup intervals
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.cleanupInterval * 2

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for id, al := range rl.limiters {
		if now.Sub(al.lastAccess) > ttl {
			delete(rl.limiters, id)
		}
	}
}
