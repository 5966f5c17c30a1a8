package handlers

import (
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// CallerHeader carries the address a request acts as.
	CallerHeader = "X-Lottery-Caller"
	// RequestIDHeader is echoed back or generated per request.
	RequestIDHeader = "X-Request-ID"

	callerKey = "caller"
)

// RequestID tags every request with an id, reusing one supplied by the
// client.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDHeader, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// CallerMiddleware resolves the caller address from CallerHeader. Requests
// without the header pass through anonymously; mutating handlers reject
// them.
func (h *HTTPHandler) CallerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(CallerHeader)
		if raw == "" {
			c.Next()
			return
		}
		if !common.IsHexAddress(raw) {
			abortBadRequest(c, CallerHeader+": invalid address")
			return
		}
		c.Set(callerKey, common.HexToAddress(raw))
		c.Next()
	}
}

func requireCaller(c *gin.Context) (common.Address, bool) {
	if v, ok := c.Get(callerKey); ok {
		if addr, ok := v.(common.Address); ok {
			return addr, true
		}
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{
		Error:   "MissingCaller",
		Message: CallerHeader + " header is required",
	})
	return common.Address{}, false
}

// maxLimiters bounds the number of tracked callers before the table is reset.
const maxLimiters = 10000

// RateLimiter throttles requests per caller, falling back to the client IP
// for anonymous requests.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewRateLimiter allows requestsPerSecond sustained and burst at once per
// key.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.limiters[key]
	if !ok {
		if len(rl.limiters) >= maxLimiters {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		l = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = l
	}
	return l
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(CallerHeader)
		if key == "" {
			key = c.ClientIP()
		}
		if !rl.limiter(key).Allow() {
			logger.Warningf("Rate limit exceeded: key=%s path=%s", key, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{
				Error:   "RateLimited",
				Message: "too many requests",
			})
			return
		}
		c.Next()
	}
}
