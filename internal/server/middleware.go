package server

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nhle/notification-tray/internal/api"
	"github.com/nhle/notification-tray/internal/model"
)

// Context keys set by the middleware.
const (
	ctxRequestID = "requestID"
	ctxUserID    = "userID"
)

// RequestIDHeader echoes the request id back to the caller.
const RequestIDHeader = "X-Request-ID"

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic serving request",
					zap.String("request_id", c.GetString(ctxRequestID)),
					zap.Any("panic", r),
				)
				abort(c, http.StatusInternalServerError, "internal server error", "")
			}
		}()
		c.Next()
	}
}

// csrf implements the double-submit cookie check: every response carries a
// csrftoken cookie and every write must echo it in the X-CSRFToken header.
func csrf() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(api.CSRFCookieName)
		if err != nil || cookie == "" {
			cookie = strings.ReplaceAll(uuid.NewString(), "-", "")
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     api.CSRFCookieName,
				Value:    cookie,
				Path:     "/",
				SameSite: http.SameSiteLaxMode,
			})
			if c.Request.Method == http.MethodPost {
				abort(c, http.StatusForbidden, "CSRF verification failed", "csrf cookie not set")
				return
			}
		}

		if c.Request.Method == http.MethodPost {
			header := c.GetHeader(api.CSRFHeader)
			if subtle.ConstantTimeCompare([]byte(header), []byte(cookie)) != 1 {
				abort(c, http.StatusForbidden, "CSRF verification failed", "csrf token missing or incorrect")
				return
			}
		}
		c.Next()
	}
}

// session resolves the caller's user id from the session cookie. Without
// configured sessions every caller is the default user.
func session(cfg model.ServerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(cfg.Sessions) == 0 {
			c.Set(ctxUserID, cfg.DefaultUserID)
			c.Next()
			return
		}

		value, err := c.Cookie(api.SessionCookieName)
		if err != nil {
			abort(c, http.StatusUnauthorized, "authentication required", "")
			return
		}
		uid, ok := cfg.Sessions[value]
		if !ok {
			abort(c, http.StatusUnauthorized, "authentication required", "unknown session")
			return
		}
		c.Set(ctxUserID, uid)
		c.Next()
	}
}

func userID(c *gin.Context) int64 {
	return c.GetInt64(ctxUserID)
}

// rateLimiter keeps one token bucket per client address.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	log      *zap.Logger
}

// newRateLimiter allows perMinute requests per client. A non-positive
// value disables limiting.
func newRateLimiter(perMinute int, log *zap.Logger) *rateLimiter {
	rl := &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Inf,
		log:      log,
	}
	if perMinute > 0 {
		rl.limit = rate.Every(time.Minute / time.Duration(perMinute))
		rl.burst = perMinute
	}
	return rl
}

func (rl *rateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[key] = l
	}
	return l
}

func (rl *rateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := clientIP(c)
		if !rl.get(ip).Allow() {
			rl.log.Warn("rate limit exceeded", zap.String("ip", ip))
			abort(c, http.StatusTooManyRequests, "rate limit exceeded", "try again later")
			return
		}
		c.Next()
	}
}

func clientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}

func abort(c *gin.Context, status int, message, details string) {
	c.AbortWithStatusJSON(status, api.ErrorResponse{Message: message, Details: details})
}
