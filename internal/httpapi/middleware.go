package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const requestIDHeader = "X-Request-ID"

// requestLogger tags each request with an id and writes one access log
// line on completion.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Set("request_id", id)

		start := time.Now()
		c.Next()

		log.Info("request",
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("client_ip", clientIP(c)),
		)
	}
}

// corsPolicy mirrors the frontend's needs: configured origins, permissive
// headers and methods, credentials, preflight short-circuit.
func corsPolicy(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	allowAll := false
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || allowed[strings.TrimRight(origin, "/")]) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "*")
			h.Set("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// clientIP prefers the first X-Forwarded-For hop so the limiter keys on the
// real client behind the proxy.
func clientIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}

// ipLimiter keeps one token bucket per client IP.
type ipLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucketEntry
	perMin   int
	lastScan time.Time
}

type bucketEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

const bucketIdleTTL = 10 * time.Minute

func newIPLimiter(perMin int) *ipLimiter {
	return &ipLimiter{
		buckets:  map[string]*bucketEntry{},
		perMin:   perMin,
		lastScan: time.Now(),
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastScan) > bucketIdleTTL {
		for k, e := range l.buckets {
			if now.Sub(e.seen) > bucketIdleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastScan = now
	}

	e, ok := l.buckets[ip]
	if !ok {
		e = &bucketEntry{lim: rate.NewLimiter(rate.Limit(float64(l.perMin)/60), l.perMin)}
		l.buckets[ip] = e
	}
	e.seen = now
	return e.lim.Allow()
}

// rateLimit rejects clients that exceed the per-minute budget with 429.
func rateLimit(perMin int) gin.HandlerFunc {
	limiter := newIPLimiter(perMin)
	return func(c *gin.Context) {
		if !limiter.allow(clientIP(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": "Too many requests. Slow down and retry shortly.",
			})
			return
		}
		c.Next()
	}
}
