// Package middleware provides the HTTP middleware shared by the catalogue
// service and the manager application: rate limiting, CORS, logging,
// security headers, request validation and authentication.
package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/jsamuelsen11/selmag/internal/config"
	"github.com/jsamuelsen11/selmag/internal/constants"
	"github.com/jsamuelsen11/selmag/internal/models"
	redisStore "github.com/jsamuelsen11/selmag/internal/redis"
	"github.com/jsamuelsen11/selmag/pkg/logger"
)

const (
	// HTTPClientError minimum status code (4xx).
	HTTPClientError = 400
	// HTTPServerError minimum status code (5xx).
	HTTPServerError = 500
	// RateLimitKeyPrefix prefixes the per-client rate limit keys in Redis.
	RateLimitKeyPrefix = "selmag:ratelimit:client:"
	// HealthPathPrefix marks requests that are not logged.
	HealthPathPrefix = "/health"
)

// Stack holds all middleware dependencies and provides
// methods to create HTTP middleware handlers.
type Stack struct {
	config  *config.Config
	store   redisStore.Store
	limiter *redis_rate.Limiter
	local   *localLimiter
	metrics *HTTPMetrics
	logger  *logrus.Logger
}

// NewStack creates a new middleware stack with the provided dependencies.
// With a nil redisClient rate limiting falls back to an in-process limiter per
// client IP. metrics may be nil.
func NewStack(
	cfg *config.Config,
	store redisStore.Store,
	redisClient *redis.Client,
	metrics *HTTPMetrics,
	logger *logrus.Logger,
) *Stack {
	s := &Stack{
		config:  cfg,
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
	if redisClient != nil {
		s.limiter = redis_rate.NewLimiter(redisClient)
	} else {
		s.local = newLocalLimiter(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst)
	}
	return s
}

// Chain applies multiple middleware functions to an HTTP handler.
// The first middleware is the outermost.
func (m *Stack) Chain(h http.Handler, middleware ...func(http.Handler) http.Handler) http.Handler {
	for i := range middleware {
		h = middleware[len(middleware)-1-i](h)
	}
	return h
}

// RequestLogger logs HTTP requests with structured logging including
// request details, response status, and processing duration.
// An incoming X-Request-ID is reused as the correlation ID.
func (m *Stack) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(constants.HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		r = r.WithContext(logger.SetCorrelationID(r.Context(), requestID))

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		wrapped.Header().Set(constants.HeaderXRequestID, requestID)

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		m.metrics.observe(r.Method, routeLabel(r), wrapped.statusCode, wrapped.size, duration)

		if strings.HasPrefix(r.URL.Path, HealthPathPrefix) {
			return
		}

		fields := logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"query":       r.URL.RawQuery,
			"status":      wrapped.statusCode,
			"duration":    duration.String(),
			"duration_ms": duration.Milliseconds(),
			"remote_addr": getClientIP(r),
			"user_agent":  r.UserAgent(),
			"bytes":       wrapped.size,
		}

		level := logrus.InfoLevel
		if wrapped.statusCode >= HTTPClientError {
			level = logrus.WarnLevel
		}
		if wrapped.statusCode >= HTTPServerError {
			level = logrus.ErrorLevel
		}

		logger.WithCorrelationID(r.Context(), m.logger).WithFields(fields).Log(level, "HTTP request processed")
	})
}

// RateLimit limits requests per client IP address. Redis backs the limiter
// when configured so limits hold across replicas.
func (m *Stack) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := getClientIP(r)

		if m.isTrustedProxy(clientIP) {
			next.ServeHTTP(w, r)
			return
		}

		if m.limiter == nil {
			if !m.local.allow(clientIP) {
				m.rejectRateLimited(w, r, clientIP, time.Second)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		limit := redis_rate.Limit{
			Rate:   m.config.Security.RateLimitRPS,
			Burst:  m.config.Security.RateLimitBurst,
			Period: time.Second,
		}
		result, err := m.limiter.Allow(r.Context(), RateLimitKeyPrefix+clientIP, limit)
		if err != nil {
			m.logger.WithError(err).Error("Failed to check rate limit")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-Ratelimit-Limit", strconv.Itoa(result.Limit.Burst))
		w.Header().Set("X-Ratelimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-Ratelimit-Reset", strconv.FormatInt(time.Now().Add(result.ResetAfter).Unix(), 10))

		if result.Allowed == 0 {
			m.rejectRateLimited(w, r, clientIP, result.RetryAfter)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Stack) rejectRateLimited(w http.ResponseWriter, r *http.Request, clientIP string, retryAfter time.Duration) {
	m.logger.WithFields(logrus.Fields{
		"client_ip": clientIP,
		"path":      r.URL.Path,
		"method":    r.Method,
	}).Warn("Rate limit exceeded")

	seconds := int(retryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	WriteProblem(w, m.logger, models.NewProblem(http.StatusTooManyRequests, r.URL.Path, "Rate limit exceeded"))
}

// CORS handles Cross-Origin Resource Sharing headers based on configuration.
func (m *Stack) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.setCORSHeaders(w, r)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Stack) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	sec := m.config.Security
	origin := r.Header.Get("Origin")

	if origin != "" && m.isOriginAllowed(origin) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	} else if len(sec.AllowedOrigins) == 1 && sec.AllowedOrigins[0] == "*" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}

	if len(sec.AllowedMethods) > 0 {
		w.Header().Set("Access-Control-Allow-Methods", strings.Join(sec.AllowedMethods, ", "))
	}
	if len(sec.AllowedHeaders) > 0 {
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(sec.AllowedHeaders, ", "))
	}
	if len(sec.ExposedHeaders) > 0 {
		w.Header().Set("Access-Control-Expose-Headers", strings.Join(sec.ExposedHeaders, ", "))
	}
	if sec.AllowCredentials {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}
	if sec.MaxAge > 0 {
		w.Header().Set("Access-Control-Max-Age", strconv.Itoa(sec.MaxAge))
	}
}

// SecurityHeaders adds security-related HTTP headers to responses.
func (m *Stack) SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Cache-Control", "no-store")

		if r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

// Recovery recovers from panics and logs them while returning a 500 problem.
func (m *Stack) Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.WithCorrelationID(r.Context(), m.logger).WithFields(logrus.Fields{
					"method": r.Method,
					"path":   r.URL.Path,
					"panic":  err,
				}).Error("Panic recovered")

				WriteProblem(w, m.logger, models.NewProblem(
					http.StatusInternalServerError, r.URL.Path, "An unexpected error occurred",
				))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// ContentType rejects POST and PATCH bodies that are neither JSON nor form encoded.
func (m *Stack) ContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if (r.Method == http.MethodPost || r.Method == http.MethodPatch) && r.ContentLength > 0 {
			contentType := r.Header.Get(constants.HeaderContentType)

			isForm := strings.Contains(contentType, constants.ContentTypeFormURLEncoded)
			isJSON := strings.Contains(contentType, constants.ContentTypeJSON)
			if !isForm && !isJSON {
				WriteProblem(w, m.logger, models.NewProblem(
					http.StatusUnsupportedMediaType, r.URL.Path,
					"Content-Type must be application/json or application/x-www-form-urlencoded",
				))
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// WriteProblem writes problem as an application/problem+json response.
func WriteProblem(w http.ResponseWriter, log *logrus.Logger, problem *models.ProblemDetail) {
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeProblemJSON)
	w.WriteHeader(problem.Status)

	if err := json.NewEncoder(w).Encode(problem); err != nil && log != nil {
		log.WithError(err).Error("Failed to encode problem response")
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code and size.
type responseWriter struct {
	http.ResponseWriter

	statusCode  int
	size        int
	wroteHeader bool
}

// WriteHeader captures the status code.
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

// Write counts the bytes written.
func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// getClientIP extracts the real client IP address from various headers.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (m *Stack) isTrustedProxy(ip string) bool {
	for _, trustedIP := range m.config.Security.TrustedProxies {
		if ip == trustedIP {
			return true
		}
	}
	return false
}

func (m *Stack) isOriginAllowed(origin string) bool {
	for _, allowedOrigin := range m.config.Security.AllowedOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}
	return false
}

// localLimiter keeps one token bucket per client in process memory.
type localLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func newLocalLimiter(limit rate.Limit, burst int) *localLimiter {
	return &localLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *localLimiter) allow(key string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}
