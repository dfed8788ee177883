package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/jsamuelsen11/selmag/internal/config"
	"github.com/jsamuelsen11/selmag/internal/constants"
	"github.com/jsamuelsen11/selmag/internal/redis"
)

const (
	// HealthCheckTimeout is the default timeout for health check operations.
	HealthCheckTimeout = 5 * time.Second
	// Version is reported by the health endpoint.
	Version = "1.0.0"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	// StatusHealthy indicates the component is healthy.
	StatusHealthy HealthStatus = "healthy"
	// StatusUnhealthy indicates the component is unhealthy.
	StatusUnhealthy HealthStatus = "unhealthy"
	// StatusDegraded indicates the component has degraded performance.
	StatusDegraded HealthStatus = "degraded"
)

// HealthResponse represents the overall health check response.
type HealthResponse struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// ComponentHealth represents the health of an individual component.
type ComponentHealth struct {
	Status       HealthStatus `json:"status"`
	Message      string       `json:"message,omitempty"`
	LastChecked  time.Time    `json:"last_checked"`
	ResponseTime string       `json:"response_time,omitempty"`
}

// ReadinessResponse represents the readiness check response.
type ReadinessResponse struct {
	Ready      bool                       `json:"ready"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// Pinger is a dependency whose connectivity can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConfigCheck returns configuration problems that degrade the service.
type ConfigCheck func(cfg *config.Config) []string

// HealthMetrics holds the Prometheus metrics of the health endpoints.
type HealthMetrics struct {
	HealthChecksTotal     *prometheus.CounterVec
	ComponentHealthStatus *prometheus.GaugeVec
}

// NewHealthMetrics creates the health metrics and registers them with reg.
func NewHealthMetrics(reg prometheus.Registerer) *HealthMetrics {
	m := &HealthMetrics{
		HealthChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "selmag_health_checks_total",
				Help: "Total number of health checks",
			},
			[]string{"endpoint", "status"},
		),
		ComponentHealthStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "selmag_component_health_status",
				Help: "Health status of service components (1=healthy, 0=unhealthy)",
			},
			[]string{"component"},
		),
	}
	reg.MustRegister(m.HealthChecksTotal, m.ComponentHealthStatus)
	return m
}

// HealthHandler provides health check and monitoring endpoints.
type HealthHandler struct {
	config    *config.Config
	store     redis.Store
	database  Pinger
	checks    []ConfigCheck
	logger    *logrus.Logger
	metrics   *HealthMetrics
	startTime time.Time
}

// HealthOption configures a HealthHandler.
type HealthOption func(*HealthHandler)

// WithDatabase adds the product database to the checked components.
// A database outage degrades the service without making it unready.
func WithDatabase(db Pinger) HealthOption {
	return func(h *HealthHandler) { h.database = db }
}

// WithConfigCheck adds a configuration check to the health report.
func WithConfigCheck(check ConfigCheck) HealthOption {
	return func(h *HealthHandler) { h.checks = append(h.checks, check) }
}

// NewHealthHandler creates a new health check handler.
func NewHealthHandler(
	cfg *config.Config,
	store redis.Store,
	metrics *HealthMetrics,
	logger *logrus.Logger,
	opts ...HealthOption,
) *HealthHandler {
	h := &HealthHandler{
		config:    cfg,
		store:     store,
		logger:    logger,
		metrics:   metrics,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers health check and monitoring endpoints.
// gatherer backs /metrics; nil skips it.
func (h *HealthHandler) RegisterRoutes(router *mux.Router, gatherer prometheus.Gatherer) {
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/live", h.Liveness).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", h.Readiness).Methods(http.MethodGet)
	if gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
}

// ResourceServerCheck reports bearer validation settings unfit for the environment.
func ResourceServerCheck(cfg *config.Config) []string {
	var issues []string
	if err := cfg.ValidateResourceServer(); err != nil {
		issues = append(issues, err.Error())
	}

	rs := cfg.ResourceServer
	if rs.IssuerURL == "" && rs.JWKSURL == "" && cfg.Environment.Environment == config.Prod {
		issues = append(issues, "shared secret token validation in production")
	}
	return issues
}

// CatalogueClientCheck reports an incomplete catalogue client registration.
func CatalogueClientCheck(cfg *config.Config) []string {
	if err := cfg.ValidateCatalogueClient(); err != nil {
		return []string{err.Error()}
	}
	return nil
}

// Health provides a comprehensive health check including all components.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	components := make(map[string]ComponentHealth)
	overallStatus := StatusHealthy

	storeHealth := h.checkStorage(ctx)
	components["cache"] = storeHealth
	if storeHealth.Status == StatusUnhealthy {
		overallStatus = StatusUnhealthy
	} else if storeHealth.Status == StatusDegraded {
		overallStatus = StatusDegraded
	}

	if h.database != nil {
		databaseHealth := h.checkDatabase(ctx)
		components["database"] = databaseHealth
		if databaseHealth.Status != StatusHealthy && overallStatus == StatusHealthy {
			overallStatus = StatusDegraded
		}
	}

	configHealth := h.checkConfiguration()
	components["configuration"] = configHealth
	if configHealth.Status != StatusHealthy && overallStatus == StatusHealthy {
		overallStatus = StatusDegraded
	}

	h.metrics.HealthChecksTotal.WithLabelValues("health", string(overallStatus)).Inc()
	for component, health := range components {
		healthValue := float64(0)
		if health.Status == StatusHealthy {
			healthValue = 1
		}
		h.metrics.ComponentHealthStatus.WithLabelValues(component).Set(healthValue)
	}

	statusCode := http.StatusOK
	if overallStatus == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	h.writeJSON(w, statusCode, HealthResponse{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Version:    Version,
		Uptime:     time.Since(h.startTime).String(),
		Components: components,
	})

	h.logger.WithFields(logrus.Fields{
		"status":   overallStatus,
		"duration": time.Since(start).String(),
	}).Debug("Health check completed")
}

// Liveness provides a simple liveness check that returns 200 if the service is alive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	h.metrics.HealthChecksTotal.WithLabelValues("liveness", "healthy").Inc()

	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "alive",
		"timestamp": time.Now(),
		"uptime":    time.Since(h.startTime).String(),
	})
}

// Readiness checks if the service is ready to receive traffic. Only the
// credential and session store gates readiness.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	components := make(map[string]ComponentHealth)
	storeHealth := h.checkStorage(ctx)
	components["cache"] = storeHealth
	ready := storeHealth.Status != StatusUnhealthy

	if h.database != nil {
		components["database"] = h.checkDatabase(ctx)
	}

	statusLabel := "ready"
	statusCode := http.StatusOK
	if !ready {
		statusLabel = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}
	h.metrics.HealthChecksTotal.WithLabelValues("readiness", statusLabel).Inc()

	h.writeJSON(w, statusCode, ReadinessResponse{
		Ready:      ready,
		Timestamp:  time.Now(),
		Components: components,
	})
}

// checkStorage checks storage backend connectivity and performance.
func (h *HealthHandler) checkStorage(ctx context.Context) ComponentHealth {
	storageType := h.getStorageType()
	return h.checkPinger(ctx, h.store, storageType, time.Second)
}

// checkDatabase checks product database connectivity.
func (h *HealthHandler) checkDatabase(ctx context.Context) ComponentHealth {
	return h.checkPinger(ctx, h.database, "Database", 2*time.Second)
}

func (h *HealthHandler) checkPinger(ctx context.Context, p Pinger, name string, slow time.Duration) ComponentHealth {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()

	err := p.Ping(checkCtx)
	duration := time.Since(start)

	if err != nil {
		h.logger.WithError(err).Warn(name + " health check failed")
		return ComponentHealth{
			Status:       StatusUnhealthy,
			Message:      name + " connection failed: " + err.Error(),
			LastChecked:  time.Now(),
			ResponseTime: duration.String(),
		}
	}

	status := StatusHealthy
	message := name + " is healthy"
	if duration > slow {
		status = StatusDegraded
		message = name + " response time is slow"
	}

	return ComponentHealth{
		Status:       status,
		Message:      message,
		LastChecked:  time.Now(),
		ResponseTime: duration.String(),
	}
}

// getStorageType determines the type of storage backend being used.
func (h *HealthHandler) getStorageType() string {
	switch h.store.(type) {
	case *redis.Client:
		return "Redis"
	case *redis.MemoryStore:
		return "In-Memory"
	default:
		return "Store"
	}
}

// checkConfiguration runs the configured checks.
func (h *HealthHandler) checkConfiguration() ComponentHealth {
	var issues []string
	for _, check := range h.checks {
		issues = append(issues, check(h.config)...)
	}

	status := StatusHealthy
	message := "Configuration is valid"
	if len(issues) > 0 {
		status = StatusDegraded
		message = "Configuration issues: " + strings.Join(issues, ", ")
	}

	return ComponentHealth{
		Status:      status,
		Message:     message,
		LastChecked: time.Now(),
	}
}

func (h *HealthHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.WithError(err).Error("Failed to encode health response")
	}
}
