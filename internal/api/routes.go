package api

import (
	"net/http"

	"distributor/internal/health"
	"distributor/internal/ingest"
	"distributor/internal/observability"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Ingest        *ingest.Service
	Stats         StatsProvider
	Targets       TargetLister
	Metrics       *observability.Metrics
	HealthChecker *health.Checker
	APIKey        string
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.Ingest, cfg.Stats, cfg.Targets, cfg.HealthChecker)

	mux := http.NewServeMux()

	// Health check endpoints (liveness/readiness probes) - no auth required
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)

	// API endpoints - auth required
	authMiddleware := AuthMiddleware(cfg.APIKey)
	mux.Handle("POST /v1/packets", authMiddleware(http.HandlerFunc(handler.IngestPacket)))
	mux.Handle("GET /v1/stats", authMiddleware(http.HandlerFunc(handler.GetStats)))
	mux.Handle("GET /v1/targets", authMiddleware(http.HandlerFunc(handler.GetTargets)))

	// Apply middleware chain (order matters: innermost first, so Recovery
	// ends up outermost)
	var h http.Handler = mux
	h = ContentTypeMiddleware()(h)
	h = CORSMiddleware()(h)
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics)(h)
	}
	h = LoggingMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}
