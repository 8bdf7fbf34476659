// Package api provides the HTTP API handlers and routing for the
// distributor service.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"distributor/internal/apperrors"
	"distributor/internal/engine"
	"distributor/internal/health"
	"distributor/internal/ingest"
	"distributor/internal/packet"
)

// maxRequestBodySize limits request body to 1MB to prevent memory exhaustion
const maxRequestBodySize = 1 << 20 // 1 MB

// StatsProvider exposes the engine's statistics snapshot.
type StatsProvider interface {
	Stats() engine.Stats
}

// TargetLister exposes the registry's target view.
type TargetLister interface {
	Snapshot() engine.Snapshot
	Counters() map[string]engine.TargetCounters
}

// Handler contains HTTP handlers for the distributor API
type Handler struct {
	ingest  *ingest.Service
	stats   StatsProvider
	targets TargetLister
	health  *health.Checker
}

// NewHandler creates a new API handler
func NewHandler(svc *ingest.Service, stats StatsProvider, targets TargetLister, healthChecker *health.Checker) *Handler {
	return &Handler{
		ingest:  svc,
		stats:   stats,
		targets: targets,
		health:  healthChecker,
	}
}

// IngestPacket handles POST /v1/packets
func (h *Handler) IngestPacket(w http.ResponseWriter, r *http.Request) {
	// Limit request body size to prevent memory exhaustion
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var p packet.Packet
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	receipt, err := h.ingest.Submit(r.Context(), &p)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, receipt)
}

// GetStats handles GET /v1/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.stats.Stats())
}

// TargetStatus is one entry of the GET /v1/targets response.
type TargetStatus struct {
	Name      string  `json:"name"`
	URL       string  `json:"url"`
	Weight    float64 `json:"weight"`
	Healthy   bool    `json:"healthy"`
	Delivered int64   `json:"delivered"`
	Failed    int64   `json:"failed"`
}

// GetTargets handles GET /v1/targets
func (h *Handler) GetTargets(w http.ResponseWriter, r *http.Request) {
	snap := h.targets.Snapshot()
	counters := h.targets.Counters()

	targets := make([]TargetStatus, 0, len(snap.Targets))
	for _, t := range snap.Targets {
		c := counters[t.Name]
		targets = append(targets, TargetStatus{
			Name:      t.Name,
			URL:       t.URL,
			Weight:    t.Weight,
			Healthy:   t.Healthy,
			Delivered: c.Delivered,
			Failed:    c.Failed,
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"targets": targets})
}

// Livez handles GET /livez - liveness probe.
// Returns 200 if the process is alive. Does not check dependencies.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	response := h.health.Liveness(r.Context())
	h.writeJSON(w, http.StatusOK, response)
}

// Readyz handles GET /readyz - readiness probe.
// Returns 200 while the service can accept traffic (a degraded fleet
// stays in rotation). Returns 503 if the engine has no healthy targets
// or is shutting down.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.Ready() {
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, response)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// handleError handles errors from the service layer with appropriate HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		slog.Error("Internal error", "error", err, "path", r.URL.Path)
	} else {
		slog.Warn("Client error", "error", err, "path", r.URL.Path, "status", status)
	}
	h.writeError(w, status, err.Error())
}
