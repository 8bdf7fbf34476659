// analyzer-sim is a stand-in analyzer for local demos and end-to-end
// testing. It accepts packets on /analyze and can inject failures and
// latency via environment variables.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"distributor/internal/config"
	"distributor/internal/packet"
)

type simulator struct {
	name     string
	failRate float64
	latency  time.Duration
	logger   *slog.Logger

	received atomic.Int64
	failed   atomic.Int64
	messages atomic.Int64
}

func (s *simulator) analyze(w http.ResponseWriter, r *http.Request) {
	s.received.Add(1)

	if s.latency > 0 {
		time.Sleep(s.latency)
	}

	if s.failRate > 0 && rand.Float64() < s.failRate {
		s.failed.Add(1)
		http.Error(w, "injected failure", http.StatusInternalServerError)
		return
	}

	var p packet.Packet
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.failed.Add(1)
		http.Error(w, "invalid packet: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.messages.Add(int64(len(p.Messages)))

	s.logger.Debug("Packet analyzed", "packet_id", p.PacketID, "messages", len(p.Messages))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"analyzer":  s.name,
		"packet_id": p.PacketID,
		"messages":  len(p.Messages),
	})
}

func (s *simulator) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func (s *simulator) stats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"analyzer": s.name,
		"received": s.received.Load(),
		"failed":   s.failed.Load(),
		"messages": s.messages.Load(),
	})
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	sim := &simulator{
		name:     config.GetEnv("ANALYZER_NAME", "analyzer-sim"),
		failRate: config.GetFloatEnv("FAIL_RATE", 0),
		latency:  config.GetDurationEnv("LATENCY", 0),
		logger:   slog.With("component", "analyzer-sim"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyze", sim.analyze)
	mux.HandleFunc("GET /health", sim.health)
	mux.HandleFunc("GET /stats", sim.stats)

	port := config.GetEnv("PORT", "8001")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		sim.logger.Info("Analyzer simulator started",
			"name", sim.name, "port", port,
			"fail_rate", sim.failRate, "latency", sim.latency)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sim.logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	sim.logger.Info("Received shutdown signal", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		sim.logger.Error("Server shutdown error", "error", err)
	}
	sim.logger.Info("Analyzer simulator stopped",
		"received", sim.received.Load(), "failed", sim.failed.Load())
}
