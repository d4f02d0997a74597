package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mnazzaro/voice-client/internal/config"
	"github.com/mnazzaro/voice-client/internal/pipeline"
	"github.com/mnazzaro/voice-client/internal/storage"
)

// RecordingLister exposes the stored recordings for the listing endpoint.
type RecordingLister interface {
	List() ([]storage.Recording, error)
}

// HTTPServer provides HTTP endpoints for monitoring and management.
type HTTPServer struct {
	server        *http.Server
	logger        *slog.Logger
	queue         *pipeline.FrameQueue
	lister        RecordingLister
	consumerStats func() any
	mode          string
	startTime     time.Time
}

// NewHTTPServer creates the monitoring server. consumerStats returns the
// active consumer's stats snapshot for /status.
func NewHTTPServer(cfg config.HTTPConfig, mode string, logger *slog.Logger,
	queue *pipeline.FrameQueue, lister RecordingLister, consumerStats func() any) *HTTPServer {

	h := &HTTPServer{
		logger:        logger,
		queue:         queue,
		lister:        lister,
		consumerStats: consumerStats,
		mode:          mode,
		startTime:     time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/status", h.handleStatus)
	mux.HandleFunc("/recordings", h.handleRecordings)
	mux.Handle("/metrics", promhttp.Handler())

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// Start begins serving in the background.
func (h *HTTPServer) Start() error {
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	h.logger.Info("HTTP server started", slog.String("address", h.server.Addr))
	return nil
}

// Stop gracefully shuts the server down.
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP server...")
	return h.server.Shutdown(ctx)
}

func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]any{
		"status":         "ok",
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	})
}

func (h *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]any{
		"mode":           h.mode,
		"queue_depth":    h.queue.Len(),
		"consumer":       h.consumerStats(),
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	})
}

func (h *HTTPServer) handleRecordings(w http.ResponseWriter, r *http.Request) {
	recordings, err := h.lister.List()
	if err != nil {
		h.logger.Error("Failed to list recordings", slog.String("error", err.Error()))
		http.Error(w, "failed to list recordings", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]any{
		"count":      len(recordings),
		"recordings": recordings,
	})
}

func (h *HTTPServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Failed to encode response", slog.String("error", err.Error()))
	}
}
