package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type statusResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Cursor        int    `json:"cursor"`
	LastPollOKAt  string `json:"last_poll_ok_at,omitempty"`
	LastPollErr   string `json:"last_poll_error,omitempty"`
}

// ServeStatus runs the health endpoint server until the context ends. It
// reports liveness on /healthz and readiness (a poll has succeeded and no
// failure is outstanding) on /readyz.
func (e *Engine) ServeStatus(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", e.handleHealth)
	mux.HandleFunc("/readyz", e.handleReady)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	e.log.Info("Status server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start status server: %w", err)
	}
	return nil
}

func (e *Engine) handleHealth(w http.ResponseWriter, _ *http.Request) {
	e.respondStatus(w, http.StatusOK, "ok")
}

func (e *Engine) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !e.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	e.respondStatus(w, statusCode, status)
}

func (e *Engine) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := e.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		e.log.Error("Failed to write status response", "error", err)
	}
}

func (e *Engine) currentStatus(status string) statusResponse {
	e.mu.RLock()
	defer e.mu.RUnlock()

	uptime := int64(0)
	if !e.startedAt.IsZero() {
		uptime = int64(time.Since(e.startedAt).Seconds())
	}

	lastOK := ""
	if !e.lastPollOKAt.IsZero() {
		lastOK = e.lastPollOKAt.Format(time.RFC3339)
	}

	return statusResponse{
		Status:        status,
		UptimeSeconds: uptime,
		Cursor:        e.Cursor(),
		LastPollOKAt:  lastOK,
		LastPollErr:   e.lastPollErr,
	}
}

func (e *Engine) isReady() bool {
	if e.stopped.Load() {
		return false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.lastPollOKAt.IsZero() && e.lastPollErr == ""
}
