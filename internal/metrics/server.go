package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/tradesync/internal/model"
)

// ResultSource exposes the most recent cycle.
type ResultSource interface {
	LastResult() (model.CycleResult, bool)
}

// HealthHandler reports the state of the last cycle.
//
//   - starting: no cycle has completed yet
//   - healthy: every account reached done
//   - degraded: some accounts failed
//   - unhealthy: every account failed, or the last cycle is older than staleAfter
//
// Unhealthy responses use 503. A zero staleAfter disables the age check.
func HealthHandler(source ResultSource, staleAfter time.Duration, now func() time.Time) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}

	return func(w http.ResponseWriter, r *http.Request) {
		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		last, ok := source.LastResult()
		if !ok {
			health.Status = "starting"
		} else {
			totals := last.Totals()
			age := now().Sub(last.FinishedAt)

			accounts := make(map[string]any, len(last.Accounts))
			for _, a := range last.Accounts {
				entry := map[string]any{
					"state":   a.State.String(),
					"created": a.Created,
					"failed":  a.Failed,
				}
				if a.Err != nil {
					entry["error"] = a.Err.Message
					entry["failed_at"] = a.FailedAt.String()
				}
				accounts[a.Account] = entry
			}

			health.Components["last_cycle"] = map[string]any{
				"id":          last.ID.String(),
				"finished_at": last.FinishedAt.UTC().Format(time.RFC3339),
				"age_seconds": int64(age.Seconds()),
				"fetched":     totals.Fetched,
				"created":     totals.Created,
				"failed":      totals.Failed,
			}
			health.Components["accounts"] = accounts

			switch {
			case staleAfter > 0 && age > staleAfter:
				health.Status = "unhealthy"
			case totals.Accounts > 0 && totals.FailedAccounts == totals.Accounts:
				health.Status = "unhealthy"
			case totals.FailedAccounts > 0:
				health.Status = "degraded"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	}
}

// Server serves /health and the Prometheus endpoint.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer builds the HTTP server. metricsPath is usually "/metrics".
func NewServer(port int, metricsPath string, gatherer prometheus.Gatherer, health http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/health", health)
	mux.Handle(metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the server's mux.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start listens in the background.
func (s *Server) Start() {
	go func() {
		s.logger.Info("starting metrics server", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", "err", err)
		}
	}()
}

// Shutdown stops the server, waiting for open requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
