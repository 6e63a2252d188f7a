// Package chi exposes the indexer's HTTP surface: notification ingestion,
// health and metrics.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DataBiosphere/azul-indexer/internal/domain"
	"github.com/DataBiosphere/azul-indexer/internal/metrics"
	notifyuc "github.com/DataBiosphere/azul-indexer/internal/usecase/notify"
	"github.com/DataBiosphere/azul-indexer/internal/version"
)

// Pinger reports a collaborator's liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server handles the indexer's HTTP API.
type Server struct {
	notifications *notifyuc.Service
	store         Pinger
	queue         Pinger
	logger        *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(notifications *notifyuc.Service, store, queue Pinger, logger *zap.Logger) *Server {
	return &Server{notifications: notifications, store: store, queue: queue, logger: logger}
}

// Router assembles the route tree with the standard middleware stack.
func (s *Server) Router(apiKeys []string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Post("/notifications", s.handleNotification(notifyuc.ActionAdd))
	r.Delete("/notifications", s.handleNotification(notifyuc.ActionDelete))
	r.Get("/healthz", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// notificationRequest is the ingestion wire shape. The action comes from
// the HTTP method, not the body.
type notificationRequest struct {
	Match    notifyuc.Match `json:"match"`
	TestName string         `json:"test_name,omitempty"`
}

func (s *Server) handleNotification(action notifyuc.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req notificationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
			return
		}

		n := notifyuc.Notification{
			Match:    req.Match,
			Action:   action,
			TestName: req.TestName,
		}
		if err := s.notifications.Submit(r.Context(), n); err != nil {
			if errors.Is(err, domain.ErrInvalidNotification) {
				writeError(w, http.StatusBadRequest, "invalid_notification", err.Error())
				return
			}
			s.logger.Error("failed to enqueue notification",
				zap.String("bundle_uuid", n.Match.BundleUUID),
				zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to enqueue notification")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":         "queued",
			"bundle_uuid":    n.Match.BundleUUID,
			"bundle_version": n.Match.BundleVersion,
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type check struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}
	checks := map[string]check{}
	healthy := true

	if err := s.store.Ping(r.Context()); err != nil {
		checks["elasticsearch"] = check{Status: "down", Error: err.Error()}
		healthy = false
	} else {
		checks["elasticsearch"] = check{Status: "up"}
	}
	if err := s.queue.Ping(r.Context()); err != nil {
		checks["queue"] = check{Status: "down", Error: err.Error()}
		healthy = false
	} else {
		checks["queue"] = check{Status: "up"}
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}
	writeJSON(w, status, map[string]any{"status": overall, "checks": checks})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": version.Version,
		"commit":  version.Commit,
		"date":    version.Date,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
