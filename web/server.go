// ABOUTME: HTTP JSON API over the kith app
// ABOUTME: chi router exposing contacts, actions, scores, the daily deck and history
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/harperreed/kith/app"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/events"
	"github.com/harperreed/kith/models"
)

// Server is the kith HTTP API server.
type Server struct {
	app     *app.App
	logger  *zap.Logger
	router  chi.Router
	version string
	started time.Time
}

// NewServer creates a Server over a wired app.
func NewServer(a *app.App, version string) *Server {
	s := &Server{
		app:     a,
		logger:  a.Logger.Named("web"),
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/contacts", s.handleListContacts)
		r.Post("/contacts", s.handleAddContact)
		r.Get("/contacts/{contactID}/score", s.handleScore)
		r.Put("/contacts/{contactID}/cadence", s.handleSetCadence)

		r.Post("/actions", s.handleEmitAction)
		r.Post("/interactions", s.handleLogInteraction)
		r.Post("/outcomes", s.handleRecordOutcome)

		r.Get("/deck", s.handleTodayDeck)
		r.Post("/deck", s.handleBuildDeck)
		r.Get("/deck/quota", s.handleQuota)
		r.Post("/deck/cards/{cardID}/status", s.handleCardStatus)

		r.Post("/archive", s.handleArchive)
		r.Get("/history", s.handleHistory)
		r.Get("/streak", s.handleStreak)

		r.Get("/jobs/{jobID}", s.handleJobStatus)
		r.Post("/jobs/{jobID}/retry", s.handleJobRetry)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := s.app.DB.PingContext(r.Context()) == nil

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"version":     s.version,
		"uptime":      time.Since(s.started).Seconds(),
		"db":          dbOK,
		"queue_depth": s.app.Queue.Depth(),
	})
}

// userID reads the acting user from ?user_id=, falling back to the configured user.
func (s *Server) userID(r *http.Request) string {
	if u := r.URL.Query().Get("user_id"); u != "" {
		return u
	}
	return s.app.Config.User.ID
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps domain errors to status codes. Anything unrecognized is
// logged and reported as a 500.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, db.ErrContactNotFound),
		errors.Is(err, db.ErrCardNotFound),
		errors.Is(err, events.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, events.ErrNotRetryable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, events.ErrUnknownAction),
		errors.Is(err, events.ErrSystemAction),
		errors.Is(err, events.ErrInvalidParams),
		errors.Is(err, db.ErrInvalidContact),
		errors.Is(err, db.ErrInvalidInteraction),
		errors.Is(err, db.ErrInvalidOutcome):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, events.ErrQueueFull), errors.Is(err, events.ErrQueueStopped):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
