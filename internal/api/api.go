package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"snapfolio/pkg/snapfolio"
)

// NewRouter builds the HTTP API router.
func NewRouter(core *snapfolio.Core, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLoggingMiddleware(logger))
	r.Use(recoveryLoggingMiddleware(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
	}))

	h := &handler{core: core, logger: logger}

	r.Get("/api/health", h.health)

	// Everything else acts on behalf of a user.
	r.Group(func(r chi.Router) {
		r.Use(requireUser)

		r.Post("/api/parse", h.parseStatements)

		// Review sessions
		r.Post("/api/review-sessions", h.createReviewSession)
		r.Get("/api/review-sessions/{id}", h.getReviewSession)
		r.Put("/api/review-sessions/{id}", h.updateReviewSession)
		r.Post("/api/review-sessions/{id}/finalize", h.finalizeReviewSession)
		r.Post("/api/review-sessions/{id}/cancel", h.cancelReviewSession)

		// Snapshots
		r.Get("/api/snapshots", h.listSnapshots)
		r.Get("/api/snapshots/{id}", h.getSnapshot)
		r.Delete("/api/snapshots/{id}", h.deleteSnapshot)

		// Taxonomy
		r.Get("/api/taxonomy", h.getTaxonomy)
		r.Post("/api/taxonomy", h.addTaxonomyPair)
		r.Put("/api/taxonomy/{id}/active", h.setTaxonomyPairActive)
	})

	return r
}

type handler struct {
	core   *snapfolio.Core
	logger *slog.Logger
}

type contextKey string

const userIDKey contextKey = "user_id"

// requireUser resolves the caller identity from the X-User-ID header.
// Authentication itself happens upstream; this service only needs the
// verified subject the gateway forwards.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing X-User-ID header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorMessageSetter interface {
	SetErrorMessage(message string)
}

func writeError(w http.ResponseWriter, status int, message string) {
	if setter, ok := w.(errorMessageSetter); ok {
		setter.SetErrorMessage(message)
	}
	writeJSON(w, status, map[string]string{"error": message})
}
