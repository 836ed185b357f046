// Package api exposes the coaching engine over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/set-night/fitcoach/internal/coach"
	"github.com/set-night/fitcoach/internal/domain"
)

// Engine is the conversation engine behind the HTTP boundary.
type Engine interface {
	Handle(ctx context.Context, userID uuid.UUID, text string) (*coach.Reply, error)
	Reset(ctx context.Context, userID uuid.UUID) error
}

// Backend reports health and resolves the users the API may act for.
type Backend interface {
	Ping(ctx context.Context) error
	GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
}

// Handler serves the HTTP presentation boundary.
type Handler struct {
	engine  Engine
	backend Backend
	token   string
}

// NewHandler builds the API. A non-empty token is required as a bearer
// credential on every /v1 route.
func NewHandler(engine Engine, backend Backend, token string) *Handler {
	return &Handler{engine: engine, backend: backend, token: token}
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", h.health)
	r.Route("/v1/users/{userID}", func(r chi.Router) {
		r.Use(h.requireToken)
		r.Post("/messages", h.postMessage)
		r.Delete("/history", h.deleteHistory)
	})
	return r
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.Ping(r.Context()); err != nil {
		JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func userIDParam(r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "userID")
	id, err := uuid.Parse(raw)
	if err != nil || len(raw) != 36 {
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.token != "" {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
				w.Header().Set("WWW-Authenticate", "Bearer")
				Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
