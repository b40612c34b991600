package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/relaylabs/chatrelay/internal/dispatcher"
	"github.com/relaylabs/chatrelay/internal/model"
	"github.com/relaylabs/chatrelay/internal/registry"
	"github.com/relaylabs/chatrelay/internal/store"
)

// Store is the request/response storage surface the server consumes.
type Store interface {
	FindOrCreateUser(ctx context.Context, name string) (model.User, error)
	GetUser(ctx context.Context, id int64) (model.User, error)
	RecentMessages(ctx context.Context, userID, beforeID int64, limit int) ([]model.Message, error)
}

// Pinger reports storage health for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the HTTP and websocket handlers.
type Server struct {
	logger     *slog.Logger
	store      Store
	pinger     Pinger
	registry   *registry.Registry
	dispatcher *dispatcher.Dispatcher
}

// New creates a server. pinger may be nil, in which case the health
// endpoint only reports process liveness.
func New(st Store, pinger Pinger, reg *registry.Registry, disp *dispatcher.Dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:     logger,
		store:      st,
		pinger:     pinger,
		registry:   reg,
		dispatcher: disp,
	}
}

// Router wires all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api", func(api chi.Router) {
		api.Post("/users", s.handleFindOrCreateUser)
		api.Get("/users/{id}", s.handleGetUser)
		api.Get("/users/{id}/messages", s.handleMessages)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	code := http.StatusOK

	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			s.logger.Warn("health check failed", "error", err)
			status = map[string]string{"status": "degraded", "database": err.Error()}
			code = http.StatusServiceUnavailable
		} else {
			status["database"] = "connected"
		}
	}

	respondJSON(w, code, status)
}

func (s *Server) handleFindOrCreateUser(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	user, err := s.store.FindOrCreateUser(r.Context(), payload.Name)
	if err != nil {
		s.logger.Error("find or create user failed", "name", payload.Name, "error", err)
		respondError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := s.store.GetUser(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		s.logger.Error("get user failed", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if _, err := s.store.GetUser(r.Context(), userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		s.logger.Error("get user failed", "id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	var beforeID int64
	if raw := r.URL.Query().Get("before"); raw != "" {
		beforeID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || beforeID < 1 {
			respondError(w, http.StatusBadRequest, "invalid before parameter")
			return
		}
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			respondError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
	}

	msgs, err := s.store.RecentMessages(r.Context(), userID, beforeID, limit)
	if err != nil {
		s.logger.Error("list messages failed", "user_id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}

	respondJSON(w, http.StatusOK, msgs)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
