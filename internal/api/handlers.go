package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Ifsling/os-in-website/internal/kafka"
	"github.com/Ifsling/os-in-website/internal/logging"
	"github.com/Ifsling/os-in-website/internal/minesweeper"
	"github.com/Ifsling/os-in-website/internal/sessions"
	"github.com/Ifsling/os-in-website/internal/storage"
)

var logger = logging.Component("api")

// Handlers holds API handler dependencies. store and consumer may be nil
type Handlers struct {
	sessions *sessions.Manager
	store    storage.Store
	producer *kafka.Producer
	consumer *kafka.Consumer
}

// NewHandlers creates a new API handlers instance
func NewHandlers(sm *sessions.Manager, store storage.Store, producer *kafka.Producer, consumer *kafka.Consumer) *Handlers {
	return &Handlers{
		sessions: sm,
		store:    store,
		producer: producer,
		consumer: consumer,
	}
}

// RegisterRoutes registers API routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.OpenSession)
		r.Get("/", h.ListSessions)
		r.Get("/{id}", h.GetSession)
		r.Delete("/{id}", h.CloseSession)
		r.Post("/{id}/actions", h.ApplyAction)
	})
	r.Get("/leaderboard", h.GetLeaderboard)
	r.Delete("/leaderboard", h.ClearLeaderboard)
	r.Get("/stats/{player}", h.GetPlayerStats)
	r.Get("/best-times/{difficulty}", h.GetBestTimes)
	r.Get("/analytics", h.GetAnalytics)
	r.Get("/status", h.GetStatus)
}

type openRequest struct {
	Player     string `json:"player"`
	Kind       string `json:"kind"`
	Difficulty string `json:"difficulty,omitempty"`
	Mode       string `json:"mode,omitempty"`
}

// OpenSession opens a game window for a player
func (h *Handlers) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	kind, err := sessions.ParseKind(req.Kind)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s, created, err := h.sessions.Open(req.Player, kind, sessions.Options{
		Difficulty: req.Difficulty,
		Mode:       req.Mode,
	})
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSONStatus(w, status, s.Snapshot())
}

// ListSessions lists open sessions, optionally for one player
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	list := h.sessions.List(r.URL.Query().Get("player"))
	snapshots := make([]sessions.Snapshot, 0, len(list))
	for _, s := range list {
		snapshots = append(snapshots, s.Snapshot())
	}
	respondJSON(w, snapshots)
}

// GetSession returns the current state of a session
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, s.Snapshot())
}

// CloseSession closes a session and drops its unfinished round
func (h *Handlers) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(chi.URLParam(r, "id")); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, map[string]string{"message": "Session closed"})
}

// ApplyAction applies one action. When the action hands the turn to the
// bot, the bot's reply is applied before responding
func (h *Handlers) ApplyAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var action sessions.Action
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, err := h.sessions.Apply(id, action)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	if snap.AwaitingReply {
		reply, err := h.sessions.Apply(id, sessions.Action{Type: sessions.ActionAI})
		if err != nil {
			logger.WithField("session", id).WithError(err).Error("bot reply failed")
		} else {
			reply.Changed = true
			snap = reply
		}
	}

	respondJSON(w, snap)
}

// GetLeaderboard returns the top players, optionally for one game
func (h *Handlers) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	kind := r.URL.Query().Get("kind")
	if kind != "" {
		k, err := sessions.ParseKind(kind)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		kind = string(k)
	}

	entries, err := h.store.Leaderboard(r.Context(), kind, queryLimit(r))
	if err != nil {
		h.storeFailure(w, "Failed to get leaderboard", err)
		return
	}
	respondJSON(w, entries)
}

// ClearLeaderboard deletes all stored rounds
func (h *Handlers) ClearLeaderboard(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	if err := h.store.Clear(r.Context()); err != nil {
		h.storeFailure(w, "Failed to clear leaderboard", err)
		return
	}
	respondJSON(w, map[string]string{"message": "Leaderboard cleared successfully"})
}

// GetPlayerStats returns statistics for a specific player
func (h *Handlers) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	player := chi.URLParam(r, "player")

	stats, err := h.store.PlayerStats(r.Context(), player)
	if err != nil {
		h.storeFailure(w, "Failed to get player stats", err)
		return
	}
	respondJSON(w, stats)
}

// GetBestTimes returns the fastest Minesweeper wins for a difficulty
func (h *Handlers) GetBestTimes(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	d, err := minesweeper.ParseDifficulty(chi.URLParam(r, "difficulty"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	times, err := h.store.BestTimes(r.Context(), d.Name, queryLimit(r))
	if err != nil {
		h.storeFailure(w, "Failed to get best times", err)
		return
	}
	respondJSON(w, times)
}

// GetAnalytics combines stored, live and streamed analytics
func (h *Handlers) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"realtime": map[string]any{
			"activeSessions": h.sessions.ActiveCount(),
			"kafkaEnabled":   h.producer.IsEnabled(),
		},
	}

	if h.store != nil {
		dbAnalytics, err := h.store.Analytics(r.Context())
		if err != nil {
			h.storeFailure(w, "Failed to get analytics", err)
			return
		}
		response["database"] = dbAnalytics
	}

	if h.consumer != nil {
		response["kafka"] = map[string]any{
			"avgRoundDurationMs": h.consumer.GetAverageRoundDuration(),
			"mostFrequentWinner": h.consumer.GetMostFrequentWinner(),
			"roundsPerHour":      h.consumer.GetRoundsPerHour(),
			"metrics":            h.consumer.GetMetrics(),
		}
	}

	respondJSON(w, response)
}

// GetStatus returns server status
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]any{
		"status":         "ok",
		"activeSessions": h.sessions.ActiveCount(),
		"storeEnabled":   h.store != nil,
		"kafkaEnabled":   h.producer.IsEnabled(),
	})
}

func (h *Handlers) requireStore(w http.ResponseWriter) bool {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "storage is not configured")
		return false
	}
	return true
}

func (h *Handlers) storeFailure(w http.ResponseWriter, msg string, err error) {
	logger.WithError(err).Error(msg)
	respondError(w, http.StatusInternalServerError, msg)
}

// statusFor maps domain errors to HTTP status codes. Anything the game
// itself rejected is a conflict with the current state
func statusFor(err error) int {
	switch {
	case errors.Is(err, sessions.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, sessions.ErrInvalidInput),
		errors.Is(err, sessions.ErrUnknownKind),
		errors.Is(err, sessions.ErrUnknownAction):
		return http.StatusBadRequest
	default:
		return http.StatusConflict
	}
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, data any) {
	respondJSONStatus(w, http.StatusOK, data)
}

func respondJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSONStatus(w, status, map[string]string{"error": msg})
}
