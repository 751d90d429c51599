package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/avask/callline/internal/adapter/driven/gateway/ws"
	"github.com/avask/callline/internal/core/domain"
	"github.com/avask/callline/internal/core/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	Relay *service.Relay
	Hub   *ws.Hub
}

func NewHandler(relay *service.Relay, hub *ws.Hub) *Handler {
	return &Handler{
		Relay: relay,
		Hub:   hub,
	}
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/api/signals", h.PostSignal)
	r.Get("/api/signals", h.ListSignals)
	r.Get("/ws", h.ServeWS)

	return r
}

// PostSignal accepts one signaling message and hands it to the relay.
func (h *Handler) PostSignal(w http.ResponseWriter, r *http.Request) {
	var msg domain.SignalMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "malformed signal", http.StatusBadRequest)
		return
	}
	if msg.ID == "" || msg.Kind == "" {
		http.Error(w, "signal missing id or type", http.StatusBadRequest)
		return
	}

	if err := h.Relay.Deliver(r.Context(), msg); err != nil {
		log.Error().Err(err).Str("message_id", msg.ID.String()).Msg("Failed to deliver signal")
		http.Error(w, "delivery failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// ListSignals serves the polling fallback: recent messages addressed
// to receiver_id.
func (h *Handler) ListSignals(w http.ResponseWriter, r *http.Request) {
	receiver, err := domain.ParseUserID(r.URL.Query().Get("receiver_id"))
	if err != nil {
		http.Error(w, "invalid receiver_id", http.StatusBadRequest)
		return
	}

	since := time.Now().Add(-time.Minute)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			http.Error(w, "invalid since timestamp", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	msgs, err := h.Relay.Backlog(r.Context(), receiver, since)
	if err != nil {
		log.Error().Err(err).Str("receiver_id", receiver.String()).Msg("Failed to list signals")
		http.Error(w, "listing failed", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []domain.SignalMessage{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(msgs); err != nil {
		log.Error().Err(err).Msg("Failed to encode signals")
	}
}
