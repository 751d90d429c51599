package ws

import (
	"context"
	"sync"

	"github.com/avask/callline/internal/core/domain"
	"github.com/rs/zerolog/log"
)

// Hub tracks connected push clients by user. Implements
// port.PushGateway. A user reconnecting replaces the old connection.
type Hub struct {
	mu         sync.Mutex
	clients    map[domain.UserID]Client
	register   chan Client
	unregister chan Client
	quit       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[domain.UserID]Client),
		register:   make(chan Client),
		unregister: make(chan Client),
		quit:       make(chan struct{}),
	}
}

func (h *Hub) Push(ctx context.Context, receiver domain.UserID, msg domain.SignalMessage) error {
	h.mu.Lock()
	client, ok := h.clients[receiver]
	h.mu.Unlock()

	if !ok {
		// Offline receiver; not an error, polling covers it.
		return nil
	}
	return client.SendSignal(msg)
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for id, client := range h.clients {
				client.Close()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[client.UserID()]; ok {
				old.Close()
			}
			h.clients[client.UserID()] = client
			h.mu.Unlock()
			log.Info().Str("user_id", client.UserID().String()).Msg("Push client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.UserID()]; ok && current == client {
				delete(h.clients, client.UserID())
				client.Close()
				log.Info().Str("user_id", client.UserID().String()).Msg("Push client unregistered")
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Register(c Client) {
	select {
	case h.register <- c:
	case <-h.quit:
		c.Close()
	}
}

func (h *Hub) Unregister(c Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

func (h *Hub) Stop() {
	close(h.quit)
}
