package http

import (
	"net/http"
	"sync"

	"github.com/avask/callline/internal/core/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO: restrict origins once the client list is known
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WSClient struct {
	userID domain.UserID

	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *WSClient) UserID() domain.UserID {
	return c.userID
}

func (c *WSClient) SendSignal(msg domain.SignalMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *WSClient) Close() error {
	return c.conn.Close()
}

// ServeWS upgrades the connection and registers it as the push channel
// for user_id. The client never writes signals over the socket; sends
// go through POST /api/signals.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, err := domain.ParseUserID(r.URL.Query().Get("user_id"))
	if err != nil {
		http.Error(w, "invalid user_id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error while upgrading ws")
		return
	}

	client := &WSClient{
		userID: userID,
		conn:   conn,
	}

	l := log.With().Str("user_id", userID.String()).Logger()
	l.Info().Msg("Push client connected")

	h.Hub.Register(client)

	defer func() {
		l.Info().Msg("Push client disconnected")
		h.Hub.Unregister(client)
	}()

	// Drain until the client goes away; inbound frames carry nothing.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.Error().Err(err).Msg("Unexpected close error")
			}
			return
		}
	}
}
