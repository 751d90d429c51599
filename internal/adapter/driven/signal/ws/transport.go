// Package ws is the production signal transport: a websocket push
// channel against the relay server, with an HTTP polling fallback when
// the push channel dies. Both paths share one dedup set, so a message
// seen on the socket and again via polling is processed once.
package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/avask/callline/internal/core/domain"
	"github.com/avask/callline/internal/core/port"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Options tune the transport; zero values fall back to the defaults
// used across the engine.
type Options struct {
	PollInterval  time.Duration
	PollWindow    time.Duration
	DedupCapacity int
}

func (o *Options) fillDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.PollWindow <= 0 {
		o.PollWindow = 60 * time.Second
	}
	if o.DedupCapacity <= 0 {
		o.DedupCapacity = 256
	}
}

// Transport implements port.SignalTransport against the relay server
// at addr (host:port).
type Transport struct {
	addr  string
	httpc *http.Client
	opts  Options

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	conn     *websocket.Conn
	receiver domain.UserID
	handler  port.SignalHandler
	seen     *dedupSet
	polling  bool
	wg       sync.WaitGroup
}

func NewTransport(addr string, opts Options) *Transport {
	opts.fillDefaults()
	return &Transport{
		addr:  addr,
		httpc: &http.Client{Timeout: 10 * time.Second},
		opts:  opts,
		seen:  newDedupSet(opts.DedupCapacity),
	}
}

// Start dials the push channel and begins dispatching messages for
// receiver. Calling it again while listening is a no-op.
func (t *Transport) Start(ctx context.Context, receiver domain.UserID, handler port.SignalHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return nil
	}

	u := url.URL{Scheme: "ws", Host: t.addr, Path: "/ws", RawQuery: "user_id=" + receiver.String()}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)

	runCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.receiver = receiver
	t.handler = handler
	t.started = true

	if err != nil {
		// No push channel at all; polling is the primary path from
		// the start.
		log.Warn().Err(err).Msg("Push channel unavailable, starting on polling fallback")
		t.startPollingLocked(runCtx)
		return nil
	}

	t.conn = conn
	t.wg.Add(1)
	go t.readLoop(runCtx, conn)
	return nil
}

// Send delivers one message through the relay. Failures wrap
// *domain.DeliveryError so the call core can decide on a retry.
func (t *Transport) Send(ctx context.Context, msg domain.SignalMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return &domain.DeliveryError{Kind: msg.Kind, Err: err}
	}

	u := url.URL{Scheme: "http", Host: t.addr, Path: "/api/signals"}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return &domain.DeliveryError{Kind: msg.Kind, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpc.Do(req)
	if err != nil {
		return &domain.DeliveryError{Kind: msg.Kind, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return &domain.DeliveryError{Kind: msg.Kind, Err: fmt.Errorf("relay returned %s", resp.Status)}
	}
	return nil
}

// Stop releases the subscription and clears the dedup state. Safe to
// call when not listening.
func (t *Transport) Stop() {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return
	}
	t.started = false
	t.polling = false
	cancel := t.cancel
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	cancel()
	if conn != nil {
		conn.Close()
	}
	t.wg.Wait()
	t.seen.Reset()
}

func (t *Transport) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer t.wg.Done()

	for {
		var msg domain.SignalMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msg("Push channel lost, falling back to polling")
			t.mu.Lock()
			if t.started {
				t.startPollingLocked(ctx)
			}
			t.mu.Unlock()
			return
		}
		t.dispatch(msg)
	}
}

// startPollingLocked launches the polling loop. Exactly one poller
// runs per listener lifetime.
func (t *Transport) startPollingLocked(ctx context.Context) {
	if t.polling {
		return
	}
	t.polling = true
	t.wg.Add(1)
	go t.pollLoop(ctx)
}

func (t *Transport) pollLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.pollOnce(ctx)
		}
	}
}

func (t *Transport) pollOnce(ctx context.Context) {
	since := time.Now().Add(-t.opts.PollWindow).UTC()
	q := url.Values{}
	q.Set("receiver_id", t.receiver.String())
	q.Set("since", since.Format(time.RFC3339Nano))
	u := url.URL{Scheme: "http", Host: t.addr, Path: "/api/signals", RawQuery: q.Encode()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return
	}
	resp, err := t.httpc.Do(req)
	if err != nil {
		log.Debug().Err(err).Msg("Poll request failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Debug().Str("status", resp.Status).Msg("Poll request rejected")
		return
	}

	var msgs []domain.SignalMessage
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		log.Warn().Err(err).Msg("Decoding polled signals failed")
		return
	}
	for _, msg := range msgs {
		t.dispatch(msg)
	}
}

func (t *Transport) dispatch(msg domain.SignalMessage) {
	if !t.seen.Add(msg.ID) {
		log.Debug().Str("message_id", msg.ID.String()).Msg("Dropping duplicate signal")
		return
	}
	t.handler(msg)
}
