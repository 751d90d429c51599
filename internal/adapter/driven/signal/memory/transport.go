// Package memory is an in-process signal transport: both parties live
// in the same process and messages hop between them through a shared
// bus. Used by tests and the loopback scenarios.
package memory

import (
	"context"
	"sync"

	"github.com/avask/callline/internal/core/domain"
	"github.com/avask/callline/internal/core/port"
)

// Bus routes signal messages between in-process transports by
// receiver ID.
type Bus struct {
	mu   sync.Mutex
	subs map[domain.UserID]*Transport
}

func NewBus() *Bus {
	return &Bus{subs: make(map[domain.UserID]*Transport)}
}

// Transport creates a transport bound to this bus.
func (b *Bus) Transport() *Transport {
	return &Transport{bus: b, seen: make(map[domain.MessageID]struct{})}
}

func (b *Bus) deliver(msg domain.SignalMessage) {
	b.mu.Lock()
	sub := b.subs[msg.ReceiverID]
	b.mu.Unlock()

	if sub != nil {
		sub.receive(msg)
	}
}

// Transport implements port.SignalTransport over a Bus. Delivery is
// asynchronous, like every real signaling path.
type Transport struct {
	bus *Bus

	mu       sync.Mutex
	started  bool
	receiver domain.UserID
	handler  port.SignalHandler
	seen     map[domain.MessageID]struct{}
}

func (t *Transport) Start(ctx context.Context, receiver domain.UserID, handler port.SignalHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return nil
	}
	t.started = true
	t.receiver = receiver
	t.handler = handler

	t.bus.mu.Lock()
	t.bus.subs[receiver] = t
	t.bus.mu.Unlock()
	return nil
}

func (t *Transport) Send(ctx context.Context, msg domain.SignalMessage) error {
	go t.bus.deliver(msg)
	return nil
}

func (t *Transport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		return
	}
	t.started = false

	t.bus.mu.Lock()
	delete(t.bus.subs, t.receiver)
	t.bus.mu.Unlock()

	t.seen = make(map[domain.MessageID]struct{})
	t.handler = nil
}

func (t *Transport) receive(msg domain.SignalMessage) {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return
	}
	if _, dup := t.seen[msg.ID]; dup {
		t.mu.Unlock()
		return
	}
	t.seen[msg.ID] = struct{}{}
	handler := t.handler
	t.mu.Unlock()

	handler(msg)
}
