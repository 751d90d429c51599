package port

import (
	"context"
	"time"

	"github.com/avask/callline/internal/core/domain"
)

// SignalStore persists signaling messages only long enough for
// delivery. Implementations sweep anything past its retention window.
type SignalStore interface {
	Insert(ctx context.Context, msg domain.SignalMessage) error
	ListFor(ctx context.Context, receiver domain.UserID, since time.Time) ([]domain.SignalMessage, error)
}

// PushGateway pushes a message to a connected receiver over the
// low-latency channel. An offline receiver is not an error; the
// message stays in the store for polling.
type PushGateway interface {
	Push(ctx context.Context, receiver domain.UserID, msg domain.SignalMessage) error
}
