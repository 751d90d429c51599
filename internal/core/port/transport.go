package port

import (
	"context"

	"github.com/avask/callline/internal/core/domain"
)

// SignalHandler receives each inbound signaling message exactly once,
// after deduplication.
type SignalHandler func(msg domain.SignalMessage)

// SignalTransport delivers small signaling messages between two users
// over whatever substrate is available. Implementations must
// deduplicate inbound messages and keep delivering when the primary
// push channel degrades.
type SignalTransport interface {
	// Start begins receiving messages addressed to receiver. Calling
	// it again while listening is a no-op.
	Start(ctx context.Context, receiver domain.UserID, handler SignalHandler) error

	// Send delivers one message. Failures wrap *domain.DeliveryError;
	// the caller decides whether to retry or abort the call.
	Send(ctx context.Context, msg domain.SignalMessage) error

	// Stop releases subscriptions and clears the dedup state. Safe to
	// call when not listening.
	Stop()
}
