package service

import (
	"context"
	"time"

	"github.com/avask/callline/internal/core/domain"
	"github.com/avask/callline/internal/core/port"
	"github.com/rs/zerolog/log"
)

// Relay is the server-side delivery substrate: every signal is stored
// for polling and pushed to the receiver when a push channel is up.
type Relay struct {
	store   port.SignalStore
	gateway port.PushGateway
}

func NewRelay(store port.SignalStore, gateway port.PushGateway) *Relay {
	return &Relay{
		store:   store,
		gateway: gateway,
	}
}

// Deliver accepts one signal. Storing it is what makes delivery
// at-least-once; a push failure only costs latency, the receiver
// picks the message up by polling.
func (r *Relay) Deliver(ctx context.Context, msg domain.SignalMessage) error {
	if err := r.store.Insert(ctx, msg); err != nil {
		return err
	}
	if err := r.gateway.Push(ctx, msg.ReceiverID, msg); err != nil {
		log.Warn().
			Err(err).
			Str("receiver_id", msg.ReceiverID.String()).
			Str("kind", string(msg.Kind)).
			Msg("Push failed, message left for polling")
	}
	return nil
}

// Backlog returns messages addressed to receiver newer than since.
func (r *Relay) Backlog(ctx context.Context, receiver domain.UserID, since time.Time) ([]domain.SignalMessage, error) {
	return r.store.ListFor(ctx, receiver, since)
}
