// Package memory holds signaling messages just long enough to be
// delivered. Messages are transient by design; anything past its
// retention window is swept, never archived.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/avask/callline/internal/core/domain"
)

type SignalStore struct {
	mu        sync.Mutex
	messages  []domain.SignalMessage
	retention time.Duration
}

func NewSignalStore(retention time.Duration) *SignalStore {
	return &SignalStore{
		messages:  make([]domain.SignalMessage, 0),
		retention: retention,
	}
}

func (s *SignalStore) Insert(ctx context.Context, msg domain.SignalMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(time.Now())
	s.messages = append(s.messages, msg)
	return nil
}

// ListFor returns messages addressed to receiver newer than since, in
// insertion order.
func (s *SignalStore) ListFor(ctx context.Context, receiver domain.UserID, since time.Time) ([]domain.SignalMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(time.Now())

	var out []domain.SignalMessage
	for _, msg := range s.messages {
		if msg.ReceiverID == receiver && msg.Timestamp.After(since) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (s *SignalStore) sweepLocked(now time.Time) {
	cutoff := now.Add(-s.retention)
	kept := s.messages[:0]
	for _, msg := range s.messages {
		if msg.Timestamp.After(cutoff) {
			kept = append(kept, msg)
		}
	}
	s.messages = kept
}
