// Package directory resolves user IDs to display identities. The call
// engine only reads from it; profile ownership lives elsewhere.
package directory

import (
	"context"
	"sync"

	"github.com/avask/callline/internal/core/domain"
)

// Static is an in-memory directory seeded at construction. Implements
// port.Directory; unknown users resolve to their ID as the name, so a
// missing profile never blocks a call.
type Static struct {
	mu      sync.RWMutex
	entries map[domain.UserID]domain.Participant
}

func NewStatic() *Static {
	return &Static{entries: make(map[domain.UserID]domain.Participant)}
}

func (d *Static) Put(p domain.Participant) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[p.ID] = p
}

func (d *Static) Participant(ctx context.Context, id domain.UserID) (domain.Participant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if p, ok := d.entries[id]; ok {
		return p, nil
	}
	return domain.Participant{ID: id, Name: id.String()}, nil
}
