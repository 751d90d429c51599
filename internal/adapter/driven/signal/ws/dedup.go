package ws

import (
	"sync"

	"github.com/avask/callline/internal/core/domain"
)

// dedupSet is a bounded, insertion-ordered set of processed message
// IDs. Once full, the oldest entry is evicted; by then the message it
// guarded is long past its useful life.
type dedupSet struct {
	mu    sync.Mutex
	seen  map[domain.MessageID]struct{}
	order []domain.MessageID
	cap   int
}

func newDedupSet(capacity int) *dedupSet {
	return &dedupSet{
		seen: make(map[domain.MessageID]struct{}, capacity),
		cap:  capacity,
	}
}

// Add records the ID and reports whether it was new.
func (d *dedupSet) Add(id domain.MessageID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return false
	}
	if len(d.order) >= d.cap {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}
	d.seen[id] = struct{}{}
	d.order = append(d.order, id)
	return true
}

func (d *dedupSet) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = make(map[domain.MessageID]struct{}, d.cap)
	d.order = nil
}
