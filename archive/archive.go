// Package archive defines the egress boundary for high-value items: items
// whose signal crosses the configured threshold are offered to a Sink as
// detached read-only copies. Storage format, encryption and retention are
// the sink's business, not the core's.
package archive

import (
	"sync"

	"github.com/spindleworks/novem/item"
)

// Sink receives read-only copies of qualifying items. Implementations must
// not assume synchronous consumption; Offer may be called from store write
// paths and should return quickly.
type Sink interface {
	Offer(item.Export) error
}

// MemorySink retains the most recent offers in memory, bounded by capacity.
// It serves tests and the demo CLI; production deployments plug in their own
// sink.
type MemorySink struct {
	mu    sync.Mutex
	limit int
	items []item.Export
}

// NewMemorySink builds a sink retaining at most limit items (oldest evicted
// first). A non-positive limit defaults to 256.
func NewMemorySink(limit int) *MemorySink {
	if limit <= 0 {
		limit = 256
	}
	return &MemorySink{limit: limit}
}

// Offer records the export, evicting the oldest entry when full.
func (s *MemorySink) Offer(ex item.Export) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) >= s.limit {
		s.items = s.items[1:]
	}
	s.items = append(s.items, ex)
	return nil
}

// Items returns a copy of the retained exports, oldest first.
func (s *MemorySink) Items() []item.Export {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]item.Export, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of retained exports.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
