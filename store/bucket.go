package store

import (
	"sync"
	"sync/atomic"

	"github.com/spindleworks/novem/item"
)

// ChannelStats is the running aggregate of channel values a bucket has seen.
// It covers everything ever upserted into the bucket, not just current
// residents, giving cheap local statistics without retaining history.
type ChannelStats struct {
	Count        uint64  `json:"count"`
	SumCharacter float64 `json:"sum_character"`
	SumLogic     float64 `json:"sum_logic"`
	SumAffect    float64 `json:"sum_affect"`
}

// Means returns the per-channel means, zero when the bucket has seen nothing.
func (s ChannelStats) Means() [3]float64 {
	if s.Count == 0 {
		return [3]float64{}
	}
	n := float64(s.Count)
	return [3]float64{s.SumCharacter / n, s.SumLogic / n, s.SumAffect / n}
}

// bucket holds the items currently addressed to one of the ten addresses.
//
// Writers serialize on mu. Readers never touch mu: every mutation commits a
// fresh export slice into the atomic pointer, so SnapshotRead observes a
// fully applied state from some real moment without blocking or being
// blocked by writers.
type bucket struct {
	mu        sync.Mutex
	items     map[string]*item.Item
	stats     ChannelStats
	committed atomic.Pointer[[]item.Export]
}

func newBucket() *bucket {
	b := &bucket{items: make(map[string]*item.Item)}
	empty := []item.Export{}
	b.committed.Store(&empty)
	return b
}

// commit publishes the current residents as a read-only snapshot.
// Must be called with mu held after every mutation.
func (b *bucket) commit() {
	snap := make([]item.Export, 0, len(b.items))
	for _, it := range b.items {
		snap = append(snap, it.Export())
	}
	b.committed.Store(&snap)
}

// snapshot returns the last committed state. Lock-free.
func (b *bucket) snapshot() []item.Export {
	return *b.committed.Load()
}

// size returns the committed resident count. Lock-free.
func (b *bucket) size() int {
	return len(*b.committed.Load())
}

// record folds an arriving item's channels into the running aggregate.
// Must be called with mu held.
func (b *bucket) record(ch item.Channels) {
	b.stats.Count++
	b.stats.SumCharacter += ch.Character
	b.stats.SumLogic += ch.Logic
	b.stats.SumAffect += ch.Affect
}
