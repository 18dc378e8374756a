package store

import (
	"sync"
	"time"

	"github.com/spindleworks/novem/digit"
	"github.com/spindleworks/novem/judge"
)

// EventKind labels an entry on the store's event stream.
type EventKind string

const (
	// EventUpsert is emitted on every insert or relocation
	EventUpsert EventKind = "upsert"
	// EventRemove is emitted on explicit removal
	EventRemove EventKind = "remove"
	// EventJudgment is emitted for every anchor judgment decision
	EventJudgment EventKind = "judgment"
	// EventAbsorb is emitted when a judgment terminates an item
	EventAbsorb EventKind = "absorb"
	// EventHighValue is emitted when an item is offered to the archive sink
	EventHighValue EventKind = "high_value"
	// EventWarning is emitted for recoverable inconsistencies
	// (zero-sum renormalization, failed sink offers)
	EventWarning EventKind = "warning"
	// EventSaturation is emitted when an item's lifecycle counter saturates
	EventSaturation EventKind = "saturation"
)

// Event is one record on the store's egress stream. Persistence, archival
// and visualization collaborators subscribe to these; the store makes no
// assumption about whether they are consumed synchronously or buffered.
type Event struct {
	Kind       EventKind      `json:"kind"`
	At         time.Time      `json:"at"`
	ItemID     string         `json:"item_id,omitempty"`
	From       digit.Address  `json:"from"`
	To         digit.Address  `json:"to"`
	Decision   judge.Decision `json:"decision,omitempty"`
	Signal     float64        `json:"signal,omitempty"`
	Divergence float64        `json:"divergence,omitempty"`
	Detail     string         `json:"detail,omitempty"`
}

// subscriberBuffer is the per-subscriber channel depth; slow consumers drop
// events rather than back-pressuring store writes.
const subscriberBuffer = 256

type eventBus struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[chan Event]struct{})}
}

// subscribe returns a receive channel and its cancel function.
func (b *eventBus) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// publish fans the event out to all subscribers, dropping on full channels.
func (b *eventBus) publish(ev Event) {
	b.mu.Lock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Channel full - skip
		}
	}
	b.mu.Unlock()
}

// closeAll tears down every subscription.
func (b *eventBus) closeAll() {
	b.mu.Lock()
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}
