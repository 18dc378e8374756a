// Package item defines the transient unit that flows through the bucket
// store: a 9-slot association distribution, the three channel scalars, a
// signal/confidence value, the current address and a saturating lifecycle
// counter.
//
// Items are owned by the store once handed over. Upstream producers must
// treat a submitted item as immutable and communicate further changes only
// through Store.Upsert.
package item

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/spindleworks/novem/digit"
	"github.com/spindleworks/novem/errors"
)

// ChannelTotal is the soft target for the sum of the three channels.
// Violations are observable, not fatal.
const ChannelTotal = 9.0

// ChannelTolerance is the slack allowed around ChannelTotal before the sum
// is reported as off-balance.
const ChannelTolerance = 0.5

// Channels holds the three named scalar attributes of an item, each in [0,9].
type Channels struct {
	Character float64 `json:"character"`
	Logic     float64 `json:"logic"`
	Affect    float64 `json:"affect"`
}

// Sum returns the channel total.
func (c Channels) Sum() float64 {
	return c.Character + c.Logic + c.Affect
}

// Balanced reports whether the channel sum is within tolerance of the target
// total. This is the soft invariant; callers log violations, they do not fail.
func (c Channels) Balanced() bool {
	return math.Abs(c.Sum()-ChannelTotal) <= ChannelTolerance
}

// Triple returns the channels as an ordered observation vector for the
// subspace monitor.
func (c Channels) Triple() [3]float64 {
	return [3]float64{c.Character, c.Logic, c.Affect}
}

// Item is the transient unit flowing through the store.
//
// Distribution slot i holds the association weight for address i+1 (there is
// no slot for the void bucket). It behaves like a probability distribution
// and is renormalized after every mutation that changes it.
type Item struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Distribution [9]float64    `json:"distribution"`
	Channels     Channels      `json:"channels"`
	Signal       float64       `json:"signal"`
	Address      digit.Address `json:"address"`

	// Counter is the upstream source counter the address is keyed off.
	// It changes only through Rekey.
	Counter uint64 `json:"counter"`

	// Depth is the lifecycle counter: saturating, never wrapping. Anchor
	// judgments reset it; see Depth's methods for the overflow contract.
	Depth Depth `json:"depth"`

	// Forward is the traversal direction; reversed by anchor judgment.
	Forward bool `json:"forward"`
}

// New constructs an item from upstream inputs and computes its initial
// address from the source counter. Negative channel values are caller misuse
// and fail loudly; they are never clamped.
func New(dist [9]float64, ch Channels, signal float64, counter uint64) (*Item, error) {
	if ch.Character < 0 || ch.Logic < 0 || ch.Affect < 0 {
		return nil, errors.Wrapf(errors.ErrNegativeChannel,
			"character=%.3f logic=%.3f affect=%.3f", ch.Character, ch.Logic, ch.Affect)
	}
	for i, w := range dist {
		if w < 0 {
			return nil, errors.Newf("negative distribution weight %.3f at slot %d", w, i)
		}
	}

	now := time.Now()
	it := &Item{
		ID:           uuid.New().String(),
		CreatedAt:    now,
		UpdatedAt:    now,
		Distribution: dist,
		Channels:     ch,
		Signal:       clamp01(signal),
		Address:      digit.Reduce(counter),
		Counter:      counter,
		Forward:      true,
	}
	it.Renormalize()
	return it, nil
}

// Renormalize scales the distribution so it sums to one. A zero-sum
// distribution is left unchanged and reported by returning false; the caller
// emits the warning event. Applying it twice is the same as applying it once.
func (it *Item) Renormalize() bool {
	var sum float64
	for _, w := range it.Distribution {
		sum += w
	}
	if sum == 0 {
		return false
	}
	for i := range it.Distribution {
		it.Distribution[i] /= sum
	}
	return true
}

// Rekey updates the source counter and recomputes the address. Returns the
// previous address so callers can detect relocation and anchor arrival.
func (it *Item) Rekey(counter uint64) digit.Address {
	prev := it.Address
	it.Counter = counter
	it.Address = digit.Reduce(counter)
	it.UpdatedAt = time.Now()
	return prev
}

// Amplify scales the distribution slot for the given anchor by factor,
// renormalizes, and boosts the signal by the given fraction, clamped to 1.0.
// Returns false when the distribution could not be renormalized (zero sum).
func (it *Item) Amplify(anchor digit.Address, factor, boost float64) bool {
	if anchor >= 1 && anchor <= 9 {
		it.Distribution[anchor-1] *= factor
	}
	ok := it.Renormalize()
	it.Signal = clamp01(it.Signal * (1 + boost))
	it.UpdatedAt = time.Now()
	return ok
}

// Reverse flips the traversal direction.
func (it *Item) Reverse() {
	it.Forward = !it.Forward
	it.UpdatedAt = time.Now()
}

// Export is a read-only copy of an item offered to egress collaborators
// (archival sinks, visualization). Mutating an Export never touches store
// state.
type Export struct {
	ID           string        `json:"id"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Distribution [9]float64    `json:"distribution"`
	Channels     Channels      `json:"channels"`
	Signal       float64       `json:"signal"`
	Address      digit.Address `json:"address"`
	Counter      uint64        `json:"counter"`
	Depth        uint64        `json:"depth"`
	Forward      bool          `json:"forward"`
}

// Export returns a detached copy of the item.
func (it *Item) Export() Export {
	return Export{
		ID:           it.ID,
		CreatedAt:    it.CreatedAt,
		UpdatedAt:    it.UpdatedAt,
		Distribution: it.Distribution,
		Channels:     it.Channels,
		Signal:       it.Signal,
		Address:      it.Address,
		Counter:      it.Counter,
		Depth:        it.Depth.Value(),
		Forward:      it.Forward,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
