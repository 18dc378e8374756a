// Package judge implements the anchor judgment subsystem. Whenever an item's
// address resolves to one of the anchor buckets {3,6,9} the judge weighs the
// item's accumulated signal against the latest subspace snapshot for that
// anchor and decides: reverse the traversal direction, amplify and continue,
// stabilize in place, or absorb the item entirely.
//
// Judgments for one anchor are mutually exclusive with threshold swaps for
// that anchor, so no item is ever judged against half-updated thresholds.
// The three anchors judge fully independently of one another.
package judge

import (
	"sync"
	"sync/atomic"

	"github.com/spindleworks/novem/digit"
	"github.com/spindleworks/novem/errors"
	"github.com/spindleworks/novem/item"
	"github.com/spindleworks/novem/subspace"
)

// Decision is a judgment outcome.
type Decision string

const (
	// DecisionReverse flips the item's traversal direction; issued when the
	// window signal is weak and divergence is high.
	DecisionReverse Decision = "reverse"

	// DecisionAmplify scales the item's association with the anchor and
	// boosts its signal; issued when the window signal is coherent.
	DecisionAmplify Decision = "amplify"

	// DecisionStabilize leaves the item unchanged apart from resetting its
	// lifecycle counter; issued in the ambiguous middle ground.
	DecisionStabilize Decision = "stabilize"

	// DecisionAbsorb terminates the item: it would reverse, but its own
	// signal has already fallen below the absorb floor, so continued
	// traversal cannot recover it.
	DecisionAbsorb Decision = "absorb"
)

// Thresholds are the per-anchor judgment thresholds.
type Thresholds struct {
	// Coherence is the minimum window signal strength to continue forward
	Coherence float64
	// Divergence is the maximum window divergence tolerated before reversal
	Divergence float64
}

// Config carries all judgment tuning. Values are immutable once handed to
// the judge; hot reload swaps in a fresh Config.
type Config struct {
	// Anchors maps each anchor address to its thresholds
	Anchors map[digit.Address]Thresholds
	// Magnification scales the anchor's distribution slot on amplify
	Magnification float64
	// Boost is the fractional signal increase on amplify
	Boost float64
	// AbsorbFloor is the signal level below which a reversing item is
	// absorbed instead
	AbsorbFloor float64
}

// DefaultConfig returns the stock judgment tuning.
func DefaultConfig() Config {
	return Config{
		Anchors: map[digit.Address]Thresholds{
			digit.Anchor3: {Coherence: 0.5, Divergence: 0.15},
			digit.Anchor6: {Coherence: 0.5, Divergence: 0.15},
			digit.Anchor9: {Coherence: 0.5, Divergence: 0.15},
		},
		Magnification: 1.5,
		Boost:         0.15,
		AbsorbFloor:   0.05,
	}
}

// Result reports one judgment for the event stream.
type Result struct {
	Decision   Decision `json:"decision"`
	Anchor     digit.Address `json:"anchor"`
	Signal     float64  `json:"signal"`
	Divergence float64  `json:"divergence"`
	Trust      float64  `json:"trust"`
	// RenormalizeFailed is set when amplification hit a zero-sum
	// distribution; recoverable, reported for observability.
	RenormalizeFailed bool `json:"renormalize_failed,omitempty"`
}

// Judge evaluates items arriving at anchor buckets.
type Judge struct {
	config atomic.Pointer[Config]

	// One mutex per anchor: index 0→anchor 3, 1→anchor 6, 2→anchor 9.
	// Judgments at different anchors never serialize against each other.
	mu [3]sync.Mutex
}

// New builds a judge with the given configuration.
func New(cfg Config) *Judge {
	j := &Judge{}
	j.config.Store(&cfg)
	return j
}

// SetConfig atomically swaps in new judgment tuning. Taking every anchor
// mutex first guarantees no in-flight judgment straddles the swap.
func (j *Judge) SetConfig(cfg Config) {
	for i := range j.mu {
		j.mu[i].Lock()
	}
	j.config.Store(&cfg)
	for i := len(j.mu) - 1; i >= 0; i-- {
		j.mu[i].Unlock()
	}
}

// Config returns the current judgment tuning.
func (j *Judge) Config() Config {
	return *j.config.Load()
}

// Evaluate judges an item that has arrived at the given anchor, mutating the
// item according to the outcome. The snapshot may be nil or computed over an
// empty window; both count as the ambiguous middle ground and stabilize.
//
// Evaluation order, first match wins:
//  1. weak signal AND high divergence → reverse (or absorb below the floor)
//  2. coherent signal → amplify and continue
//  3. otherwise → stabilize
//
// Amplify and stabilize both reset the lifecycle counter; this is the
// overflow-preservation rule, not an optimization.
func (j *Judge) Evaluate(anchor digit.Address, it *item.Item, snap *subspace.Snapshot) (Result, error) {
	idx, err := anchorIndex(anchor)
	if err != nil {
		return Result{}, err
	}

	j.mu[idx].Lock()
	defer j.mu[idx].Unlock()

	cfg := *j.config.Load()
	th, ok := cfg.Anchors[anchor]
	if !ok {
		th = Thresholds{Coherence: 0.5, Divergence: 0.15}
	}

	res := Result{Anchor: anchor}
	if snap != nil {
		res.Signal = snap.Signal
		res.Divergence = snap.Divergence
		res.Trust = snap.Trust
	}

	informed := snap != nil && snap.WindowLen > 0
	switch {
	case informed && snap.Signal < th.Coherence && snap.Divergence > th.Divergence:
		if it.Signal < cfg.AbsorbFloor {
			res.Decision = DecisionAbsorb
			return res, nil
		}
		it.Reverse()
		res.Decision = DecisionReverse

	case informed && snap.Signal >= th.Coherence:
		res.RenormalizeFailed = !it.Amplify(anchor, cfg.Magnification, cfg.Boost)
		it.Depth.Reset()
		res.Decision = DecisionAmplify

	default:
		it.Depth.Reset()
		res.Decision = DecisionStabilize
	}

	return res, nil
}

func anchorIndex(a digit.Address) (int, error) {
	switch a {
	case digit.Anchor3:
		return 0, nil
	case digit.Anchor6:
		return 1, nil
	case digit.Anchor9:
		return 2, nil
	default:
		return 0, errors.Wrapf(errors.ErrNotCycle, "address %d is not an anchor", a)
	}
}
