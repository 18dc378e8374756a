package judge

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindleworks/novem/digit"
	"github.com/spindleworks/novem/item"
	"github.com/spindleworks/novem/subspace"
)

func testItem(t *testing.T, signal float64) *item.Item {
	t.Helper()
	var d [9]float64
	for i := range d {
		d[i] = 1
	}
	it, err := item.New(d, item.Channels{Character: 3, Logic: 3, Affect: 3}, signal, 3)
	require.NoError(t, err)
	return it
}

func snapWith(signal, div float64) *subspace.Snapshot {
	return &subspace.Snapshot{
		Bucket:     3,
		ComputedAt: time.Now(),
		WindowLen:  32,
		Signal:     signal,
		Divergence: div,
	}
}

func TestReverseOnDrift(t *testing.T) {
	j := New(DefaultConfig())
	it := testItem(t, 0.5)
	it.Depth.Add(100)

	res, err := j.Evaluate(digit.Anchor3, it, snapWith(0.2, 0.5))
	require.NoError(t, err)
	assert.Equal(t, DecisionReverse, res.Decision)
	assert.False(t, it.Forward, "reverse must flip direction")
	assert.Equal(t, uint64(100), it.Depth.Value(), "reverse does not reset the counter")
}

func TestAmplifyOnCoherence(t *testing.T) {
	j := New(DefaultConfig())
	it := testItem(t, 0.4)
	it.Depth.Add(100)

	res, err := j.Evaluate(digit.Anchor3, it, snapWith(0.8, 0.05))
	require.NoError(t, err)
	assert.Equal(t, DecisionAmplify, res.Decision)
	assert.InDelta(t, 0.4*1.15, it.Signal, 1e-9)
	assert.Equal(t, uint64(0), it.Depth.Value(), "amplify must reset the counter")
	assert.True(t, it.Forward, "amplify keeps direction")
}

func TestCoherentSignalNeverReverses(t *testing.T) {
	// First-match-wins: signal above coherence amplifies even when
	// divergence is also above its threshold.
	j := New(DefaultConfig())
	it := testItem(t, 0.5)

	res, err := j.Evaluate(digit.Anchor9, it, snapWith(0.9, 0.9))
	require.NoError(t, err)
	assert.Equal(t, DecisionAmplify, res.Decision)
}

func TestStabilizeOnAmbiguity(t *testing.T) {
	j := New(DefaultConfig())
	it := testItem(t, 0.5)
	it.Depth.Add(77)
	before := it.Distribution

	// Weak signal but low divergence: neither reverse nor amplify
	res, err := j.Evaluate(digit.Anchor6, it, snapWith(0.3, 0.05))
	require.NoError(t, err)
	assert.Equal(t, DecisionStabilize, res.Decision)
	assert.Equal(t, before, it.Distribution, "stabilize leaves the distribution alone")
	assert.InDelta(t, 0.5, it.Signal, 1e-12)
	assert.Equal(t, uint64(0), it.Depth.Value(), "stabilize must reset the counter")
}

func TestStabilizeOnMissingSnapshot(t *testing.T) {
	j := New(DefaultConfig())

	it := testItem(t, 0.5)
	res, err := j.Evaluate(digit.Anchor3, it, nil)
	require.NoError(t, err)
	assert.Equal(t, DecisionStabilize, res.Decision)

	// Empty-window snapshot is equally ambiguous
	it2 := testItem(t, 0.5)
	res, err = j.Evaluate(digit.Anchor3, it2, &subspace.Snapshot{Bucket: 3, IsDrift: true})
	require.NoError(t, err)
	assert.Equal(t, DecisionStabilize, res.Decision)
}

func TestAbsorbBelowFloor(t *testing.T) {
	j := New(DefaultConfig())
	it := testItem(t, 0.01)

	res, err := j.Evaluate(digit.Anchor3, it, snapWith(0.1, 0.6))
	require.NoError(t, err)
	assert.Equal(t, DecisionAbsorb, res.Decision)
	assert.True(t, it.Forward, "absorbed item is not mutated further")
}

func TestEvaluateRejectsNonAnchor(t *testing.T) {
	j := New(DefaultConfig())
	it := testItem(t, 0.5)
	_, err := j.Evaluate(4, it, nil)
	assert.Error(t, err, "judging a cycle position is caller misuse")
}

func TestOverflowResetThroughJudgment(t *testing.T) {
	// Drive the counter toward the maximum, then let an anchor judgment
	// reset it. The counter must expose a detectable pre-overflow signal
	// and never wrap.
	j := New(DefaultConfig())
	it := testItem(t, 0.5)

	it.Depth.Add(math.MaxUint64 - 5)
	assert.True(t, it.Depth.Near(), "counter near max must be detectable")
	it.Depth.Add(100)
	assert.Equal(t, uint64(math.MaxUint64), it.Depth.Value(), "no silent wrap")

	res, err := j.Evaluate(digit.Anchor9, it, snapWith(0.9, 0.0))
	require.NoError(t, err)
	assert.Equal(t, DecisionAmplify, res.Decision)
	assert.Equal(t, uint64(0), it.Depth.Value())
	assert.False(t, it.Depth.Near())
}

func TestPerAnchorSerialization(t *testing.T) {
	// Concurrent judgments at the same anchor must each observe a fully
	// consistent config: either entirely old or entirely new thresholds.
	j := New(Config{
		Anchors: map[digit.Address]Thresholds{
			digit.Anchor3: {Coherence: 0.5, Divergence: 0.15},
			digit.Anchor6: {Coherence: 0.5, Divergence: 0.15},
			digit.Anchor9: {Coherence: 0.5, Divergence: 0.15},
		},
		Magnification: 1.5,
		Boost:         0.15,
		AbsorbFloor:   0.05,
	})

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Threshold swapper alternating between two complete configs
	wg.Add(1)
	go func() {
		defer wg.Done()
		flip := false
		for {
			select {
			case <-stop:
				return
			default:
			}
			c := DefaultConfig()
			if flip {
				for a := range c.Anchors {
					c.Anchors[a] = Thresholds{Coherence: 0.9, Divergence: 0.01}
				}
			}
			flip = !flip
			j.SetConfig(c)
		}
	}()

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				it := testItem(t, 0.5)
				if _, err := j.Evaluate(digit.Anchor3, it, snapWith(0.7, 0.1)); err != nil {
					t.Errorf("Evaluate failed: %v", err)
					return
				}
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()
}

func TestDifferentAnchorsIndependent(t *testing.T) {
	// Judgments at 3, 6 and 9 run concurrently without serializing against
	// one another; this just exercises the paths under the race detector.
	j := New(DefaultConfig())
	var wg sync.WaitGroup
	for _, anchor := range digit.Anchors {
		wg.Add(1)
		go func(a digit.Address) {
			defer wg.Done()
			for i := 0; i < 300; i++ {
				it := testItem(t, 0.6)
				if _, err := j.Evaluate(a, it, snapWith(0.8, 0.05)); err != nil {
					t.Errorf("Evaluate(%d) failed: %v", a, err)
					return
				}
			}
		}(anchor)
	}
	wg.Wait()
}
