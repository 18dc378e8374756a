// Package subspace implements the signal-subspace integrity monitor: rolling
// windows of channel observations per bucket, a low-rank variance
// decomposition over each window, and the drift decision that feeds the
// anchor judgment.
//
// Snapshots are immutable once computed. A refresh builds a new snapshot and
// swaps it in atomically, so in-flight judgments keep reading the snapshot
// they started with even while it is being superseded.
package subspace

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spindleworks/novem/digit"
	"github.com/spindleworks/novem/logger"
)

// ChannelScale normalizes the divergence measure; channels live in [0,9].
const ChannelScale = 9.0

// Params are the tunable knobs of the monitor. A Params value is immutable
// once handed to the monitor; hot reload swaps in a fresh value.
type Params struct {
	// WindowSize is the rolling window capacity per bucket
	WindowSize int
	// Rank is k: how many top eigen-directions count as signal
	Rank int
	// SignalThreshold flags drift when signal strength falls below it
	SignalThreshold float64
	// DivergenceThreshold flags drift when window divergence exceeds it
	DivergenceThreshold float64
}

// DefaultParams returns the stock monitor tuning.
func DefaultParams() Params {
	return Params{
		WindowSize:          64,
		Rank:                2,
		SignalThreshold:     0.5,
		DivergenceThreshold: 0.15,
	}
}

// Snapshot is the derived, read-only result of one variance decomposition
// over a bucket's rolling window.
type Snapshot struct {
	Bucket      digit.Address `json:"bucket"`
	ComputedAt  time.Time     `json:"computed_at"`
	WindowLen   int           `json:"window_len"`
	Rank        int           `json:"rank"`
	Eigenvalues [3]float64    `json:"eigenvalues"`
	// Directions holds the principal direction for each eigenvalue,
	// same order as Eigenvalues.
	Directions [3][3]float64 `json:"directions"`
	// Signal is top-k eigenvalue mass over total, clamped to [0,1];
	// zero when the window carried no variance at all.
	Signal float64 `json:"signal"`
	// Divergence is the normalized mean absolute difference between the
	// context (older) and forecast (newer) halves of the window.
	Divergence float64 `json:"divergence"`
	// IsDrift is the detection decision
	IsDrift bool `json:"is_drift"`
	// Trust is a combined score for reporting: weighted blend of signal
	// strength and divergence headroom.
	Trust float64 `json:"trust"`
}

// Monitor owns the per-bucket windows and their latest snapshots.
type Monitor struct {
	params atomic.Pointer[Params]

	mu      sync.Mutex
	windows [10]*window

	// latest[i] holds the most recent snapshot for bucket i; read without
	// locks by concurrent judgment evaluations.
	latest [10]atomic.Pointer[Snapshot]
}

// NewMonitor builds a monitor with the given parameters.
func NewMonitor(p Params) *Monitor {
	m := &Monitor{}
	m.params.Store(&p)
	m.mu.Lock()
	for i := range m.windows {
		m.windows[i] = newWindow(p.WindowSize)
	}
	m.mu.Unlock()
	return m
}

// SetParams swaps in new tuning. Existing windows keep their contents; only
// a changed window size rebuilds the buffers (carrying over the newest
// observations that still fit).
func (m *Monitor) SetParams(p Params) {
	old := m.params.Load()
	m.params.Store(&p)
	if old != nil && old.WindowSize == p.WindowSize {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, w := range m.windows {
		fresh := newWindow(p.WindowSize)
		ord := w.ordered()
		if len(ord) > p.WindowSize {
			ord = ord[len(ord)-p.WindowSize:]
		}
		for _, o := range ord {
			fresh.push(o)
		}
		m.windows[i] = fresh
	}
}

// Params returns the current tuning.
func (m *Monitor) Params() Params {
	return *m.params.Load()
}

// Observe records one channel triple for the given bucket.
func (m *Monitor) Observe(addr digit.Address, obs Observation) {
	if !addr.Valid() {
		return
	}
	m.mu.Lock()
	m.windows[addr].push(obs)
	m.mu.Unlock()
}

// Current returns the latest snapshot for the bucket, or nil when none has
// been computed yet. The returned snapshot is immutable.
func (m *Monitor) Current(addr digit.Address) *Snapshot {
	if !addr.Valid() {
		return nil
	}
	return m.latest[addr].Load()
}

// Refresh recomputes the snapshot for the bucket from its current window and
// publishes it. An empty window yields the neutral snapshot (signal 0, no
// drift) and a warning, not an error.
func (m *Monitor) Refresh(addr digit.Address) *Snapshot {
	if !addr.Valid() {
		return nil
	}
	p := *m.params.Load()

	m.mu.Lock()
	w := m.windows[addr]
	obs := w.ordered()
	ctx, forecast := w.halves()
	m.mu.Unlock()

	snap := compute(addr, obs, ctx, forecast, p)
	if snap.WindowLen == 0 {
		logger.Warnw("subspace refresh over empty window",
			logger.FieldAddress, int(addr))
	}
	m.latest[addr].Store(snap)
	return snap
}

// compute runs the decomposition and drift decision for one window. Pure;
// shared by Refresh and the tests.
func compute(addr digit.Address, obs, ctx, forecast []Observation, p Params) *Snapshot {
	snap := &Snapshot{
		Bucket:     addr,
		ComputedAt: time.Now(),
		WindowLen:  len(obs),
		Rank:       clampRank(p.Rank),
	}

	if len(obs) > 0 {
		cov := covariance(obs)
		snap.Eigenvalues = cov.Eigenvalues()
		for i, ev := range snap.Eigenvalues {
			snap.Directions[i] = cov.Eigenvector(ev)
		}

		var topK, total float64
		for i, ev := range snap.Eigenvalues {
			// Clamp tiny negative values from rounding
			if ev < 0 {
				ev = 0
			}
			total += ev
			if i < snap.Rank {
				topK += ev
			}
		}
		if total > 0 {
			snap.Signal = clamp01(topK / total)
		}
	}

	snap.Divergence = divergence(ctx, forecast)
	snap.IsDrift = snap.Signal < p.SignalThreshold || snap.Divergence > p.DivergenceThreshold
	// Trust blends the two measures for reporting only; the drift decision
	// above is what the judgment consumes.
	snap.Trust = clamp01(0.6*snap.Signal + 0.4*(1-snap.Divergence))
	return snap
}

// divergence is the normalized mean absolute difference between the two
// windows' per-channel means. Either window empty yields zero.
func divergence(ctx, forecast []Observation) float64 {
	if len(ctx) == 0 || len(forecast) == 0 {
		return 0
	}
	cm := channelMeans(ctx)
	fm := channelMeans(forecast)
	sum := math.Abs(cm[0]-fm[0]) + math.Abs(cm[1]-fm[1]) + math.Abs(cm[2]-fm[2])
	return sum / 3 / ChannelScale
}

func clampRank(k int) int {
	if k < 1 {
		return 1
	}
	if k > 3 {
		return 3
	}
	return k
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
