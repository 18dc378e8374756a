package subspace

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEigenvaluesDiagonal(t *testing.T) {
	m := Sym3{A11: 3, A22: 1, A33: 2}
	ev := m.Eigenvalues()
	assert.InDelta(t, 3.0, ev[0], 1e-9)
	assert.InDelta(t, 2.0, ev[1], 1e-9)
	assert.InDelta(t, 1.0, ev[2], 1e-9)
}

func TestEigenvaluesKnownMatrix(t *testing.T) {
	// [[2,1,0],[1,2,0],[0,0,3]] has eigenvalues 3, 3, 1
	m := Sym3{A11: 2, A12: 1, A13: 0, A22: 2, A23: 0, A33: 3}
	ev := m.Eigenvalues()
	assert.InDelta(t, 3.0, ev[0], 1e-9)
	assert.InDelta(t, 3.0, ev[1], 1e-9)
	assert.InDelta(t, 1.0, ev[2], 1e-9)

	// Trace is preserved
	assert.InDelta(t, 7.0, ev[0]+ev[1]+ev[2], 1e-9)
}

func TestEigenvectorOrthogonality(t *testing.T) {
	m := Sym3{A11: 4, A12: 1, A13: 0.5, A22: 3, A23: 0.2, A33: 2}
	ev := m.Eigenvalues()

	v0 := m.Eigenvector(ev[0])
	v2 := m.Eigenvector(ev[2])

	// Unit length
	assert.InDelta(t, 1.0, norm(v0), 1e-9)
	// Distinct eigenvalues of a symmetric matrix have orthogonal eigenvectors
	dot := v0[0]*v2[0] + v0[1]*v2[1] + v0[2]*v2[2]
	assert.InDelta(t, 0.0, dot, 1e-6)

	// A*v = lambda*v for the dominant direction
	av := [3]float64{
		m.A11*v0[0] + m.A12*v0[1] + m.A13*v0[2],
		m.A12*v0[0] + m.A22*v0[1] + m.A23*v0[2],
		m.A13*v0[0] + m.A23*v0[1] + m.A33*v0[2],
	}
	for i := 0; i < 3; i++ {
		assert.InDelta(t, ev[0]*v0[i], av[i], 1e-6)
	}
}

func TestWindowRingBuffer(t *testing.T) {
	w := newWindow(4)
	for i := 1; i <= 6; i++ {
		w.push(Observation{float64(i), 0, 0})
	}
	require.Equal(t, 4, w.len())

	ord := w.ordered()
	require.Len(t, ord, 4)
	// Oldest first: 3, 4, 5, 6
	assert.Equal(t, 3.0, ord[0][0])
	assert.Equal(t, 6.0, ord[3][0])

	ctx, fc := w.halves()
	require.Len(t, ctx, 2)
	require.Len(t, fc, 2)
	assert.Equal(t, 3.0, ctx[0][0])
	assert.Equal(t, 5.0, fc[0][0])
}

// TestDivergenceConcreteScenario is the worked drift example: context means
// (6,6,6), forecast means (2,2,2) gives divergence 4/9 which exceeds the
// default 0.15 threshold.
func TestDivergenceConcreteScenario(t *testing.T) {
	m := NewMonitor(DefaultParams())

	for i := 0; i < 32; i++ {
		m.Observe(9, Observation{6, 6, 6})
	}
	for i := 0; i < 32; i++ {
		m.Observe(9, Observation{2, 2, 2})
	}

	snap := m.Refresh(9)
	require.NotNil(t, snap)

	assert.InDelta(t, 4.0/9.0, snap.Divergence, 1e-9)
	assert.True(t, snap.IsDrift, "divergence 0.444 must flag drift")
}

func TestSignalStrengthConcentrated(t *testing.T) {
	m := NewMonitor(Params{WindowSize: 64, Rank: 1, SignalThreshold: 0.5, DivergenceThreshold: 0.15})

	// Variance along a single direction: rank-1 signal captures everything
	for i := 0; i < 64; i++ {
		v := float64(i % 7)
		m.Observe(3, Observation{v, v, v})
	}
	snap := m.Refresh(3)
	require.NotNil(t, snap)
	assert.InDelta(t, 1.0, snap.Signal, 1e-9, "single-direction variance is pure signal")
	assert.False(t, snap.Signal > 1 || snap.Signal < 0)
}

func TestSignalStrengthIsotropic(t *testing.T) {
	m := NewMonitor(Params{WindowSize: 96, Rank: 1, SignalThreshold: 0.9, DivergenceThreshold: 1.0})

	// Independent variance on each axis: top-1 captures roughly a third
	vals := []float64{0, 3, 6, 9}
	n := 0
	for _, a := range vals {
		for _, b := range vals {
			for _, c := range vals {
				m.Observe(6, Observation{a, b, c})
				n++
			}
		}
	}
	require.Equal(t, 64, n)

	snap := m.Refresh(6)
	require.NotNil(t, snap)
	assert.InDelta(t, 1.0/3.0, snap.Signal, 0.05)
	assert.True(t, snap.IsDrift, "weak signal must flag drift under a 0.9 threshold")
}

func TestEmptyWindowNeutral(t *testing.T) {
	m := NewMonitor(DefaultParams())
	snap := m.Refresh(3)
	require.NotNil(t, snap)
	assert.Equal(t, 0, snap.WindowLen)
	assert.Equal(t, 0.0, snap.Signal)
	assert.Equal(t, 0.0, snap.Divergence)
	// Signal 0 < threshold flags drift even on the neutral snapshot; the
	// judgment layer treats a nil/empty-window snapshot as ambiguous instead.
	assert.True(t, snap.IsDrift)
}

func TestConstantWindowNoVariance(t *testing.T) {
	m := NewMonitor(DefaultParams())
	for i := 0; i < 20; i++ {
		m.Observe(9, Observation{3, 3, 3})
	}
	snap := m.Refresh(9)
	require.NotNil(t, snap)
	// Zero total variance is defined as signal 0
	assert.Equal(t, 0.0, snap.Signal)
	assert.Equal(t, 0.0, snap.Divergence)
}

func TestSnapshotImmutableSwap(t *testing.T) {
	m := NewMonitor(DefaultParams())
	for i := 0; i < 10; i++ {
		m.Observe(3, Observation{float64(i), 3, 3})
	}
	first := m.Refresh(3)

	for i := 0; i < 10; i++ {
		m.Observe(3, Observation{9, 9, 9})
	}
	second := m.Refresh(3)

	assert.NotSame(t, first, second, "refresh must build a new snapshot, not mutate")
	assert.Same(t, second, m.Current(3))
	assert.Equal(t, 10, first.WindowLen, "superseded snapshot must be untouched")
}

func TestSetParamsRebuildsWindows(t *testing.T) {
	m := NewMonitor(Params{WindowSize: 8, Rank: 2, SignalThreshold: 0.5, DivergenceThreshold: 0.15})
	for i := 0; i < 8; i++ {
		m.Observe(6, Observation{float64(i), 0, 0})
	}

	m.SetParams(Params{WindowSize: 4, Rank: 2, SignalThreshold: 0.5, DivergenceThreshold: 0.15})
	snap := m.Refresh(6)
	assert.Equal(t, 4, snap.WindowLen, "shrunk window keeps only the newest observations")
}

func TestTrustBounds(t *testing.T) {
	m := NewMonitor(DefaultParams())
	for i := 0; i < 40; i++ {
		m.Observe(9, Observation{math.Mod(float64(i)*1.7, 9), 4, 4})
	}
	snap := m.Refresh(9)
	assert.GreaterOrEqual(t, snap.Trust, 0.0)
	assert.LessOrEqual(t, snap.Trust, 1.0)
}
