package digit

import (
	"math"
	"testing"

	"github.com/spindleworks/novem/errors"
)

// TestReduceKnownValues checks the concrete scenarios from the design notes.
func TestReduceKnownValues(t *testing.T) {
	tests := []struct {
		n    uint64
		want Address
	}{
		{0, 0},
		{1, 1},
		{9, 9},
		{12, 3},
		{18, 9},
		{27, 9},
		{99, 9},
		{123, 6},
		{1_000_000_007, 1},
		{math.MaxUint64, 6}, // 2^64-1 = 18446744073709551615, digit sum chain ends at 6
	}

	for _, tt := range tests {
		if got := Reduce(tt.n); got != tt.want {
			t.Errorf("Reduce(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

// TestReduceMatchesIterative cross-validates the closed-form reduction
// against literal digit-summing.
func TestReduceMatchesIterative(t *testing.T) {
	for n := uint64(0); n < 100_000; n++ {
		if Reduce(n) != ReduceIterative(n) {
			t.Fatalf("Reduce(%d)=%d disagrees with iterative %d", n, Reduce(n), ReduceIterative(n))
		}
	}
	// Spot-check large values where digit sums take several rounds
	for _, n := range []uint64{math.MaxUint64, math.MaxUint64 - 1, 1 << 63, 999_999_999_999_999_999} {
		if Reduce(n) != ReduceIterative(n) {
			t.Errorf("Reduce(%d)=%d disagrees with iterative %d", n, Reduce(n), ReduceIterative(n))
		}
	}
}

// TestReduceTotalityAndIdempotence covers totality, determinism and
// idempotence once a single digit is reached.
func TestReduceTotalityAndIdempotence(t *testing.T) {
	for n := uint64(0); n < 10_000; n++ {
		a := Reduce(n)
		if a > 9 {
			t.Fatalf("Reduce(%d) = %d out of range", n, a)
		}
		if Reduce(n) != a {
			t.Fatalf("Reduce(%d) not deterministic", n)
		}
		if Reduce(uint64(a)) != a {
			t.Fatalf("Reduce not idempotent at %d: Reduce(%d)=%d", n, a, Reduce(uint64(a)))
		}
	}
}

// TestAnchorFixedPoints verifies 3, 6, 9 are fixed points and that exactly
// the multiples of three reduce into the anchor set.
func TestAnchorFixedPoints(t *testing.T) {
	for _, a := range Anchors {
		if Reduce(uint64(a)) != a {
			t.Errorf("anchor %d is not a fixed point", a)
		}
	}

	for n := uint64(1); n < 10_000; n++ {
		isAnchor := Reduce(n).IsAnchor()
		if n%3 == 0 && !isAnchor {
			t.Errorf("multiple of 3 (%d) reduced to non-anchor %d", n, Reduce(n))
		}
		if n%3 != 0 && isAnchor {
			t.Errorf("non-multiple of 3 (%d) reduced to anchor %d", n, Reduce(n))
		}
	}
}

// TestTraversalClosure walks the forward table from 1 six times and expects
// to return to 1 having visited every cycle position exactly once; same in
// reverse.
func TestTraversalClosure(t *testing.T) {
	pos := Address(1)
	seen := map[Address]bool{}
	for i := 0; i < 6; i++ {
		if seen[pos] {
			t.Fatalf("revisited %d before closure", pos)
		}
		seen[pos] = true
		next, err := pos.Successor()
		if err != nil {
			t.Fatalf("Successor(%d) errored: %v", pos, err)
		}
		pos = next
	}
	if pos != 1 {
		t.Errorf("forward walk ended at %d, want 1", pos)
	}
	if len(seen) != 6 {
		t.Errorf("forward walk visited %d positions, want 6", len(seen))
	}

	pos = 1
	seen = map[Address]bool{}
	for i := 0; i < 6; i++ {
		seen[pos] = true
		prev, err := pos.Predecessor()
		if err != nil {
			t.Fatalf("Predecessor(%d) errored: %v", pos, err)
		}
		pos = prev
	}
	if pos != 1 {
		t.Errorf("backward walk ended at %d, want 1", pos)
	}
	if len(seen) != 6 {
		t.Errorf("backward walk visited %d positions, want 6", len(seen))
	}
}

// TestSuccessorInverse verifies the backward table is the exact inverse of
// the forward table.
func TestSuccessorInverse(t *testing.T) {
	for _, a := range CycleOrder {
		next, err := a.Successor()
		if err != nil {
			t.Fatalf("Successor(%d): %v", a, err)
		}
		back, err := next.Predecessor()
		if err != nil {
			t.Fatalf("Predecessor(%d): %v", next, err)
		}
		if back != a {
			t.Errorf("Predecessor(Successor(%d)) = %d, want %d", a, back, a)
		}
	}
}

// TestNonCycleLookupFails ensures anchors and the void bucket are loud
// programming errors, never silent defaults.
func TestNonCycleLookupFails(t *testing.T) {
	for _, a := range []Address{0, 3, 6, 9} {
		if _, err := a.Successor(); !errors.IsNotCycleError(err) {
			t.Errorf("Successor(%d) should return ErrNotCycle, got %v", a, err)
		}
		if _, err := a.Predecessor(); !errors.IsNotCycleError(err) {
			t.Errorf("Predecessor(%d) should return ErrNotCycle, got %v", a, err)
		}
	}
}

func TestClassification(t *testing.T) {
	if !Address(0).IsVoid() {
		t.Error("0 should be void")
	}
	cycle := map[Address]bool{1: true, 2: true, 4: true, 5: true, 7: true, 8: true}
	for a := Address(0); a <= 9; a++ {
		if a.IsCycle() != cycle[a] {
			t.Errorf("IsCycle(%d) = %v, want %v", a, a.IsCycle(), cycle[a])
		}
		if a.IsAnchor() && a.IsCycle() {
			t.Errorf("address %d cannot be both anchor and cycle", a)
		}
	}
}

func TestAnchorExit(t *testing.T) {
	tests := []struct {
		anchor  Address
		forward bool
		want    Address
	}{
		{3, true, 4},
		{6, true, 7},
		{9, true, 1},
		{3, false, 2},
		{6, false, 5},
		{9, false, 8},
	}
	for _, tt := range tests {
		got, err := tt.anchor.AnchorExit(tt.forward)
		if err != nil {
			t.Fatalf("AnchorExit(%d, %v): %v", tt.anchor, tt.forward, err)
		}
		if got != tt.want {
			t.Errorf("AnchorExit(%d, %v) = %d, want %d", tt.anchor, tt.forward, got, tt.want)
		}
		if !got.IsCycle() {
			t.Errorf("AnchorExit(%d, %v) = %d is not a cycle position", tt.anchor, tt.forward, got)
		}
	}

	if _, err := Address(4).AnchorExit(true); err == nil {
		t.Error("AnchorExit on a cycle position should error")
	}
}
