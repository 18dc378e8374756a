package item

import (
	"math"
	"testing"

	"github.com/spindleworks/novem/errors"
)

func evenDist() [9]float64 {
	var d [9]float64
	for i := range d {
		d[i] = 1
	}
	return d
}

func TestNewComputesAddress(t *testing.T) {
	it, err := New(evenDist(), Channels{3, 3, 3}, 0.5, 12)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if it.Address != 3 {
		t.Errorf("counter 12 should address bucket 3, got %d", it.Address)
	}
	if it.ID == "" {
		t.Error("item should receive an identity")
	}
	if !it.Forward {
		t.Error("new items traverse forward")
	}
}

func TestNewRejectsNegativeChannel(t *testing.T) {
	_, err := New(evenDist(), Channels{Character: -1, Logic: 5, Affect: 5}, 0.5, 1)
	if err == nil {
		t.Fatal("negative channel must be rejected")
	}
	if !errors.Is(err, errors.ErrNegativeChannel) {
		t.Errorf("want ErrNegativeChannel, got %v", err)
	}
}

func TestNewRejectsNegativeWeight(t *testing.T) {
	d := evenDist()
	d[4] = -0.1
	if _, err := New(d, Channels{3, 3, 3}, 0.5, 1); err == nil {
		t.Fatal("negative distribution weight must be rejected")
	}
}

func TestRenormalizeIdempotent(t *testing.T) {
	it, err := New([9]float64{2, 0, 1, 0, 0, 3, 0, 0, 4}, Channels{3, 3, 3}, 0.5, 7)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	once := it.Distribution
	it.Renormalize()
	for i := range once {
		if math.Abs(it.Distribution[i]-once[i]) > 1e-12 {
			t.Fatalf("renormalize not idempotent at slot %d: %v vs %v", i, it.Distribution[i], once[i])
		}
	}

	var sum float64
	for _, w := range it.Distribution {
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-12 {
		t.Errorf("distribution should sum to 1 after renormalize, got %v", sum)
	}
}

func TestRenormalizeZeroSum(t *testing.T) {
	it := &Item{}
	if it.Renormalize() {
		t.Error("zero-sum renormalize must report false")
	}
	for i, w := range it.Distribution {
		if w != 0 {
			t.Errorf("zero-sum distribution must be left unchanged, slot %d = %v", i, w)
		}
	}
}

func TestAmplifyMonotonicity(t *testing.T) {
	it, err := New(evenDist(), Channels{3, 3, 3}, 0.4, 3)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	prev := it.Signal
	for i := 0; i < 50; i++ {
		it.Amplify(3, 1.5, 0.15)
		if it.Signal < prev {
			t.Fatalf("signal decreased from %v to %v on amplify %d", prev, it.Signal, i)
		}
		prev = it.Signal
	}
	if it.Signal != 1.0 {
		t.Errorf("repeated amplification should saturate at 1.0, got %v", it.Signal)
	}

	// Anchor slot should dominate the distribution after repeated 1.5x scaling
	max := 0.0
	maxIdx := -1
	for i, w := range it.Distribution {
		if w > max {
			max, maxIdx = w, i
		}
	}
	if maxIdx != 2 {
		t.Errorf("slot for anchor 3 should dominate, dominant slot is %d", maxIdx+1)
	}
}

func TestRekey(t *testing.T) {
	it, err := New(evenDist(), Channels{3, 3, 3}, 0.5, 1)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	prev := it.Rekey(18)
	if prev != 1 {
		t.Errorf("Rekey should return previous address 1, got %d", prev)
	}
	if it.Address != 9 {
		t.Errorf("counter 18 should address bucket 9, got %d", it.Address)
	}
}

func TestChannelsBalanced(t *testing.T) {
	if !(Channels{3, 3, 3}).Balanced() {
		t.Error("3+3+3 is balanced")
	}
	if !(Channels{2.8, 3.4, 3.0}).Balanced() {
		t.Error("9.2 total is within tolerance")
	}
	if (Channels{1, 1, 1}).Balanced() {
		t.Error("3.0 total is off-balance")
	}
}

func TestDepthSaturates(t *testing.T) {
	d := Depth{N: math.MaxUint64 - 1}
	if !d.Inc() {
		t.Fatal("increment below max should succeed")
	}
	if d.Inc() {
		t.Fatal("increment at max must report saturation")
	}
	if d.N != math.MaxUint64 {
		t.Errorf("counter must clamp at max, got %d", d.N)
	}
	if !d.Saturated {
		t.Error("saturation flag must stick")
	}
	if !d.Near() {
		t.Error("saturated counter is near overflow by definition")
	}

	d.Reset()
	if d.N != 0 || d.Saturated {
		t.Error("reset should zero the counter and clear saturation")
	}
}

func TestDepthNeverWraps(t *testing.T) {
	d := Depth{N: math.MaxUint64}
	for i := 0; i < 1000; i++ {
		d.Inc()
	}
	if d.N != math.MaxUint64 {
		t.Fatalf("counter wrapped: %d", d.N)
	}

	d = Depth{N: math.MaxUint64 - 10}
	if d.Add(100) {
		t.Error("Add past max must report saturation")
	}
	if d.N != math.MaxUint64 {
		t.Errorf("Add must clamp at max, got %d", d.N)
	}
}

func TestDepthNearMargin(t *testing.T) {
	d := Depth{N: math.MaxUint64 - SaturationMargin}
	if !d.Near() {
		t.Error("counter at margin edge should report near-overflow")
	}
	d = Depth{N: math.MaxUint64 / 2}
	if d.Near() {
		t.Error("mid-range counter should not report near-overflow")
	}
}

func TestExportIsDetached(t *testing.T) {
	it, err := New(evenDist(), Channels{3, 3, 3}, 0.9, 5)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ex := it.Export()
	ex.Distribution[0] = 42
	ex.Signal = 0

	if it.Distribution[0] == 42 {
		t.Error("mutating an export must not touch the item")
	}
	if it.Signal != 0.9 {
		t.Error("mutating an export must not touch the item signal")
	}
}
