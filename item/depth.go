package item

import "math"

// SaturationMargin is how close to the uint64 maximum the lifecycle counter
// may climb before Near() starts reporting. Anchor judgments are expected to
// reset the counter long before this margin is reachable; the margin exists
// so a store that somehow never visits an anchor still surfaces a detectable
// signal instead of wrapping.
const SaturationMargin = 1 << 16

// Depth is the item lifecycle counter. Arithmetic is saturating: once the
// counter reaches the uint64 maximum further increments are absorbed and the
// saturated flag sticks until an anchor judgment resets the counter. A wrap
// to zero would silently decouple the addressing scheme from the item's true
// processing history, so wrapping is a correctness bug here, not an overflow
// detail.
type Depth struct {
	N         uint64 `json:"n"`
	Saturated bool   `json:"saturated,omitempty"`
}

// Inc increments the counter, clamping at the maximum. Returns false once
// saturated so callers can surface the condition.
func (d *Depth) Inc() bool {
	if d.N == math.MaxUint64 {
		d.Saturated = true
		return false
	}
	d.N++
	return true
}

// Add increments the counter by delta with the same saturating behavior.
func (d *Depth) Add(delta uint64) bool {
	if d.N > math.MaxUint64-delta {
		d.N = math.MaxUint64
		d.Saturated = true
		return false
	}
	d.N += delta
	return true
}

// Reset returns the counter to zero and clears the saturation flag. Called
// by the anchor judgment on Amplify and Stabilize outcomes.
func (d *Depth) Reset() {
	d.N = 0
	d.Saturated = false
}

// Near reports whether the counter is within the saturation margin of the
// maximum. This is the detectable pre-overflow signal the monitor watches.
func (d Depth) Near() bool {
	return d.Saturated || d.N >= math.MaxUint64-SaturationMargin
}

// Value returns the raw counter value.
func (d Depth) Value() uint64 {
	return d.N
}
