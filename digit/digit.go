// Package digit implements the digital-root addressing engine: the pure
// mapping from arbitrary unsigned keys onto the ten bucket addresses, the
// anchor/neutral/cycle classification of those addresses, and the fixed
// doubling-cycle traversal tables.
//
// Everything here is stateless and safe for concurrent use.
package digit

import (
	"github.com/spindleworks/novem/errors"
)

// Address is a bucket address in [0,9], the result of digital-root reduction.
type Address uint8

// The three address classes. Anchors never appear in the traversal cycle;
// the void bucket holds items whose key reduced to zero.
const (
	Void    Address = 0
	Anchor3 Address = 3
	Anchor6 Address = 6
	Anchor9 Address = 9
)

// Anchors lists the three anchor addresses in ascending order.
var Anchors = [3]Address{Anchor3, Anchor6, Anchor9}

// CycleOrder is the fixed forward traversal order of the six cycle positions.
var CycleOrder = [6]Address{1, 2, 4, 8, 7, 5}

// forward maps each cycle position to its successor; backward is the exact
// reverse. Anchors and the void bucket deliberately have no entry.
var (
	forward  = map[Address]Address{1: 2, 2: 4, 4: 8, 8: 7, 7: 5, 5: 1}
	backward = map[Address]Address{1: 5, 5: 7, 7: 8, 8: 4, 4: 2, 2: 1}
)

// Reduce maps a non-negative integer to its digital root.
//
// Zero reduces to zero; any positive multiple of nine reduces to nine;
// everything else reduces to n mod 9. This is the closed-form equivalent of
// repeated digit-summing and costs O(1).
func Reduce(n uint64) Address {
	if n == 0 {
		return Void
	}
	r := n % 9
	if r == 0 {
		return Address(9)
	}
	return Address(r)
}

// ReduceIterative computes the digital root by repeated digit-summing.
// It exists to cross-validate Reduce in tests; production code uses Reduce.
func ReduceIterative(n uint64) Address {
	for n > 9 {
		var sum uint64
		for m := n; m > 0; m /= 10 {
			sum += m % 10
		}
		n = sum
	}
	return Address(n)
}

// IsAnchor reports whether a is one of the three anchor addresses {3,6,9}.
func (a Address) IsAnchor() bool {
	return a == Anchor3 || a == Anchor6 || a == Anchor9
}

// IsVoid reports whether a is the neutral bucket 0.
func (a Address) IsVoid() bool {
	return a == Void
}

// IsCycle reports whether a is one of the six traversal-cycle positions.
func (a Address) IsCycle() bool {
	_, ok := forward[a]
	return ok
}

// Valid reports whether a is an address the store recognizes.
func (a Address) Valid() bool {
	return a <= 9
}

// Successor returns the next cycle position in the forward order
// 1→2→4→8→7→5→1. Asking for the successor of an anchor or the void bucket is
// caller misuse and returns ErrNotCycle.
func (a Address) Successor() (Address, error) {
	next, ok := forward[a]
	if !ok {
		return 0, errors.Wrapf(errors.ErrNotCycle, "no successor for address %d", a)
	}
	return next, nil
}

// Predecessor returns the previous cycle position, i.e. the next position in
// the reverse order 1→5→7→8→4→2→1. Non-cycle addresses return ErrNotCycle.
func (a Address) Predecessor() (Address, error) {
	prev, ok := backward[a]
	if !ok {
		return 0, errors.Wrapf(errors.ErrNotCycle, "no predecessor for address %d", a)
	}
	return prev, nil
}

// AnchorExit returns the cycle position an item re-enters after a
// non-terminal judgment at anchor a: the numerically following cycle position
// when moving forward (3→4, 6→7, 9→1) and the numerically preceding one when
// moving backward (3→2, 6→5, 9→8). Non-anchor addresses return ErrNotCycle.
func (a Address) AnchorExit(fwd bool) (Address, error) {
	if !a.IsAnchor() {
		return 0, errors.Wrapf(errors.ErrNotCycle, "address %d is not an anchor", a)
	}
	if fwd {
		switch a {
		case Anchor3:
			return 4, nil
		case Anchor6:
			return 7, nil
		default:
			return 1, nil
		}
	}
	switch a {
	case Anchor3:
		return 2, nil
	case Anchor6:
		return 5, nil
	default:
		return 8, nil
	}
}
