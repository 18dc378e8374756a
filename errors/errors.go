// Package errors provides error handling for novem.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrNotCycle) {
//	    // caller asked for a successor of an anchor or the void bucket
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors for use across novem.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates the requested item or bucket state does not exist
	ErrNotFound = New("not found")

	// ErrNotCycle indicates a successor/predecessor lookup on an address
	// outside the six-position traversal cycle. This is caller misuse, not
	// an operating condition: anchors and the void bucket have no place in
	// the cycle order.
	ErrNotCycle = New("address is not a cycle position")

	// ErrNegativeChannel indicates an attempt to construct an item with a
	// negative channel value. Channels live in [0,9]; negative values are
	// rejected loudly rather than clamped.
	ErrNegativeChannel = New("negative channel value")

	// ErrInvalidConfig indicates a configuration value outside its legal range
	ErrInvalidConfig = New("invalid configuration")

	// ErrStoreClosed indicates an operation against a store that has shut down
	ErrStoreClosed = New("store closed")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsNotCycleError checks if an error is or wraps ErrNotCycle.
func IsNotCycleError(err error) bool {
	return err != nil && Is(err, ErrNotCycle)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}
