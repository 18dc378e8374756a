package logger

// Canonical structured-field keys. Using shared constants keeps the event
// stream queryable: every package logs the same concept under the same key.
const (
	// FieldItem is the item identity (uuid string)
	FieldItem = "item"

	// FieldAddress is a bucket address 0-9
	FieldAddress = "address"

	// FieldAnchor is an anchor address (3, 6 or 9)
	FieldAnchor = "anchor"

	// FieldDecision is a judgment outcome (reverse/amplify/stabilize/absorb)
	FieldDecision = "decision"

	// FieldSignal is a signal-strength value in [0,1]
	FieldSignal = "signal"

	// FieldDivergence is a window-divergence value in roughly [0,1]
	FieldDivergence = "divergence"

	// FieldDepth is an item lifecycle counter value
	FieldDepth = "depth"

	// FieldError carries error text on warn/error entries
	FieldError = "error"
)
