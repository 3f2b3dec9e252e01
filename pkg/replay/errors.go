package replay

import "errors"

// Error kinds named in SPEC_FULL.md §4.3/§7. The engine never halts on
// these; it records a Divergence and, where the caller needs to know
// immediately (e.g. to decide whether to keep driving the agent), returns
// one of these alongside the divergence.
var (
	ErrCursorExhausted = errors.New("replay: cursor exhausted, no recorded step remains")
	ErrToolMismatch    = errors.New("replay: tool invoked during replay does not match recorded order")
	ErrStateMismatch   = errors.New("replay: final snapshot field differs from recording")
)
