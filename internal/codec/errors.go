package codec

import "errors"

var (
	// ErrNestingExceeded is returned when a command tries to suspend a
	// second already-suspended command: SPEC_FULL.md §4.6 allows at most
	// one level of nesting.
	ErrNestingExceeded = errors.New("codec: command nesting exceeded")
	ErrShortBuffer     = errors.New("codec: short buffer")
	ErrBadMarker       = errors.New("codec: unrecognized command marker")
)
