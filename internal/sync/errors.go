package sync

import (
	"errors"
	"fmt"
)

// Kind classifies a refresh failure so callers can map it to their own
// error surface without string matching.
type Kind int

const (
	// KindInvalidRequest means the caller supplied no account ID.
	KindInvalidRequest Kind = iota + 1

	// KindAccountNotFound means the account ID resolves to nothing.
	KindAccountNotFound

	// KindConnection means the connectivity test failed; the account
	// settings are the likely culprit.
	KindConnection

	// KindFetch means the remote session failed partway through a
	// fetch.
	KindFetch

	// KindInternal covers unexpected failures in the refresh itself.
	KindInternal
)

// Error is a refresh failure with a stable machine-checkable kind and a
// human-readable message. Every abort of the refresh state machine
// surfaces as one of these; the cache is guaranteed untouched when a
// refresh returns an Error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// IsKind reports whether err (or any error in its chain) is a refresh
// Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}
