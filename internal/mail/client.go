package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/unimail/unimail/internal/model"
)

// FetchError indicates that a remote fetch failed partway: authentication
// was rejected, the folder does not exist, the network dropped, or the
// server response could not be parsed.
type FetchError struct {
	// Op names the step that failed (e.g. "dial", "login", "select").
	Op string

	// Message is the human-readable cause.
	Message string

	// Err is the underlying error, when one exists.
	Err error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.Op, e.Message)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError reports whether err (or any error in its chain) is a
// FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// Client retrieves messages from a remote mail server on behalf of one
// account. Implementations must bound every network operation with a
// timeout so an unreachable host cannot stall the caller indefinitely.
type Client interface {
	// TestConnection attempts to establish and immediately tear down a
	// session using the account's credentials. It returns true only if
	// a session was fully established, and false (never an error) on
	// any connectivity, authentication, or negotiation failure.
	TestConnection(ctx context.Context, account *model.Account) bool

	// FetchMessages opens a session, selects the named folder,
	// retrieves all messages currently present, and closes the
	// session. The result is fully materialized. Individual messages
	// that cannot be read are skipped rather than failing the batch;
	// session-level failures return a *FetchError.
	FetchMessages(ctx context.Context, account *model.Account, folder string) ([]RawMessage, error)
}
