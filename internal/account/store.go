// Package account persists the attached mail account records. The sync
// core only reads from it; account management belongs to the
// surrounding application.
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/unimail/unimail/internal/model"
)

// NotFoundError indicates that no account exists for the requested ID.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("account %s not found", e.ID)
}

// IsNotFound reports whether err (or any error in its chain) is a
// NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// CredentialSource resolves secrets by key. Account passwords live in a
// credential store, never in the account database.
type CredentialSource interface {
	Get(key string) (string, error)
}

// Store defines the persistence interface for account records.
type Store interface {
	// GetAccount loads one account by ID, with its password resolved
	// from the credential source. Returns a *NotFoundError when the
	// ID is unknown.
	GetAccount(ctx context.Context, id string) (*model.Account, error)

	// ListAccounts returns all accounts ordered by email address,
	// without passwords.
	ListAccounts(ctx context.Context) ([]model.Account, error)

	// UpsertAccount inserts or replaces an account record. A missing
	// ID is generated.
	UpsertAccount(ctx context.Context, acct model.Account) (string, error)

	// DeleteAccount removes an account by ID.
	DeleteAccount(ctx context.Context, id string) error
}
