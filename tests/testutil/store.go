package testutil

import (
	"fmt"
	"testing"

	"github.com/unimail/unimail/internal/account"
)

// Credentials is a map-backed credential source for tests.
type Credentials map[string]string

// Get implements account.CredentialSource.
func (c Credentials) Get(key string) (string, error) {
	v, ok := c[key]
	if !ok {
		return "", fmt.Errorf("credential %q not found", key)
	}
	return v, nil
}

// NewTestStore creates an in-memory account store with all migrations
// applied. It automatically closes the store when the test completes.
func NewTestStore(t *testing.T, creds account.CredentialSource) *account.SQLiteStore {
	t.Helper()

	s, err := account.NewSQLiteStore(":memory:", creds)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}
