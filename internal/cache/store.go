// Package cache holds the process-lifetime email cache that fronts the
// slower remote mail servers. It is keyed by account; all mutation goes
// through the merge and flag-update operations, and reads return
// snapshots so callers can never reach into cache internals.
package cache

import (
	"errors"
	"sync"

	"github.com/unimail/unimail/internal/model"
)

// ErrEmailNotFound is returned by UpdateFlags when no cached record
// matches the given ID.
var ErrEmailNotFound = errors.New("email not found")

// FlagUpdate describes a partial update of a record's user flags.
// Nil fields are left unchanged.
type FlagUpdate struct {
	IsRead    *bool
	IsStarred *bool
}

// emailKey is the de-duplication key for cached records.
type emailKey struct {
	messageID string
	folder    string
}

// accountCache holds one account's ordered collection. Its mutex
// serializes all operations for that account without blocking other
// accounts.
type accountCache struct {
	mu     sync.Mutex
	emails []model.Email
	index  map[emailKey]struct{}
}

// Store is the per-account email cache. Operations on different
// accounts proceed in parallel; operations on the same account are
// serialized by that account's lock.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*accountCache
}

// NewStore creates an empty cache store.
func NewStore() *Store {
	return &Store{accounts: make(map[string]*accountCache)}
}

// account returns the cache entry for accountID, creating it on first
// use.
func (s *Store) account(accountID string) *accountCache {
	s.mu.RLock()
	ac := s.accounts[accountID]
	s.mu.RUnlock()
	if ac != nil {
		return ac
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ac = s.accounts[accountID]; ac == nil {
		ac = &accountCache{index: make(map[emailKey]struct{})}
		s.accounts[accountID] = ac
	}
	return ac
}

// AddEmails merges a batch of records into the account's collection and
// returns the number actually inserted. Records whose (MessageID,
// Folder) pair is already cached are discarded, keeping the existing
// record and its user-set flags untouched. Accepted records are
// appended in batch order after all existing records. The whole batch
// is applied under the account's lock, so a concurrent merge for the
// same account can never interleave.
func (s *Store) AddEmails(accountID string, emails []model.Email) int {
	if len(emails) == 0 {
		return 0
	}

	ac := s.account(accountID)
	ac.mu.Lock()
	defer ac.mu.Unlock()

	inserted := 0
	for _, e := range emails {
		key := emailKey{messageID: e.MessageID, folder: e.Folder}
		if _, exists := ac.index[key]; exists {
			continue
		}
		ac.index[key] = struct{}{}
		ac.emails = append(ac.emails, cloneEmail(e))
		inserted++
	}

	return inserted
}

// GetAllEmails returns a snapshot of the account's collection in stored
// order (oldest merge first). Unknown accounts yield an empty slice.
func (s *Store) GetAllEmails(accountID string) []model.Email {
	s.mu.RLock()
	ac := s.accounts[accountID]
	s.mu.RUnlock()
	if ac == nil {
		return []model.Email{}
	}

	ac.mu.Lock()
	defer ac.mu.Unlock()

	snapshot := make([]model.Email, 0, len(ac.emails))
	for _, e := range ac.emails {
		snapshot = append(snapshot, cloneEmail(e))
	}
	return snapshot
}

// Count returns the number of cached records for the account.
func (s *Store) Count(accountID string) int {
	s.mu.RLock()
	ac := s.accounts[accountID]
	s.mu.RUnlock()
	if ac == nil {
		return 0
	}

	ac.mu.Lock()
	defer ac.mu.Unlock()
	return len(ac.emails)
}

// UpdateFlags applies a partial flag update to the record with the
// given local ID. It takes the same per-account lock as AddEmails, so
// flag updates and merges for one account cannot race.
func (s *Store) UpdateFlags(accountID, emailID string, update FlagUpdate) error {
	s.mu.RLock()
	ac := s.accounts[accountID]
	s.mu.RUnlock()
	if ac == nil {
		return ErrEmailNotFound
	}

	ac.mu.Lock()
	defer ac.mu.Unlock()

	for i := range ac.emails {
		if ac.emails[i].ID != emailID {
			continue
		}
		if update.IsRead != nil {
			ac.emails[i].IsRead = *update.IsRead
		}
		if update.IsStarred != nil {
			ac.emails[i].IsStarred = *update.IsStarred
		}
		return nil
	}

	return ErrEmailNotFound
}

// Purge drops the account's cached collection entirely. This is an
// administrative operation; the refresh path never removes records.
func (s *Store) Purge(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, accountID)
}

// cloneEmail copies a record including its address slices, so neither
// side of a merge or read can mutate the other's data.
func cloneEmail(e model.Email) model.Email {
	clone := e
	clone.To = append([]string(nil), e.To...)
	clone.Cc = append([]string(nil), e.Cc...)
	clone.Bcc = append([]string(nil), e.Bcc...)
	return clone
}
