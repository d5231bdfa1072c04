package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unimail/unimail/internal/model"
)

func newEmail(id, messageID, folder string) model.Email {
	return model.Email{
		ID:         id,
		MessageID:  messageID,
		AccountID:  "acct-1",
		Folder:     folder,
		Subject:    "subject " + messageID,
		From:       "sender@example.com",
		To:         []string{"me@example.com"},
		ReceivedAt: time.Now().UTC(),
	}
}

func TestAddEmailsAppendsAndCounts(t *testing.T) {
	s := NewStore()

	inserted := s.AddEmails("acct-1", []model.Email{
		newEmail("a", "m1", "inbox"),
		newEmail("b", "m2", "inbox"),
		newEmail("c", "m3", "inbox"),
	})

	assert.Equal(t, 3, inserted)
	assert.Equal(t, 3, s.Count("acct-1"))
}

func TestAddEmailsIsIdempotent(t *testing.T) {
	s := NewStore()
	batch := []model.Email{
		newEmail("a", "m1", "inbox"),
		newEmail("b", "m2", "inbox"),
	}

	first := s.AddEmails("acct-1", batch)
	second := s.AddEmails("acct-1", batch)

	assert.Equal(t, 2, first)
	assert.Equal(t, 0, second)

	emails := s.GetAllEmails("acct-1")
	require.Len(t, emails, 2)
	assert.Equal(t, "m1", emails[0].MessageID)
	assert.Equal(t, "m2", emails[1].MessageID)
}

func TestAddEmailsSameMessageIDDifferentFolder(t *testing.T) {
	s := NewStore()

	inserted := s.AddEmails("acct-1", []model.Email{
		newEmail("a", "m1", "inbox"),
		newEmail("b", "m1", "sent"),
	})

	// The dedup key is (message id, folder), so the same message id
	// in two folders yields two records.
	assert.Equal(t, 2, inserted)
}

func TestAddEmailsPreservesUserFlags(t *testing.T) {
	s := NewStore()

	starred := newEmail("a", "m1", "inbox")
	s.AddEmails("acct-1", []model.Email{starred})

	yes := true
	require.NoError(t, s.UpdateFlags("acct-1", "a", FlagUpdate{IsStarred: &yes, IsRead: &yes}))

	// Re-fetch delivers the same server message with default flags.
	refetched := newEmail("z", "m1", "inbox")
	inserted := s.AddEmails("acct-1", []model.Email{refetched})
	assert.Equal(t, 0, inserted)

	emails := s.GetAllEmails("acct-1")
	require.Len(t, emails, 1)
	assert.Equal(t, "a", emails[0].ID)
	assert.True(t, emails[0].IsStarred)
	assert.True(t, emails[0].IsRead)
}

func TestGetAllEmailsPreservesMergeOrder(t *testing.T) {
	s := NewStore()

	s.AddEmails("acct-1", []model.Email{
		newEmail("a", "m1", "inbox"),
		newEmail("b", "m2", "inbox"),
	})
	s.AddEmails("acct-1", []model.Email{
		newEmail("c", "m3", "inbox"),
		newEmail("d", "m4", "inbox"),
	})

	emails := s.GetAllEmails("acct-1")
	require.Len(t, emails, 4)

	var order []string
	for _, e := range emails {
		order = append(order, e.MessageID)
	}
	assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, order)
}

func TestGetAllEmailsUnknownAccount(t *testing.T) {
	s := NewStore()

	emails := s.GetAllEmails("nope")

	assert.NotNil(t, emails)
	assert.Empty(t, emails)
}

func TestGetAllEmailsReturnsSnapshot(t *testing.T) {
	s := NewStore()
	s.AddEmails("acct-1", []model.Email{newEmail("a", "m1", "inbox")})

	snapshot := s.GetAllEmails("acct-1")
	require.Len(t, snapshot, 1)
	snapshot[0].Subject = "mutated"
	snapshot[0].To[0] = "mutated@example.com"

	fresh := s.GetAllEmails("acct-1")
	assert.Equal(t, "subject m1", fresh[0].Subject)
	assert.Equal(t, "me@example.com", fresh[0].To[0])
}

func TestAddEmailsDoesNotRetainCallerSlices(t *testing.T) {
	s := NewStore()

	e := newEmail("a", "m1", "inbox")
	s.AddEmails("acct-1", []model.Email{e})
	e.To[0] = "mutated@example.com"

	emails := s.GetAllEmails("acct-1")
	assert.Equal(t, "me@example.com", emails[0].To[0])
}

func TestUpdateFlags(t *testing.T) {
	s := NewStore()
	s.AddEmails("acct-1", []model.Email{newEmail("a", "m1", "inbox")})

	yes := true
	require.NoError(t, s.UpdateFlags("acct-1", "a", FlagUpdate{IsRead: &yes}))

	emails := s.GetAllEmails("acct-1")
	assert.True(t, emails[0].IsRead)
	assert.False(t, emails[0].IsStarred, "unset flag must stay unchanged")

	no := false
	require.NoError(t, s.UpdateFlags("acct-1", "a", FlagUpdate{IsRead: &no}))
	assert.False(t, s.GetAllEmails("acct-1")[0].IsRead)
}

func TestUpdateFlagsNotFound(t *testing.T) {
	s := NewStore()
	s.AddEmails("acct-1", []model.Email{newEmail("a", "m1", "inbox")})

	yes := true
	err := s.UpdateFlags("acct-1", "missing", FlagUpdate{IsRead: &yes})
	assert.ErrorIs(t, err, ErrEmailNotFound)

	err = s.UpdateFlags("other-acct", "a", FlagUpdate{IsRead: &yes})
	assert.ErrorIs(t, err, ErrEmailNotFound)
}

func TestPurge(t *testing.T) {
	s := NewStore()
	s.AddEmails("acct-1", []model.Email{newEmail("a", "m1", "inbox")})

	s.Purge("acct-1")

	assert.Equal(t, 0, s.Count("acct-1"))
	assert.Empty(t, s.GetAllEmails("acct-1"))
}

func TestConcurrentMergesSameAccount(t *testing.T) {
	s := NewStore()

	const (
		goroutines = 8
		perBatch   = 50
	)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			batch := make([]model.Email, 0, perBatch)
			for i := 0; i < perBatch; i++ {
				msgID := fmt.Sprintf("g%d-m%d", g, i)
				batch = append(batch, newEmail(msgID, msgID, "inbox"))
			}
			s.AddEmails("acct-1", batch)
		}(g)
	}
	wg.Wait()

	// Disjoint batches must all land, with nothing lost or doubled.
	assert.Equal(t, goroutines*perBatch, s.Count("acct-1"))
}

func TestConcurrentDuplicateMerges(t *testing.T) {
	s := NewStore()

	batch := make([]model.Email, 0, 20)
	for i := 0; i < 20; i++ {
		msgID := fmt.Sprintf("m%d", i)
		batch = append(batch, newEmail(msgID, msgID, "inbox"))
	}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddEmails("acct-1", batch)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, s.Count("acct-1"))
}

func TestConcurrentMergesAndFlagUpdates(t *testing.T) {
	s := NewStore()
	s.AddEmails("acct-1", []model.Email{newEmail("a", "m0", "inbox")})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 1; i <= 100; i++ {
			msgID := fmt.Sprintf("m%d", i)
			s.AddEmails("acct-1", []model.Email{newEmail(msgID, msgID, "inbox")})
		}
	}()
	go func() {
		defer wg.Done()
		yes, no := true, false
		for i := 0; i < 100; i++ {
			_ = s.UpdateFlags("acct-1", "a", FlagUpdate{IsStarred: &yes})
			_ = s.UpdateFlags("acct-1", "a", FlagUpdate{IsStarred: &no})
		}
	}()
	wg.Wait()

	assert.Equal(t, 101, s.Count("acct-1"))
}

func TestDifferentAccountsAreIndependent(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for a := 0; a < 4; a++ {
		wg.Add(1)
		go func(a int) {
			defer wg.Done()
			accountID := fmt.Sprintf("acct-%d", a)
			for i := 0; i < 25; i++ {
				msgID := fmt.Sprintf("m%d", i)
				s.AddEmails(accountID, []model.Email{newEmail(msgID, msgID, "inbox")})
			}
		}(a)
	}
	wg.Wait()

	for a := 0; a < 4; a++ {
		assert.Equal(t, 25, s.Count(fmt.Sprintf("acct-%d", a)))
	}
}
