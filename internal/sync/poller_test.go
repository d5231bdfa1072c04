package sync

import (
	"context"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unimail/unimail/internal/cache"
	"github.com/unimail/unimail/internal/mail"
	"github.com/unimail/unimail/internal/model"
)

// countingClient records how many fetches each account has seen.
type countingClient struct {
	mu      gosync.Mutex
	fetches map[string]int
}

func newCountingClient() *countingClient {
	return &countingClient{fetches: make(map[string]int)}
}

func (c *countingClient) TestConnection(context.Context, *model.Account) bool { return true }

func (c *countingClient) FetchMessages(
	_ context.Context, acct *model.Account, _ string,
) ([]mail.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetches[acct.ID]++
	return nil, nil
}

func (c *countingClient) count(accountID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches[accountID]
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestPollerInitialRefreshAndTrigger(t *testing.T) {
	client := newCountingClient()
	acct := testAccount()
	acct.PollIntervalSec = 3600 // keep the ticker out of the way
	svc, _ := newTestService(client, acct)

	p := NewPoller(svc, time.Hour, nil)
	p.Start([]model.Account{acct})
	defer p.Stop()

	waitFor(t, 2*time.Second, func() bool { return client.count("acct-1") == 1 })

	p.Trigger("acct-1")
	waitFor(t, 2*time.Second, func() bool { return client.count("acct-1") == 2 })
}

func TestPollerSkipsDisabledAccounts(t *testing.T) {
	client := newCountingClient()
	enabled := testAccount()
	enabled.PollIntervalSec = 3600

	disabled := testAccount()
	disabled.ID = "acct-2"
	disabled.Enabled = false

	svc, _ := newTestService(client, enabled, disabled)

	p := NewPoller(svc, time.Hour, nil)
	p.Start([]model.Account{enabled, disabled})
	defer p.Stop()

	waitFor(t, 2*time.Second, func() bool { return client.count("acct-1") == 1 })
	assert.Equal(t, 0, client.count("acct-2"))

	statuses := p.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, "acct-1", statuses[0].AccountID)
}

func TestPollerStatusAfterFailure(t *testing.T) {
	acct := testAccount()
	acct.PollIntervalSec = 3600
	client := &mockMailClient{reachable: false}
	svc, _ := newTestService(client, acct)

	p := NewPoller(svc, time.Hour, nil)
	p.Start([]model.Account{acct})
	defer p.Stop()

	waitFor(t, 2*time.Second, func() bool {
		statuses := p.Statuses()
		return len(statuses) == 1 && statuses[0].State == StateError
	})

	statuses := p.Statuses()
	require.Len(t, statuses, 1)
	assert.Error(t, statuses[0].Err)
	assert.True(t, IsKind(statuses[0].Err, KindConnection))
}

func TestPollerRefreshAll(t *testing.T) {
	client := newCountingClient()
	first := testAccount()
	second := testAccount()
	second.ID = "acct-2"

	store := newMockAccountStore(first, second)
	svc := NewService(store, client, cache.NewStore(), nil)
	p := NewPoller(svc, time.Hour, nil)

	err := p.RefreshAll(context.Background(), store)
	require.NoError(t, err)

	assert.Equal(t, 1, client.count("acct-1"))
	assert.Equal(t, 1, client.count("acct-2"))
}
