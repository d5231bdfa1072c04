package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/unimail/unimail/internal/account"
	"github.com/unimail/unimail/internal/model"
)

// State represents the current state of an account's background sync.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateError
)

// Status holds the sync state for a single account.
type Status struct {
	AccountID string
	State     State
	LastSync  time.Time
	Err       error
}

// refreshTimeout is the maximum time allowed for one refresh, on top of
// the mail client's own session timeout.
const refreshTimeout = 60 * time.Second

// Poller refreshes every enabled account in the background, one
// goroutine per account, each on its own interval. Refreshes for
// different accounts run fully in parallel; the cache store serializes
// whatever lands on the same account.
type Poller struct {
	svc             *Service
	defaultInterval time.Duration
	log             *logrus.Logger

	stopCh chan struct{}

	mu       gosync.Mutex
	triggers map[string]chan struct{}
	statuses map[string]*Status
	running  bool
}

// NewPoller creates a poller that refreshes accounts through svc.
// defaultInterval applies to accounts without their own poll interval.
func NewPoller(svc *Service, defaultInterval time.Duration, log *logrus.Logger) *Poller {
	if defaultInterval <= 0 {
		defaultInterval = 2 * time.Minute
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Poller{
		svc:             svc,
		defaultInterval: defaultInterval,
		log:             log,
		stopCh:          make(chan struct{}),
		triggers:        make(map[string]chan struct{}),
		statuses:        make(map[string]*Status),
	}
}

// Start launches a polling goroutine for each enabled account. Calling
// Start twice is a no-op.
func (p *Poller) Start(accounts []model.Account) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	for _, acct := range accounts {
		if !acct.Enabled {
			continue
		}
		p.statuses[acct.ID] = &Status{AccountID: acct.ID, State: StateIdle}
		p.triggers[acct.ID] = make(chan struct{}, 1)
	}
	p.mu.Unlock()

	for _, acct := range accounts {
		if !acct.Enabled {
			continue
		}
		go p.pollAccount(acct)
	}
}

// Stop halts all polling goroutines.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	close(p.stopCh)
	p.running = false
}

// Trigger requests an immediate refresh of one polled account. It
// never blocks; if a trigger is already pending the request is dropped,
// since a refresh is imminent anyway.
func (p *Poller) Trigger(accountID string) {
	p.mu.Lock()
	ch := p.triggers[accountID]
	p.mu.Unlock()
	if ch == nil {
		return
	}

	select {
	case ch <- struct{}{}:
	default:
	}
}

// RefreshAll refreshes every enabled account in the store concurrently
// and returns the first error encountered, if any.
func (p *Poller) RefreshAll(ctx context.Context, store account.Store) error {
	accounts, err := store.ListAccounts(ctx)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, acct := range accounts {
		if !acct.Enabled {
			continue
		}
		accountID := acct.ID
		g.Go(func() error {
			_, err := p.svc.Refresh(ctx, accountID)
			return err
		})
	}
	return g.Wait()
}

// Statuses returns the current sync status of all polled accounts.
func (p *Poller) Statuses() []Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]Status, 0, len(p.statuses))
	for _, s := range p.statuses {
		statuses = append(statuses, *s)
	}
	return statuses
}

// pollAccount runs the polling loop for a single account.
func (p *Poller) pollAccount(acct model.Account) {
	interval := time.Duration(acct.PollIntervalSec) * time.Second
	if interval <= 0 {
		interval = p.defaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.mu.Lock()
	trigger := p.triggers[acct.ID]
	p.mu.Unlock()

	// Do an initial refresh immediately.
	p.refresh(acct.ID)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.refresh(acct.ID)
		case <-trigger:
			p.refresh(acct.ID)
		}
	}
}

// refresh performs a single bounded refresh and records its outcome.
func (p *Poller) refresh(accountID string) {
	p.setStatus(accountID, StateRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	result, err := p.svc.Refresh(ctx, accountID)
	if err != nil {
		p.log.WithField("account_id", accountID).WithError(err).
			Warn("background refresh failed")
		p.setStatus(accountID, StateError, err)
		return
	}

	p.log.WithFields(logrus.Fields{
		"account_id": accountID,
		"new":        result.NewEmails,
		"total":      result.TotalEmails,
	}).Debug("background refresh complete")
	p.setStatus(accountID, StateIdle, nil)
}

// setStatus updates the status map entry for an account.
func (p *Poller) setStatus(accountID string, state State, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.statuses[accountID]
	if !ok {
		st = &Status{AccountID: accountID}
		p.statuses[accountID] = st
	}
	st.State = state
	st.Err = err
	if state == StateIdle && err == nil {
		st.LastSync = time.Now()
	}
}
