// Package sync implements the refresh workflow: validate the account,
// test connectivity, fetch from the remote server, normalize, and merge
// into the local cache.
package sync

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/unimail/unimail/internal/account"
	"github.com/unimail/unimail/internal/cache"
	"github.com/unimail/unimail/internal/mail"
	"github.com/unimail/unimail/internal/model"
)

// SourceServer tags refresh results whose data came from the remote
// server, as opposed to a cache-only view.
const SourceServer = "server"

// Result summarizes one completed refresh.
type Result struct {
	// NewEmails is the number of fetched records actually inserted
	// into the cache; duplicates of already cached records do not
	// count.
	NewEmails int `json:"new_emails_count"`

	// TotalEmails is the account's cache size after the merge.
	TotalEmails int `json:"total_emails"`

	// Emails is the account's full collection after the merge.
	Emails []model.Email `json:"emails"`

	// Source identifies where the data came from.
	Source string `json:"source"`

	// Message is set on the empty-mailbox path, where the refresh
	// succeeds without touching the cache.
	Message string `json:"message,omitempty"`
}

// Service orchestrates refreshes for all accounts. It owns no state of
// its own; the cache store serializes same-account merges, so refreshes
// dispatched concurrently for one account cannot lose records.
type Service struct {
	accounts account.Store
	client   mail.Client
	cache    *cache.Store
	log      *logrus.Logger
}

// NewService creates a refresh orchestrator.
func NewService(
	accounts account.Store,
	client mail.Client,
	cacheStore *cache.Store,
	log *logrus.Logger,
) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		accounts: accounts,
		client:   client,
		cache:    cacheStore,
		log:      log,
	}
}

// Refresh fetches the account's inbox from the remote server and merges
// the result into the cache. On any failure the cache is left exactly
// as it was: the merge runs only once the whole batch has been fetched
// and normalized.
func (s *Service) Refresh(ctx context.Context, accountID string) (*Result, error) {
	if accountID == "" {
		return nil, &Error{Kind: KindInvalidRequest, Message: "account id is required"}
	}

	acct, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		if account.IsNotFound(err) {
			return nil, &Error{Kind: KindAccountNotFound, Message: "account not found", Cause: err}
		}
		return nil, &Error{Kind: KindInternal, Message: "loading account", Cause: err}
	}

	log := s.log.WithFields(logrus.Fields{
		"account_id": acct.ID,
		"email":      acct.Email,
	})
	log.Info("refreshing mailbox from server")

	if !s.client.TestConnection(ctx, acct) {
		return nil, &Error{
			Kind:    KindConnection,
			Message: "cannot connect to mail server; check account settings",
		}
	}

	raws, err := s.client.FetchMessages(ctx, acct, model.FolderInbox)
	if err != nil {
		return nil, &Error{Kind: KindFetch, Message: "fetching messages", Cause: err}
	}

	if len(raws) == 0 {
		emails := s.cache.GetAllEmails(accountID)
		log.Info("mailbox is empty on server")
		return &Result{
			NewEmails:   0,
			TotalEmails: len(emails),
			Emails:      emails,
			Source:      SourceServer,
			Message:     "no messages on server",
		}, nil
	}

	batch := make([]model.Email, 0, len(raws))
	for _, raw := range raws {
		if !mail.Identifiable(raw) {
			log.WithField("subject", raw.Subject).
				Warn("dropping message without a usable identity")
			continue
		}
		batch = append(batch, mail.Normalize(raw, accountID, model.FolderInbox))
	}

	inserted := s.cache.AddEmails(accountID, batch)
	emails := s.cache.GetAllEmails(accountID)

	log.WithFields(logrus.Fields{
		"fetched":  len(raws),
		"inserted": inserted,
		"total":    len(emails),
	}).Info("refresh complete")

	return &Result{
		NewEmails:   inserted,
		TotalEmails: len(emails),
		Emails:      emails,
		Source:      SourceServer,
	}, nil
}
