package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	gomail "github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"

	"github.com/unimail/unimail/internal/model"
)

// defaultTimeout bounds a whole IMAP session (dial, login, fetch) when
// no timeout is configured.
const defaultTimeout = 30 * time.Second

// IMAPClient implements Client using go-imap v2. It is stateless: every
// call dials a fresh session from the account's connection parameters
// and tears it down before returning.
type IMAPClient struct {
	timeout time.Duration
	log     *logrus.Logger
}

// NewIMAPClient creates an IMAP-backed mail client. The timeout caps
// each session end to end; zero selects the default.
func NewIMAPClient(timeout time.Duration, log *logrus.Logger) *IMAPClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &IMAPClient{timeout: timeout, log: log}
}

// dial establishes a connection to the account's IMAP server,
// negotiating implicit TLS or STARTTLS according to the account
// settings. The whole session is bounded by a connection deadline so a
// hung server cannot stall the caller past the configured timeout.
func (c *IMAPClient) dial(account *model.Account) (*imapclient.Client, error) {
	addr := account.IMAPAddr()
	dialer := &net.Dialer{Timeout: c.timeout}

	if account.UseTLS {
		conn, err := tls.DialWithDialer(dialer, "tcp", addr, nil)
		if err != nil {
			return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
		}
		_ = conn.SetDeadline(time.Now().Add(c.timeout))
		return imapclient.New(conn, nil), nil
	}

	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	client, err := imapclient.NewStartTLS(conn, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("negotiating STARTTLS with %s: %w", addr, err)
	}
	return client, nil
}

// TestConnection dials the account's server, authenticates, and logs
// out again. Any failure along the way yields false.
func (c *IMAPClient) TestConnection(_ context.Context, account *model.Account) bool {
	client, err := c.dial(account)
	if err != nil {
		c.log.WithField("account_id", account.ID).WithError(err).
			Debug("connection test failed to dial")
		return false
	}
	defer func() { _ = client.Logout().Wait() }()

	if err := client.Login(account.Username, account.Password).Wait(); err != nil {
		c.log.WithField("account_id", account.ID).WithError(err).
			Debug("connection test failed to authenticate")
		return false
	}

	return true
}

// FetchMessages retrieves every message currently present in the named
// folder. Messages whose data cannot be collected are skipped so one
// corrupt message does not fail the whole batch.
func (c *IMAPClient) FetchMessages(
	_ context.Context, account *model.Account, folder string,
) ([]RawMessage, error) {
	client, err := c.dial(account)
	if err != nil {
		return nil, &FetchError{Op: "dial", Message: "connecting to " + account.IMAPAddr(), Err: err}
	}
	defer func() { _ = client.Logout().Wait() }()

	if err := client.Login(account.Username, account.Password).Wait(); err != nil {
		return nil, &FetchError{
			Op:      "login",
			Message: fmt.Sprintf("authentication failed for %s", account.Username),
			Err:     err,
		}
	}

	if _, err := client.Select(mailboxName(folder), nil).Wait(); err != nil {
		return nil, &FetchError{
			Op:      "select",
			Message: fmt.Sprintf("folder %q not available", folder),
			Err:     err,
		}
	}

	searchData, err := client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, &FetchError{Op: "search", Message: "listing messages", Err: err}
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	uidSet := imap.UIDSetNum(uids...)

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:     true,
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	var messages []RawMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			c.log.WithField("account_id", account.ID).WithError(err).
				Warn("skipping unreadable message")
			continue
		}

		messages = append(messages, rawFromBuffer(buf, bodySection))
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, &FetchError{Op: "fetch", Message: "downloading messages", Err: err}
	}

	return messages, nil
}

// mailboxName maps a canonical folder name to the server-side mailbox.
func mailboxName(folder string) string {
	if strings.EqualFold(folder, model.FolderInbox) {
		return "INBOX"
	}
	return folder
}

// rawFromBuffer extracts a RawMessage from a fetched message buffer.
func rawFromBuffer(
	buf *imapclient.FetchMessageBuffer, bodySection *imap.FetchItemBodySection,
) RawMessage {
	raw := RawMessage{
		UID:  uint32(buf.UID),
		Date: buf.InternalDate,
	}

	if env := buf.Envelope; env != nil {
		raw.MessageID = env.MessageID
		raw.Subject = env.Subject
		if !env.Date.IsZero() {
			raw.Date = env.Date
		}
		if len(env.From) > 0 {
			raw.From = formatAddress(env.From[0])
		}
		for _, to := range env.To {
			raw.To = append(raw.To, to.Addr())
		}
		for _, cc := range env.Cc {
			raw.Cc = append(raw.Cc, cc.Addr())
		}
		for _, bcc := range env.Bcc {
			raw.Bcc = append(raw.Bcc, bcc.Addr())
		}
	}

	if body := buf.FindBodySection(bodySection); body != nil {
		raw.TextBody, raw.HTMLBody = parseMIMEBody(body)
	}

	return raw
}

// formatAddress renders an IMAP address as "Name <mailbox@host>",
// degrading to whichever part is present.
func formatAddress(a imap.Address) string {
	addr := a.Addr()
	switch {
	case a.Name != "" && addr != "":
		return fmt.Sprintf("%s <%s>", a.Name, addr)
	case addr != "":
		return addr
	default:
		return a.Name
	}
}

// parseMIMEBody parses a raw RFC 2822 message using go-message and
// extracts the text/plain and text/html body variants.
func parseMIMEBody(raw []byte) (textBody, htmlBody string) {
	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// If parsing fails, treat the whole payload as plain text.
		return string(raw), ""
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		header, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := header.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html"):
			htmlBody = string(body)
		}
	}

	return textBody, htmlBody
}
