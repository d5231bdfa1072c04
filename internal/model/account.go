package model

import (
	"net"
	"strconv"
	"time"
)

// Account holds the connection parameters for one attached mailbox.
// Accounts are owned by the account store; the sync core only borrows
// them for the duration of a single refresh.
type Account struct {
	// ID is the unique identifier for this account.
	ID string `json:"id"`

	// Email is the mailbox address shown to the user.
	Email string `json:"email"`

	// IMAPHost is the hostname of the IMAP server.
	IMAPHost string `json:"imap_host"`

	// IMAPPort is the port of the IMAP server.
	IMAPPort int `json:"imap_port"`

	// Username is the login name, usually the same as Email.
	Username string `json:"username"`

	// Password is resolved from the credential store at read time.
	// It is never persisted alongside the account record.
	Password string `json:"-"`

	// UseTLS selects implicit TLS; when false the client falls back
	// to STARTTLS on the cleartext port.
	UseTLS bool `json:"use_tls"`

	// Enabled controls whether the background poller refreshes
	// this account.
	Enabled bool `json:"enabled"`

	// PollIntervalSec is how often (in seconds) the poller refreshes
	// this account. Zero means use the global default.
	PollIntervalSec int `json:"poll_interval_sec"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IMAPAddr returns the host:port address of the account's IMAP server.
func (a *Account) IMAPAddr() string {
	return net.JoinHostPort(a.IMAPHost, strconv.Itoa(a.IMAPPort))
}
