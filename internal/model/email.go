package model

import "time"

// Mailbox folder names.
const (
	FolderInbox  = "inbox"
	FolderSent   = "sent"
	FolderTrash  = "trash"
	FolderDrafts = "drafts"
)

// Email is the canonical cached representation of one message.
type Email struct {
	// ID is the locally generated unique identifier for this record,
	// distinct from the server's message identifier.
	ID string `json:"id"`

	// MessageID is the server-assigned message identifier. Together
	// with Folder it is the de-duplication key: within one account's
	// cache no two records share the same (MessageID, Folder) pair.
	MessageID string `json:"message_id"`

	// AccountID identifies the owning account.
	AccountID string `json:"account_id"`

	// Folder is the mailbox folder this message belongs to.
	Folder string `json:"folder"`

	Subject string `json:"subject"`

	// From is the sender address (display name when the address
	// is absent).
	From string `json:"from"`

	To  []string `json:"to"`
	Cc  []string `json:"cc"`
	Bcc []string `json:"bcc"`

	// Body is the plain-text body variant.
	Body string `json:"body"`

	// HTMLBody is the rich body variant, empty when the message
	// carries no HTML part.
	HTMLBody string `json:"html_body"`

	// IsRead and IsStarred are user-set flags. A freshly fetched
	// message always starts unread and unstarred; merges never
	// overwrite these on an already cached record.
	IsRead    bool `json:"is_read"`
	IsStarred bool `json:"is_starred"`

	// ReceivedAt is the server-provided timestamp, normalized to UTC.
	ReceivedAt time.Time `json:"received_at"`
}
