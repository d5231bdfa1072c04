package mail

import "time"

// RawMessage holds one message as fetched from the remote server,
// before normalization. It is discarded once the refresh has merged
// the normalized batch into the cache.
type RawMessage struct {
	// MessageID is the server's Message-ID header value. May be empty
	// on malformed messages; the normalizer synthesizes a stable
	// substitute from the UID in that case.
	MessageID string

	// UID is the IMAP UID of the message within its folder.
	UID uint32

	Subject string
	From    string
	To      []string
	Cc      []string
	Bcc     []string

	// TextBody and HTMLBody are the decoded body variants. Either
	// may be empty.
	TextBody string
	HTMLBody string

	// Date is the server-provided received timestamp.
	Date time.Time
}
