package mail

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/unimail/unimail/internal/model"
)

// Normalize converts a fetched raw message into the canonical cached
// record for the given account and folder. It is total: missing fields
// become empty values, a missing Message-ID is synthesized from the
// folder and UID, and the new record always starts unread and
// unstarred. The record ID is a fresh UUID, so normalizing two batches
// concurrently cannot collide.
func Normalize(raw RawMessage, accountID, folder string) model.Email {
	messageID := raw.MessageID
	if messageID == "" {
		messageID = fmt.Sprintf("uid-%s-%d", folder, raw.UID)
	}

	return model.Email{
		ID:         uuid.NewString(),
		MessageID:  messageID,
		AccountID:  accountID,
		Folder:     folder,
		Subject:    raw.Subject,
		From:       raw.From,
		To:         raw.To,
		Cc:         raw.Cc,
		Bcc:        raw.Bcc,
		Body:       raw.TextBody,
		HTMLBody:   raw.HTMLBody,
		IsRead:     false,
		IsStarred:  false,
		ReceivedAt: raw.Date.UTC(),
	}
}

// Identifiable reports whether the raw message carries enough identity
// to form a de-duplication key: either a Message-ID header or a
// non-zero UID. Messages without either are dropped by the refresh
// rather than cached under a colliding key.
func Identifiable(raw RawMessage) bool {
	return raw.MessageID != "" || raw.UID != 0
}
