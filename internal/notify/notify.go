// Package notify delivers order summaries to the shop operator over chat and
// order confirmations to customers over email.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotConfigured = errors.New("notification channel is not configured")

// ChatNotifier posts order summaries to the operator chat
type ChatNotifier interface {
	// Send posts text with the status action buttons and returns the
	// provider message id.
	Send(ctx context.Context, text string) (int64, error)
	// Edit replaces the text of a message sent earlier. Action buttons are
	// kept only when withActions is set.
	Edit(ctx context.Context, messageID int64, text string, withActions bool) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Email is a rendered message with a plain text body and an HTML alternative
type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer sends email and returns the Message-ID it was sent with
type Mailer interface {
	Send(ctx context.Context, email Email) (string, error)
}

// Recorder persists the outcome of a delivery onto the order
type Recorder interface {
	MarkChatNotified(ctx context.Context, id uuid.UUID, messageID int64, sentAt time.Time) error
	MarkEmailSent(ctx context.Context, id uuid.UUID, messageID string, sentAt time.Time) error
}
