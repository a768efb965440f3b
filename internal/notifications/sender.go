package notifications

import (
	"context"

	"github.com/9ssi7/exponent"
)

// PushSender delivers a batch of Expo messages. ExpoAdapter is the production
// implementation.
type PushSender interface {
	Publish(ctx context.Context, msgs []*exponent.Message) ([]*exponent.MessageResponse, error)
}

// MailSender delivers one templated email.
type MailSender interface {
	Send(ctx context.Context, templateFile string, to []string, data any) error
}
