package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cryptogate/cryptogate/internal/pkg/config"
)

var (
	ErrInvalidMessage = errors.New("invalid email message")
	ErrSendFailed     = errors.New("failed to send email")
)

// Message is a single HTML email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	Tag      string
}

// Validate checks that the message can be delivered.
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	}
	return nil
}

// Sender delivers email. A sender that is disabled by configuration returns
// nil from Send without delivering anything.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Enabled() bool
}

// NewSender returns the sender selected by cfg.Driver.
func NewSender(cfg config.MailConfig) (Sender, error) {
	switch cfg.Driver {
	case config.MailDriverSMTP:
		return NewSMTPSender(cfg), nil
	case config.MailDriverPostmark:
		return NewPostmarkSender(cfg)
	case config.MailDriverDisabled, "":
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Driver)
	}
}
