package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/mrz1836/postmark"

	"github.com/cryptogate/cryptogate/internal/pkg/config"
)

type postmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// PostmarkSender sends emails through the Postmark transactional API.
type PostmarkSender struct {
	client postmarkAPI
	from   string
	stream string
}

// NewPostmarkSender creates a Postmark sender. The server token is required.
func NewPostmarkSender(cfg config.MailConfig) (*PostmarkSender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, errors.New("postmark server token is required")
	}
	if cfg.From == "" {
		return nil, errors.New("sender address is required")
	}
	return &PostmarkSender{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		from:   cfg.From,
		stream: cfg.PostmarkMessageStream,
	}, nil
}

func (s *PostmarkSender) Enabled() bool { return true }

// Send delivers msg through Postmark.
func (s *PostmarkSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:          s.from,
		To:            msg.To,
		Subject:       msg.Subject,
		Tag:           msg.Tag,
		HTMLBody:      msg.HTMLBody,
		MessageStream: s.stream,
	})
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrSendFailed, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	log.Infof("[Mail] Email sent to %s via postmark (%s)", msg.To, resp.MessageID)
	return nil
}
