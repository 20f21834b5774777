package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/gofiber/fiber/v2/log"

	"github.com/cryptogate/cryptogate/internal/pkg/config"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends emails via SMTP
type SMTPSender struct {
	addr string
	from string
	auth smtp.Auth
	send sendFunc
}

// NewSMTPSender creates an SMTP sender from cfg.
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	sender := cfg.From
	if sender == "" {
		sender = "no-reply@localhost"
		log.Warnf("[Mail] MAIL_FROM not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if cfg.SMTPUsername != "" && cfg.SMTPPassword != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	}

	return &SMTPSender{
		addr: fmt.Sprintf("%s:%s", cfg.SMTPHost, cfg.SMTPPort),
		from: sender,
		auth: auth,
		send: smtp.SendMail,
	}
}

func (s *SMTPSender) Enabled() bool { return true }

// Send delivers msg as a single-part HTML email.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", s.from, msg.To, msg.Subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			msg.HTMLBody,
	)

	if err := s.send(s.addr, s.auth, s.from, []string{msg.To}, body); err != nil {
		log.Errorf("[Mail] SMTP send error: %v", err)
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	log.Infof("[Mail] Email sent to %s via %s", msg.To, s.addr)
	return nil
}
