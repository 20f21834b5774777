package mail

import (
	"context"

	"github.com/gofiber/fiber/v2/log"
)

// Disabled drops every message. Used when MAIL_DRIVER=disabled.
type Disabled struct{}

func (Disabled) Enabled() bool { return false }

func (Disabled) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	log.Infof("[Mail] Delivery disabled, dropping %q to %s", msg.Subject, msg.To)
	return nil
}
