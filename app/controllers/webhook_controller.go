package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/cryptogate/cryptogate/app/models"
	"github.com/cryptogate/cryptogate/app/repository"
	"github.com/cryptogate/cryptogate/internal/pkg/alerts"
	"github.com/cryptogate/cryptogate/internal/pkg/billing"
	"github.com/cryptogate/cryptogate/internal/pkg/metrics"
	"github.com/cryptogate/cryptogate/internal/pkg/usage"
)

// WebhookController applies payment status webhooks to client usage.
type WebhookController struct {
	billing *billing.Service
	tracker *usage.Tracker
	clients repository.ClientRepository
	alerts  *alerts.Engine
	secret  string
}

// NewWebhookController creates a webhook controller.
func NewWebhookController(svc *billing.Service, tracker *usage.Tracker, clients repository.ClientRepository, engine *alerts.Engine, secret string) *WebhookController {
	return &WebhookController{billing: svc, tracker: tracker, clients: clients, alerts: engine, secret: secret}
}

func webhookOutcome(outcome string) {
	metrics.WebhookEvents.WithLabelValues(outcome).Inc()
}

// HandlePaymentWebhook verifies, stores and applies a payment status event.
// Unsigned events are rejected before anything is stored so they cannot claim an event id.
func (wc *WebhookController) HandlePaymentWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get(billing.SignatureHeader)

	if !billing.VerifyWebhookSignature(rawBody, signature, wc.secret) {
		webhookOutcome("invalid_signature")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	event, err := billing.ParsePaymentWebhook(rawBody)
	if err != nil {
		webhookOutcome("invalid_payload")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "message": err.Error()})
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	created, stored, err := wc.billing.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        models.PaymentProviderGateway,
		ProviderEventID: event.EventID,
		EventType:       event.Type,
		ClientID:        event.ClientID,
		PayloadJSON:     string(rawBody),
		SignatureValid:  true,
	})
	if err != nil {
		webhookOutcome("error")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created {
		webhookOutcome("duplicate")
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}

	if !event.Completed() {
		_ = wc.billing.MarkWebhookProcessed(ctx, stored.ID, nil)
		webhookOutcome("ignored")
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	if err := wc.tracker.RecordUsage(ctx, event.ClientID, event.Amount, 1); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = wc.billing.MarkWebhookProcessed(ctx, stored.ID, err)
			webhookOutcome("unknown_client")
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
		}
		// The provider retries on 5xx; the retry must find no stored event.
		if derr := wc.billing.DiscardWebhookEvent(ctx, stored.ID); derr != nil {
			log.Errorf("[Webhook] Event %s could not be released after usage update failure: %v", event.EventID, derr)
			_ = wc.billing.MarkWebhookProcessed(ctx, stored.ID, err)
		}
		webhookOutcome("error")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "usage_update_failed"})
	}

	alerted := false
	if client, err := wc.clients.GetByID(event.ClientID); err != nil {
		log.Warnf("[Webhook] Reload of client %d for alert check failed: %v", event.ClientID, err)
	} else if alerted, err = wc.alerts.CheckClientUsage(ctx, client); err != nil {
		log.Warnf("[Webhook] Usage alert check for client %d failed: %v", event.ClientID, err)
	}

	_ = wc.billing.MarkWebhookProcessed(ctx, stored.ID, nil)
	webhookOutcome("applied")
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "alerted": alerted})
}
