package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentEvent is a parsed payment status webhook.
type PaymentEvent struct {
	EventID    string
	Type       string
	ClientID   uint
	PaymentID  string
	Status     string
	Amount     decimal.Decimal
	Currency   string
	OccurredAt time.Time
}

// Completed reports whether the event finalizes a payment.
func (e *PaymentEvent) Completed() bool {
	return e != nil && IsCompletedStatus(e.Status)
}

// ParsePaymentWebhook decodes a payment webhook body of the form
//
//	{"id": "evt_1", "type": "payment.status_changed", "created_at": "...",
//	 "data": {"payment_id": "...", "client_id": 1, "status": "completed", "amount": "10.00", "currency": "USDT"}}
func ParsePaymentWebhook(payload []byte) (*PaymentEvent, error) {
	type rawPayload struct {
		ID        string     `json:"id"`
		Type      string     `json:"type"`
		CreatedAt *time.Time `json:"created_at"`
		Data      struct {
			PaymentID string          `json:"payment_id"`
			ClientID  uint            `json:"client_id"`
			Status    string          `json:"status"`
			Amount    decimal.Decimal `json:"amount"`
			Currency  string          `json:"currency"`
		} `json:"data"`
	}

	var raw rawPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}

	out := &PaymentEvent{
		EventID:   strings.TrimSpace(raw.ID),
		Type:      strings.TrimSpace(raw.Type),
		ClientID:  raw.Data.ClientID,
		PaymentID: strings.TrimSpace(raw.Data.PaymentID),
		Status:    normalizePaymentStatus(raw.Data.Status),
		Amount:    raw.Data.Amount,
		Currency:  strings.ToUpper(strings.TrimSpace(raw.Data.Currency)),
	}
	if raw.CreatedAt != nil {
		out.OccurredAt = *raw.CreatedAt
	}

	if out.ClientID == 0 {
		return nil, errors.New("payment webhook payload missing client id")
	}
	if out.PaymentID == "" {
		return nil, errors.New("payment webhook payload missing payment id")
	}
	if out.Amount.IsNegative() {
		return nil, fmt.Errorf("payment webhook amount must not be negative: %s", out.Amount)
	}
	if out.EventID == "" {
		out.EventID = out.PaymentID + ":" + out.Status
	}
	return out, nil
}
