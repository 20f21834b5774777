package billing

import (
	"strings"

	"github.com/cryptogate/cryptogate/app/models"
)

func normalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

func normalizeBillingMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case models.BillingModeCommission:
		return models.BillingModeCommission
	case models.BillingModeFlatRate, "flat", "flatrate", "flat-rate":
		return models.BillingModeFlatRate
	default:
		return ""
	}
}

func normalizePaymentStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	switch s {
	case models.PaymentStatusPending, models.PaymentStatusConfirmed, models.PaymentStatusCompleted,
		models.PaymentStatusFailed, models.PaymentStatusExpired:
		return s
	case "confirmed":
		return models.PaymentStatusConfirmed
	case "complete", "paid", "success":
		return models.PaymentStatusCompleted
	default:
		return "unknown"
	}
}

// IsCompletedStatus reports whether a payment status counts toward usage.
func IsCompletedStatus(status string) bool {
	return normalizePaymentStatus(status) == models.PaymentStatusCompleted
}

// normalizeOverrides trims tokens, drops empty ones and removes duplicates, keeping first occurrence order.
func normalizeOverrides(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, raw := range tokens {
		t := strings.TrimSpace(raw)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
