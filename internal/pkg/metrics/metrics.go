package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cryptogate"

var (
	UsageAlertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "usage_alerts_sent_total",
		Help:      "Usage alerts recorded, by threshold.",
	}, []string{"threshold"})

	UsageAlertFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "usage_alert_failures_total",
		Help:      "Usage alert checks that failed.",
	})

	UsageResets = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "usage_resets_total",
		Help:      "Monthly usage reset outcomes.",
	}, []string{"result"})

	PaymentsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payments_recorded_total",
		Help:      "Completed payments applied to client usage.",
	})

	PaymentVolume = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_volume_total",
		Help:      "Sum of completed payment amounts applied to client usage.",
	})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Payment webhook deliveries, by outcome.",
	}, []string{"outcome"})

	APIRequestsLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_requests_limited_total",
		Help:      "Client API requests rejected by a limit.",
	}, []string{"limit"})
)

// Reset outcome labels.
const (
	ResetSucceeded = "succeeded"
	ResetFailed    = "failed"
	ResetSkipped   = "skipped"
	ResetDryRun    = "dry_run"
)

// ThresholdLabel formats a threshold for the alert counter.
func ThresholdLabel(threshold int) string {
	return strconv.Itoa(threshold)
}
