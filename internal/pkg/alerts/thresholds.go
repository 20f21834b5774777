package alerts

import "github.com/shopspring/decimal"

// Thresholds are the usage percentages that trigger an alert, ascending.
var Thresholds = []int{80, 90, 95, 100}

const (
	SeverityNotice        = "notice"
	SeverityWarning       = "warning"
	SeverityCritical      = "critical"
	SeverityLimitExceeded = "limit_exceeded"
)

// SelectThreshold returns the highest threshold met by pct. Lower thresholds
// that were skipped are not reported.
func SelectThreshold(pct decimal.Decimal) (int, bool) {
	for i := len(Thresholds) - 1; i >= 0; i-- {
		if pct.GreaterThanOrEqual(decimal.NewFromInt(int64(Thresholds[i]))) {
			return Thresholds[i], true
		}
	}
	return 0, false
}

// Severity maps a threshold to the label used in notifications.
func Severity(threshold int) string {
	switch {
	case threshold >= 100:
		return SeverityLimitExceeded
	case threshold >= 95:
		return SeverityCritical
	case threshold >= 90:
		return SeverityWarning
	default:
		return SeverityNotice
	}
}

func severityLabel(severity string) string {
	switch severity {
	case SeverityLimitExceeded:
		return "Limit exceeded"
	case SeverityCritical:
		return "Critical"
	case SeverityWarning:
		return "Warning"
	default:
		return "Notice"
	}
}

func severityColor(severity string) string {
	switch severity {
	case SeverityLimitExceeded, SeverityCritical:
		return "#dc2626"
	case SeverityWarning:
		return "#d97706"
	default:
		return "#2563eb"
	}
}
