package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/cryptogate/cryptogate/app/models"
	"github.com/cryptogate/cryptogate/app/repository"
	"github.com/cryptogate/cryptogate/internal/pkg/config"
	"github.com/cryptogate/cryptogate/internal/pkg/entitlements"
	"github.com/cryptogate/cryptogate/internal/pkg/mail"
	"github.com/cryptogate/cryptogate/internal/pkg/metrics"
	"github.com/cryptogate/cryptogate/internal/pkg/usage"
)

var (
	ErrClientNotFound   = errors.New("client not found")
	ErrNotApplicable    = errors.New("client has no package with a finite volume cap")
	ErrInvalidThreshold = errors.New("threshold must be between 1 and 1000")
)

const mailTag = "usage-alert"

// Engine decides when a client crossed a usage threshold and notifies it at
// most once per threshold and billing month.
type Engine struct {
	clients      repository.ClientRepository
	alerts       repository.UsageAlertRepository
	sender       mail.Sender
	renderer     *renderer
	adminEmail   string
	dashboardURL string
	now          func() time.Time
}

// NewEngine creates an alert engine. With cfg.Enabled false alerts are still
// recorded but nothing is delivered.
func NewEngine(clients repository.ClientRepository, alerts repository.UsageAlertRepository, sender mail.Sender, cfg config.AlertsConfig) (*Engine, error) {
	r, err := newRenderer(entitlements.DefaultResolver())
	if err != nil {
		return nil, err
	}
	if sender == nil || !cfg.Enabled {
		sender = mail.Disabled{}
	}
	return &Engine{
		clients:      clients,
		alerts:       alerts,
		sender:       sender,
		renderer:     r,
		adminEmail:   cfg.AdminEmail,
		dashboardURL: cfg.DashboardURL,
		now:          time.Now,
	}, nil
}

// CheckClientUsage sends and records an alert when c's volume utilization
// reached a threshold not yet alerted this month. It returns true only when a
// new alert was recorded.
func (e *Engine) CheckClientUsage(ctx context.Context, c *models.Client) (bool, error) {
	if c == nil || !c.Package.HasVolumeCap() {
		return false, nil
	}

	pct := usage.VolumeUtilization(c)
	threshold, ok := SelectThreshold(pct)
	if !ok {
		return false, nil
	}

	month := models.BillingMonth(e.now())
	highest, err := e.alerts.HighestThreshold(c.ID, month)
	if err != nil {
		return false, fmt.Errorf("check alert history for client %d: %w", c.ID, err)
	}
	if highest >= threshold {
		return false, nil
	}

	msg, err := e.compose(c, threshold, pct, month, false)
	if err != nil {
		return false, err
	}

	alert := &models.UsageAlert{
		ClientID:     c.ID,
		Threshold:    threshold,
		BillingMonth: month,
		UsagePercent: models.RecordedUsagePercent(pct),
		Severity:     Severity(threshold),
		SentTo:       c.Email,
	}
	created, err := e.alerts.CreateIfAbsent(alert, func() error {
		return e.sender.Send(ctx, msg)
	})
	if err != nil {
		metrics.UsageAlertFailures.Inc()
		return false, fmt.Errorf("send %d%% alert to client %d: %w", threshold, c.ID, err)
	}
	if !created {
		return false, nil
	}

	metrics.UsageAlertsSent.WithLabelValues(metrics.ThresholdLabel(threshold)).Inc()
	log.Infof("[UsageAlerts] Client %d reached %d%% (%s%%) for %s", c.ID, threshold, pct.StringFixed(2), month)
	e.copyAdmin(ctx, msg)
	return true, nil
}

// CheckClientUsageByID loads the client and runs CheckClientUsage.
func (e *Engine) CheckClientUsageByID(ctx context.Context, clientID uint) (bool, error) {
	c, err := e.client(clientID)
	if err != nil {
		return false, err
	}
	return e.CheckClientUsage(ctx, c)
}

// Failure records a client whose check failed during a batch.
type Failure struct {
	ClientID uint
	Err      error
}

// Report summarizes CheckAllClients.
type Report struct {
	Checked  int
	Sent     int
	Failed   int
	Alerted  []uint
	Failures []Failure
}

// CheckAllClients checks every active flat-rate client. A failing client is
// recorded in the report and the batch continues.
func (e *Engine) CheckAllClients(ctx context.Context) (*Report, error) {
	clients, err := e.clients.ListActiveFlatRate()
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}

	report := &Report{}
	for i := range clients {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		c := &clients[i]
		if !c.HasPackage() {
			continue
		}
		report.Checked++
		sent, err := e.CheckClientUsage(ctx, c)
		if err != nil {
			log.Errorf("[UsageAlerts] %v", err)
			report.Failed++
			report.Failures = append(report.Failures, Failure{ClientID: c.ID, Err: err})
			continue
		}
		if sent {
			report.Sent++
			report.Alerted = append(report.Alerted, c.ID)
		}
	}

	log.Infof("[UsageAlerts] Checked %d clients: %d alerts sent, %d failed", report.Checked, report.Sent, report.Failed)
	return report, nil
}

// SendTestAlert renders and sends an alert for threshold without recording it.
func (e *Engine) SendTestAlert(ctx context.Context, clientID uint, threshold int) error {
	if threshold < 1 || threshold > 1000 {
		return ErrInvalidThreshold
	}
	c, err := e.client(clientID)
	if err != nil {
		return err
	}
	if !c.Package.HasVolumeCap() {
		return ErrNotApplicable
	}

	msg, err := e.compose(c, threshold, usage.VolumeUtilization(c), models.BillingMonth(e.now()), true)
	if err != nil {
		return err
	}
	if err := e.sender.Send(ctx, msg); err != nil {
		return err
	}
	log.Infof("[UsageAlerts] Test alert at %d%% sent to client %d", threshold, c.ID)
	return nil
}

func (e *Engine) client(id uint) (*models.Client, error) {
	c, err := e.clients.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrClientNotFound, id)
		}
		return nil, err
	}
	return c, nil
}

func (e *Engine) compose(c *models.Client, threshold int, pct decimal.Decimal, month string, test bool) (mail.Message, error) {
	severity := Severity(threshold)
	subject := fmt.Sprintf("[%s] You have used %d%% of your monthly volume", severityLabel(severity), threshold)
	if test {
		subject = "[Test] " + subject
	}

	body, err := e.renderer.render(alertView{
		Subject:       subject,
		Client:        c,
		Threshold:     threshold,
		Severity:      severity,
		SeverityLabel: severityLabel(severity),
		Color:         severityColor(severity),
		UsagePercent:  pct.StringFixed(1),
		Volume:        c.CurrentMonthVolume.StringFixed(2),
		VolumeCap:     c.Package.MaxVolumePerMonth.StringFixed(2),
		BillingMonth:  month,
		DashboardURL:  e.dashboardURL,
		Test:          test,
	})
	if err != nil {
		return mail.Message{}, err
	}
	return mail.Message{To: c.Email, Subject: subject, HTMLBody: body, Tag: mailTag}, nil
}

// copyAdmin forwards a delivered alert to the operator address. Failures are only logged.
func (e *Engine) copyAdmin(ctx context.Context, msg mail.Message) {
	if e.adminEmail == "" || e.adminEmail == msg.To {
		return
	}
	msg.Subject = fmt.Sprintf("%s (%s)", msg.Subject, msg.To)
	msg.To = e.adminEmail
	if err := e.sender.Send(ctx, msg); err != nil {
		log.Warnf("[UsageAlerts] Admin copy to %s failed: %v", e.adminEmail, err)
	}
}
