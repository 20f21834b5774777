package alerts

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gofiber/template/html/v2"

	"github.com/cryptogate/cryptogate/app/models"
	"github.com/cryptogate/cryptogate/internal/pkg/entitlements"
	"github.com/cryptogate/cryptogate/views"
)

const alertTemplate = "emails/usage_alert"

type alertView struct {
	Subject       string
	Client        *models.Client
	Threshold     int
	Severity      string
	SeverityLabel string
	Color         string
	UsagePercent  string
	Volume        string
	VolumeCap     string
	BillingMonth  string
	DashboardURL  string
	Test          bool
}

type renderer struct {
	engine *html.Engine
}

func newRenderer(resolver *entitlements.Resolver) (*renderer, error) {
	engine := html.NewFileSystem(http.FS(views.Emails), ".html")
	engine.AddFuncMap(resolver.TemplateFuncs())
	if err := engine.Load(); err != nil {
		return nil, fmt.Errorf("load email templates: %w", err)
	}
	return &renderer{engine: engine}, nil
}

func (r *renderer) render(v alertView) (string, error) {
	var buf bytes.Buffer
	if err := r.engine.Render(&buf, alertTemplate, v); err != nil {
		return "", fmt.Errorf("render %s: %w", alertTemplate, err)
	}
	return buf.String(), nil
}
