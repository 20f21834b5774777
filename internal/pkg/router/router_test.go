package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/cryptogate/cryptogate/app/models"
	apiv1 "github.com/cryptogate/cryptogate/internal/api/v1"
	"github.com/cryptogate/cryptogate/internal/pkg/billing"
	"github.com/cryptogate/cryptogate/internal/pkg/config"
	"github.com/cryptogate/cryptogate/internal/pkg/jobs"
	"github.com/cryptogate/cryptogate/internal/pkg/testutil"
)

const (
	webhookSecret = "whsec_test"
	adminPassword = "s3cret"
)

type testApp struct {
	app *fiber.App
	db  *gorm.DB
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db := testutil.NewTestDB(t)

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := config.Config{
		Mail:    config.MailConfig{Driver: config.MailDriverDisabled},
		Alerts:  config.AlertsConfig{Enabled: true},
		Admin:   config.AdminConfig{User: "admin", PasswordHash: string(hash)},
		Webhook: config.WebhookConfig{Secret: webhookSecret, RateLimit: 100, RateWindow: 60e9},
	}
	runner, err := jobs.Build(context.Background(), cfg, db, nil)
	require.NoError(t, err)

	app := fiber.New()
	InstallRouter(app, Deps{Config: cfg, DB: db, Runner: runner})
	return &testApp{app: app, db: db}
}

func (ta *testApp) do(t *testing.T, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	out := map[string]interface{}{}
	_ = json.Unmarshal(body, &out)
	return resp.StatusCode, out
}

func (ta *testApp) admin(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth("admin", adminPassword)
	return ta.do(t, req)
}

func paymentPayload(eventID string, clientID uint, status, amount string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"type":"payment.status_changed","data":{"payment_id":"pay_%s","client_id":%d,"status":%q,"amount":%q,"currency":"usdt"}}`,
		eventID, eventID, clientID, status, amount))
}

func webhookRequest(payload []byte, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(billing.SignatureHeader, signature)
	}
	return req
}

func TestPaymentWebhookRecordsUsageAndAlerts(t *testing.T) {
	ta := newTestApp(t)
	pkg := testutil.FlatRatePackage(t, ta.db, "business_flat_rate", "999", "70000")
	c := testutil.Client(t, ta.db, "merchant@example.com", pkg)

	payload := paymentPayload("evt_1", c.ID, "completed", "66500")
	status, body := ta.do(t, webhookRequest(payload, "sha256="+billing.SignPayload(payload, webhookSecret)))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["alerted"])

	var stored models.Client
	require.NoError(t, ta.db.First(&stored, c.ID).Error)
	assert.True(t, stored.CurrentMonthVolume.Equal(decimal.NewFromInt(66500)))
	assert.Equal(t, 1, stored.CurrentMonthTransactions)

	var alerts []models.UsageAlert
	require.NoError(t, ta.db.Where("client_id = ?", c.ID).Find(&alerts).Error)
	require.Len(t, alerts, 1)
	assert.Equal(t, 95, alerts[0].Threshold)

	status, body = ta.do(t, webhookRequest(payload, billing.SignPayload(payload, webhookSecret)))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["duplicate"])
	require.NoError(t, ta.db.First(&stored, c.ID).Error)
	assert.Equal(t, 1, stored.CurrentMonthTransactions, "duplicate delivery must not count twice")
}

func TestPaymentWebhookRejectsBadSignature(t *testing.T) {
	ta := newTestApp(t)
	payload := paymentPayload("evt_2", 1, "completed", "10")

	status, _ := ta.do(t, webhookRequest(payload, ""))
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = ta.do(t, webhookRequest(payload, billing.SignPayload(payload, "wrong")))
	assert.Equal(t, http.StatusUnauthorized, status)

	var count int64
	require.NoError(t, ta.db.Model(&models.PaymentWebhookEvent{}).Count(&count).Error)
	assert.Zero(t, count, "unsigned events are not stored")
}

func TestPaymentWebhookIgnoresPendingAndUnknownClients(t *testing.T) {
	ta := newTestApp(t)
	pkg := testutil.FlatRatePackage(t, ta.db, "growth_flat_rate", "299", "25000")
	c := testutil.Client(t, ta.db, "merchant@example.com", pkg)

	pending := paymentPayload("evt_3", c.ID, "pending", "500")
	status, body := ta.do(t, webhookRequest(pending, billing.SignPayload(pending, webhookSecret)))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["ignored"])

	unknown := paymentPayload("evt_4", 9999, "paid", "500")
	status, body = ta.do(t, webhookRequest(unknown, billing.SignPayload(unknown, webhookSecret)))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["ignored"])

	var stored models.Client
	require.NoError(t, ta.db.First(&stored, c.ID).Error)
	assert.True(t, stored.CurrentMonthVolume.IsZero())

	bad := []byte(`{"id":"evt_5","data":{}}`)
	status, _ = ta.do(t, webhookRequest(bad, billing.SignPayload(bad, webhookSecret)))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestClientAPI(t *testing.T) {
	ta := newTestApp(t)
	pkg := testutil.FlatRatePackage(t, ta.db, "growth_flat_rate", "299", "25000")
	c := testutil.Client(t, ta.db, "merchant@example.com", pkg)
	apiKey, err := c.IssueAPIKey()
	require.NoError(t, err)
	require.NoError(t, ta.db.Model(&models.Client{}).Where("id = ?", c.ID).Updates(map[string]interface{}{
		"api_key_hash":         c.APIKeyHash,
		"current_month_volume": decimal.NewFromInt(5000),
	}).Error)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/client/features", nil)
	status, _ := ta.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, status)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/client/features", nil)
	req.Header.Set("X-API-Key", apiKey)
	status, body := ta.do(t, req)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "growth_flat_rate", body["package"])
	assert.Equal(t, "Business Flat Rate", body["upgrade_package"])
	assert.Contains(t, body["features"], "webhooks")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/client/usage", nil)
	req.Header.Set("Authorization", "Bearer "+apiKey)
	status, body = ta.do(t, req)
	require.Equal(t, http.StatusOK, status)
	summary := body["usage"].(map[string]interface{})
	assert.Equal(t, 20.0, summary["volume_utilization_percent"])
}

func TestAdminRequiresAuth(t *testing.T) {
	ta := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/packages", nil)
	status, _ := ta.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, status)

	req = httptest.NewRequest(http.MethodGet, "/admin/packages", nil)
	req.SetBasicAuth("admin", "nope")
	status, _ = ta.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = ta.admin(t, http.MethodGet, "/admin/packages", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAdminPackageMarginFloor(t *testing.T) {
	ta := newTestApp(t)

	status, body := ta.admin(t, http.MethodPost, "/admin/packages", map[string]interface{}{
		"slug": "cheap_flat_rate", "name": "Cheap", "billing_mode": "flat_rate",
		"monthly_price": "500", "max_volume_per_month": "50000",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, body["error"], "minimum margin")

	status, body = ta.admin(t, http.MethodPost, "/admin/packages", map[string]interface{}{
		"slug": "growth_flat_rate", "name": "Growth", "billing_mode": "flat_rate",
		"monthly_price": "499", "max_volume_per_month": "35000",
	})
	require.Equal(t, http.StatusCreated, status)
	pkgID := uint(body["id"].(float64))

	status, body = ta.admin(t, http.MethodPost, "/admin/packages/validate-margin", map[string]interface{}{
		"monthly_price": "500", "max_volume_per_month": "50000",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["is_valid"])
	assert.Equal(t, "1.000", body["calculated_margin"])

	status, body = ta.admin(t, http.MethodPost, "/admin/clients", map[string]interface{}{
		"name": "Shop", "email": "shop@example.com", "package_id": pkgID,
	})
	require.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, body["api_key"])
	clientID := uint(body["client"].(map[string]interface{})["id"].(float64))

	status, body = ta.admin(t, http.MethodGet, fmt.Sprintf("/admin/clients/%d/margin", clientID), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["is_valid"])

	status, _ = ta.admin(t, http.MethodPut, fmt.Sprintf("/admin/clients/%d/overrides", clientID), map[string]interface{}{
		"features": []string{"priority_support"},
	})
	assert.Equal(t, http.StatusOK, status)

	status, body = ta.admin(t, http.MethodPost, "/admin/usage/reset", map[string]interface{}{"dry_run": true})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["attempted"])

	status, _ = ta.admin(t, http.MethodGet, "/admin/clients/999/margin", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRoutesAreDocumented(t *testing.T) {
	ta := newTestApp(t)
	doc, err := apiv1.LoadSpec(context.Background(), filepath.Join("..", "..", "..", apiv1.SpecPath))
	require.NoError(t, err)

	checked := 0
	for _, r := range ta.app.GetRoutes(true) {
		switch r.Method {
		case fiber.MethodGet, fiber.MethodPost, fiber.MethodPut:
		default:
			continue
		}
		if r.Path == "/admin/monitor" || !(strings.HasPrefix(r.Path, "/api/v1/") || strings.HasPrefix(r.Path, "/admin/")) {
			continue
		}
		checked++
		assert.True(t, apiv1.Documents(doc, r.Method, r.Path), "%s %s is not in the OpenAPI document", r.Method, r.Path)
	}
	assert.Greater(t, checked, 15)
}
