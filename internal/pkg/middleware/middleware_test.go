package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cryptogate/cryptogate/app/models"
	"github.com/cryptogate/cryptogate/app/repository"
	"github.com/cryptogate/cryptogate/internal/pkg/config"
	"github.com/cryptogate/cryptogate/internal/pkg/entitlements"
	"github.com/cryptogate/cryptogate/internal/pkg/ratelimit"
	"github.com/cryptogate/cryptogate/internal/pkg/testutil"
)

func clientIDHandler(c *fiber.Ctx) error {
	client := ClientFromContext(c)
	if client == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(fiber.Map{"client_id": client.ID})
}

func TestAPIKeyAuth(t *testing.T) {
	db := testutil.NewTestDB(t)
	client := testutil.Client(t, db, "api@example.com", nil)
	raw, err := client.IssueAPIKey()
	require.NoError(t, err)
	require.NoError(t, repository.NewClientRepository(db).UpdateAPIKey(client.ID, client.APIKeyHash, client.APIKeyPrefix))

	app := fiber.New()
	app.Get("/me", APIKeyAuth(repository.NewClientRepository(db)), clientIDHandler)

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", fiber.StatusUnauthorized},
		{"x-api-key", "X-API-Key", raw, fiber.StatusOK},
		{"bearer", "Authorization", "Bearer " + raw, fiber.StatusOK},
		{"wrong key", "X-API-Key", "cg_nope", fiber.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestAPIKeyAuthRejectsInactiveClient(t *testing.T) {
	db := testutil.NewTestDB(t)
	client := testutil.Client(t, db, "gone@example.com", nil)
	raw, err := client.IssueAPIKey()
	require.NoError(t, err)
	repo := repository.NewClientRepository(db)
	require.NoError(t, repo.UpdateAPIKey(client.ID, client.APIKeyHash, client.APIKeyPrefix))
	require.NoError(t, db.Model(&models.Client{}).Where("id = ?", client.ID).Update("is_active", false).Error)

	app := fiber.New()
	app.Get("/me", APIKeyAuth(repo), clientIDHandler)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-API-Key", raw)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireAdmin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/admin", RequireAdmin(config.AdminConfig{User: "admin", PasswordHash: string(hash)}), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(KeyAdminUser).(string))
	})
	locked := fiber.New()
	locked.Get("/admin", RequireAdmin(config.AdminConfig{User: "admin"}), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	do := func(a *fiber.App, user, pass string) *http.Response {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if user != "" {
			req.SetBasicAuth(user, pass)
		}
		resp, err := a.Test(req, -1)
		require.NoError(t, err)
		return resp
	}

	assert.Equal(t, fiber.StatusOK, do(app, "admin", "pw").StatusCode)
	assert.Equal(t, fiber.StatusUnauthorized, do(app, "admin", "wrong").StatusCode)
	assert.Equal(t, fiber.StatusUnauthorized, do(app, "root", "pw").StatusCode)

	resp := do(app, "", "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderWWWAuthenticate), "Basic")

	assert.Equal(t, fiber.StatusUnauthorized, do(locked, "admin", "").StatusCode)
}

func TestClientRateLimit(t *testing.T) {
	rdb := testutil.NewTestRedis(t, 9)
	limited := &models.Client{ID: 42, FeaturesOverride: []string{"api_rate_limit:2"}}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(KeyClient, limited)
		return c.Next()
	})
	app.Get("/", ClientRateLimit(ratelimit.New(rdb, 0), entitlements.DefaultResolver()), clientIDHandler)

	var codes []int
	var last *http.Response
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
		last = resp
	}
	assert.Equal(t, []int{fiber.StatusOK, fiber.StatusOK, fiber.StatusTooManyRequests}, codes)
	assert.Equal(t, "2", last.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", last.Header.Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, last.Header.Get(fiber.HeaderRetryAfter))
}

func TestMonthlyAPICap(t *testing.T) {
	rdb := testutil.NewTestRedis(t, 9)
	capped := 1
	client := &models.Client{ID: 7, Package: &models.Package{Slug: "starter", MaxAPICallsPerMonth: &capped}}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(KeyClient, client)
		return c.Next()
	})
	app.Get("/", MonthlyAPICap(rdb), clientIDHandler)

	first, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, first.StatusCode)
	assert.Equal(t, "1", first.Header.Get("X-Monthly-API-Limit"))

	second, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, second.StatusCode)
}

func TestLimitsPassThroughWithoutClient(t *testing.T) {
	app := fiber.New()
	app.Get("/", ClientRateLimit(nil, entitlements.DefaultResolver()), MonthlyAPICap(nil), clientIDHandler)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
