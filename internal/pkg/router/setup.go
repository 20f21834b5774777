package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/cryptogate/cryptogate/app/controllers"
	"github.com/cryptogate/cryptogate/app/repository"
	"github.com/cryptogate/cryptogate/internal/pkg/billing"
	"github.com/cryptogate/cryptogate/internal/pkg/config"
	"github.com/cryptogate/cryptogate/internal/pkg/entitlements"
	"github.com/cryptogate/cryptogate/internal/pkg/jobs"
	"github.com/cryptogate/cryptogate/internal/pkg/ratelimit"
	"github.com/cryptogate/cryptogate/internal/pkg/usage"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Deps carries what the routers need. Redis may be nil; client rate limits
// and API call caps are then not enforced. LimiterStorage nil keeps the
// webhook limiter in memory.
type Deps struct {
	Config         config.Config
	DB             *gorm.DB
	Redis          *redis.Client
	Runner         *jobs.Runner
	LimiterStorage fiber.Storage
}

type handlers struct {
	repos   *repository.Factory
	webhook *controllers.WebhookController
	client  *controllers.ClientAPIController
	admin   *controllers.AdminController
}

func newHandlers(d Deps) handlers {
	factory := repository.NewFactory(d.DB)
	repos := factory.GetRepositories()
	svc := billing.NewServiceFromDB(d.DB)
	resolver := entitlements.DefaultResolver()
	return handlers{
		repos:   factory,
		webhook: controllers.NewWebhookController(svc, usage.NewTracker(repos.Client), repos.Client, d.Runner.Alerts(), d.Config.Webhook.Secret),
		client:  controllers.NewClientAPIController(resolver, d.Redis),
		admin:   controllers.NewAdminController(repos, svc, d.Runner, resolver),
	}
}

func InstallRouter(app *fiber.App, d Deps) {
	h := newHandlers(d)
	var limiter *ratelimit.Limiter
	if d.Redis != nil {
		limiter = ratelimit.New(d.Redis, 0)
	}
	setup(app,
		NewHttpRouter(d.Config.Admin, h.admin),
		NewApiRouter(d, h, limiter),
	)
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
