package main

import (
	"context"
	"fmt"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	apiv1 "github.com/cryptogate/cryptogate/internal/api/v1"
	"github.com/cryptogate/cryptogate/internal/pkg/cache"
	"github.com/cryptogate/cryptogate/internal/pkg/config"
	"github.com/cryptogate/cryptogate/internal/pkg/database"
	"github.com/cryptogate/cryptogate/internal/pkg/jobs"
	"github.com/cryptogate/cryptogate/internal/pkg/router"
)

func main() {
	cfg := config.MustLoad()
	app := NewApplication(cfg)
	err := app.Listen(fmt.Sprintf("%s:%s", cfg.AppHost, cfg.AppPort))
	log.Fatal(err)
}

func NewApplication(cfg config.Config) *fiber.App {
	database.SetupDatabase(cfg.Database)
	cache.SetupCache(cfg.Cache)

	runner, err := jobs.Build(context.Background(), cfg, database.GetDB(), cache.GetClient())
	if err != nil {
		panic(fmt.Errorf("build job runner: %w", err))
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	if _, err := apiv1.LoadSpec(context.Background(), apiv1.SpecPath); err != nil {
		log.Warnf("[Server] OpenAPI document: %v", err)
	}
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./" + apiv1.SpecPath,
		Path:     "v1",
	}))

	// ROUTER
	router.InstallRouter(app, router.Deps{
		Config:         cfg,
		DB:             database.GetDB(),
		Redis:          cache.GetClient(),
		Runner:         runner,
		LimiterStorage: cache.NewLimiterStorage(cfg.Cache),
	})

	return app
}
