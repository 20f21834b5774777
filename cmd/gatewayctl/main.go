package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/cryptogate/cryptogate/internal/pkg/config"
	"github.com/cryptogate/cryptogate/internal/pkg/database"
	"github.com/cryptogate/cryptogate/internal/pkg/jobs"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "gatewayctl",
		Short:         "Operator commands for client usage and alerts",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(resetMonthlyUsageCmd())
	rootCmd.AddCommand(checkClientUsageCmd())
	rootCmd.AddCommand(checkUsageAlertsCmd())
	rootCmd.AddCommand(testUsageAlertCmd())
	rootCmd.AddCommand(syncClientStatusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// env holds what every command needs. Redis is optional: without it
// batch locks are skipped.
type env struct {
	db     *gorm.DB
	rdb    *redis.Client
	runner *jobs.Runner
}

func (e *env) Close() {
	if e.rdb != nil {
		_ = e.rdb.Close()
	}
	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func bootstrap(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Addr(),
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warnf("[gatewayctl] Redis unavailable at %s, running without job locks: %v", cfg.Cache.Addr(), err)
		_ = rdb.Close()
		rdb = nil
	}

	runner, err := jobs.Build(ctx, cfg, db, rdb)
	if err != nil {
		return nil, err
	}
	return &env{db: db, rdb: rdb, runner: runner}, nil
}

// withEnv runs fn with a bootstrapped environment bound to the command's context.
func withEnv(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(ctx, e)
}
