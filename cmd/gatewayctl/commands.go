package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cryptogate/cryptogate/app/repository"
	"github.com/cryptogate/cryptogate/internal/pkg/usage"
)

// errBatchFailures makes the process exit non-zero after a batch with failed items.
var errBatchFailures = errors.New("one or more clients failed")

func resetMonthlyUsageCmd() *cobra.Command {
	var opts usage.ResetOptions
	cmd := &cobra.Command{
		Use:   "reset-monthly-usage",
		Short: "Archive and zero the monthly counters of flat-rate clients",
		Long: `Resets current month volume and transaction counters for active
flat-rate clients that have not been reset since the start of this month.
Counters are archived as a usage snapshot before they are cleared.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				report, err := e.runner.ResetMonthlyUsage(ctx, opts)
				if err != nil {
					return err
				}
				printResetReport(cmd.OutOrStdout(), report)
				if report.Failed > 0 {
					return errBatchFailures
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Show what would be reset without changing anything")
	cmd.Flags().UintVar(&opts.ClientID, "client-id", 0, "Only reset this client")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Reset even if the client was already reset this month")
	return cmd
}

func checkClientUsageCmd() *cobra.Command {
	var clientID uint
	cmd := &cobra.Command{
		Use:   "check-client-usage",
		Short: "Show a client's usage and send any due alert",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				client, err := repository.NewClientRepository(e.db).GetByID(clientID)
				if err != nil {
					return fmt.Errorf("load client %d: %w", clientID, err)
				}
				printUsageSummary(cmd.OutOrStdout(), client)

				sent, err := e.runner.CheckClientUsage(ctx, clientID)
				if err != nil {
					return err
				}
				if sent {
					fmt.Fprintln(cmd.OutOrStdout(), "\nAlert sent.")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "\nNo alert due.")
				}
				return nil
			})
		},
	}
	cmd.Flags().UintVar(&clientID, "client-id", 0, "Client to check")
	_ = cmd.MarkFlagRequired("client-id")
	return cmd
}

func checkUsageAlertsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-usage-alerts",
		Short: "Run the usage alert check for every active flat-rate client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				report, err := e.runner.CheckUsageAlerts(ctx)
				if err != nil {
					return err
				}
				printAlertReport(cmd.OutOrStdout(), report)
				if report.Failed > 0 {
					return errBatchFailures
				}
				return nil
			})
		},
	}
}

func testUsageAlertCmd() *cobra.Command {
	var (
		clientID  uint
		threshold int
	)
	cmd := &cobra.Command{
		Use:   "test-usage-alert",
		Short: "Send a test alert email without recording it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				if err := e.runner.TestUsageAlert(ctx, clientID, threshold); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Test %d%% alert sent for client %d.\n", threshold, clientID)
				return nil
			})
		},
	}
	cmd.Flags().UintVar(&clientID, "client-id", 0, "Client to address")
	cmd.Flags().IntVar(&threshold, "threshold", 0, "Threshold percentage to render (80, 90, 95 or 100)")
	_ = cmd.MarkFlagRequired("client-id")
	_ = cmd.MarkFlagRequired("threshold")
	return cmd
}

func syncClientStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-client-status",
		Short: "Repair client status fields that drifted from their package",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				updated, err := e.runner.SyncClientStatuses(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %d client status(es).\n", updated)
				return nil
			})
		},
	}
}
