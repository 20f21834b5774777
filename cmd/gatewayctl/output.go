package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/cryptogate/cryptogate/app/models"
	"github.com/cryptogate/cryptogate/internal/pkg/alerts"
	"github.com/cryptogate/cryptogate/internal/pkg/usage"
)

func printResetReport(w io.Writer, report *usage.ResetReport) {
	title := "Monthly usage reset"
	if report.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", 40))

	for _, r := range report.Results {
		line := fmt.Sprintf("  [%s] client %d %s (%s, %s): volume %s, %d transactions",
			r.Outcome, r.ClientID, r.Email, r.PackageSlug, r.BillingMonth, r.Volume, r.Transactions)
		switch {
		case r.Err != nil:
			line += " - " + r.Err.Error()
		case r.Reason != "":
			line += " - " + r.Reason
		}
		fmt.Fprintln(w, line)
	}
	if len(report.Results) == 0 {
		fmt.Fprintln(w, "  (no clients)")
	}

	fmt.Fprintln(w, "\nSummary:")
	if report.DryRun {
		fmt.Fprintf(w, "  Would reset: %d\n", report.Succeeded)
	} else {
		fmt.Fprintf(w, "  Reset:       %d\n", report.Succeeded)
	}
	fmt.Fprintf(w, "  Attempted:   %d\n", report.Attempted)
	fmt.Fprintf(w, "  Failed:      %d\n", report.Failed)
	fmt.Fprintf(w, "  Skipped:     %d\n", report.Skipped)
}

func printAlertReport(w io.Writer, report *alerts.Report) {
	fmt.Fprintln(w, "Usage alert check")
	fmt.Fprintln(w, strings.Repeat("=", 40))
	for _, id := range report.Alerted {
		fmt.Fprintf(w, "  [sent] client %d\n", id)
	}
	for _, f := range report.Failures {
		fmt.Fprintf(w, "  [failed] client %d - %v\n", f.ClientID, f.Err)
	}

	fmt.Fprintln(w, "\nSummary:")
	fmt.Fprintf(w, "  Checked: %d\n", report.Checked)
	fmt.Fprintf(w, "  Sent:    %d\n", report.Sent)
	fmt.Fprintf(w, "  Failed:  %d\n", report.Failed)
}

func printUsageSummary(w io.Writer, c *models.Client) {
	s := usage.SummaryFor(c)
	fmt.Fprintf(w, "Client %d (%s)\n", c.ID, c.Email)
	fmt.Fprintln(w, strings.Repeat("=", 40))
	fmt.Fprintf(w, "  Package:      %s\n", valueOrDefault(s.PackageSlug, "none"))
	if s.VolumeCap != nil {
		fmt.Fprintf(w, "  Volume:       %s / %s (%.2f%%)\n", s.Volume.StringFixed(2), s.VolumeCap.StringFixed(2), s.VolumeUtilization)
	} else {
		fmt.Fprintf(w, "  Volume:       %s (unlimited)\n", s.Volume.StringFixed(2))
	}
	if s.TransactionCap != nil {
		fmt.Fprintf(w, "  Transactions: %d / %d (%.2f%%)\n", s.Transactions, *s.TransactionCap, s.TransactionUtilization)
	} else {
		fmt.Fprintf(w, "  Transactions: %d (unlimited)\n", s.Transactions)
	}
	if s.VolumeExceeded || s.TransactionsExceeded {
		fmt.Fprintln(w, "  Status:       OVER LIMIT")
	}
	if s.LastUsageReset != nil {
		fmt.Fprintf(w, "  Last reset:   %s\n", s.LastUsageReset.Format("2006-01-02 15:04:05"))
	}
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
