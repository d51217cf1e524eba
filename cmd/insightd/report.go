package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/insightd/internal/insight"
	"github.com/fyrsmithlabs/insightd/internal/performance"
)

var (
	reportDays int
	reportJSON bool
)

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().IntVar(&reportDays, "days", 7, "analysis window in days")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "output the report as JSON")
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a performance report with improvement suggestions",
	Long: `Analyze the recorded conversation turns and print response time,
error and verbosity statistics along with rule-based improvement
suggestions.

Examples:
  # Report over the default 7 day window
  insightd report

  # Last day only, as JSON
  insightd report --days 1 --json`,
	RunE: runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	report := a.manager.PerformanceReport(cmd.Context(), reportDays)
	if report.Status != "" {
		return degradeError(report.Status)
	}

	if reportJSON {
		return outputJSON(report)
	}
	printReport(report)
	return nil
}

// printReport renders a report for terminal reading.
func printReport(report *insight.PerformanceReport) {
	if report.Report == nil {
		fmt.Println("No data available.")
		return
	}

	fmt.Printf("Generated: %s\n", report.GeneratedAt.Format(time.RFC3339))

	if rt := report.ResponseTimes; rt.Status == performance.StatusAnalyzed {
		fmt.Printf("\nResponse times over %d turns:\n", rt.Count)
		fmt.Printf("  avg %.0fms  min %.0fms  max %.0fms\n", rt.AvgMS, rt.MinMS, rt.MaxMS)
		fmt.Printf("  p50 %.0fms  p95 %.0fms  p99 %.0fms\n", rt.P50MS, rt.P95MS, rt.P99MS)
	}

	if errs := report.Errors; errs.Status == performance.StatusAnalyzed {
		fmt.Printf("\nErrors: %d of %d turns failed (%.1f%%)\n",
			errs.ErrorCount, errs.Total, errs.ErrorRatePct)
	}

	if conv := report.Conversations; conv.Status == performance.StatusAnalyzed {
		fmt.Printf("\nMessage lengths over %d turns: user avg %.0f chars, agent avg %.0f chars\n",
			conv.Count, conv.AvgUserMessageLength, conv.AvgAgentResponseLength)
	}

	if len(report.Suggestions) > 0 {
		fmt.Printf("\nSuggestions (%d high, %d medium, %d low):\n",
			report.Summary.High, report.Summary.Medium, report.Summary.Low)
		for _, s := range report.Suggestions {
			fmt.Printf("  [%s] %s\n", s.Severity, s.Text)
		}
	} else {
		fmt.Println("\nNo suggestions. Performance looks healthy.")
	}

	if db := report.DatabaseStats; db != nil {
		fmt.Printf("\nStore: %d conversations across %d sessions, %.1f%% success\n",
			db.TotalConversations, db.Sessions, db.SuccessRatePct)
	}
	if kb := report.KnowledgeBaseStats; kb != nil {
		fmt.Printf("Knowledge: %d documents in %q\n", kb.DocumentCount, kb.CollectionName)
	}
}
