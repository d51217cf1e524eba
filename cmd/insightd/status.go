package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/insightd/internal/insight"
)

var statusJSON bool

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show subsystem state and store statistics",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	status := a.manager.Status(cmd.Context())
	if statusJSON {
		return outputJSON(status)
	}
	printStatus(status)
	return nil
}

func printStatus(status *insight.Status) {
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Enabled:\t%v\n", status.Enabled)
	if !status.Enabled {
		return
	}

	fmt.Fprintf(w, "Initialized:\t%v\n", status.Initialized)
	fmt.Fprintf(w, "Turns logged:\t%d\n", status.TotalTurnsLogged)
	fmt.Fprintf(w, "Auto improve:\t%v\n", status.AutoImprove)
	fmt.Fprintf(w, "Report interval:\tevery %d turns\n", status.ReportInterval)
	fmt.Fprintf(w, "Sink configured:\t%v\n", status.SinkConfigured)

	if db := status.DatabaseStats; db != nil {
		fmt.Fprintf(w, "Conversations:\t%d (%d sessions, %.1f%% success)\n",
			db.TotalConversations, db.Sessions, db.SuccessRatePct)
		if !db.LastTimestamp.IsZero() {
			fmt.Fprintf(w, "Last activity:\t%s\n", db.LastTimestamp.Format(time.RFC3339))
		}
	}
	if kb := status.KnowledgeBase; kb != nil {
		fmt.Fprintf(w, "Knowledge docs:\t%d in %q\n", kb.DocumentCount, kb.CollectionName)
		if kb.Model != "" {
			fmt.Fprintf(w, "Embedding model:\t%s (%d dimensions)\n", kb.Model, kb.EmbeddingDimension)
		}
	}
}
