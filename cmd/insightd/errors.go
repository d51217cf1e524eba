package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(errorsCmd)
}

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Show recurring error patterns",
	Long: `List the most frequent error messages across all recorded turns,
most frequent first, with when each was last seen.`,
	RunE: runErrors,
}

func runErrors(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	insights := a.manager.ErrorInsights(cmd.Context())
	if insights.Status != "" {
		return degradeError(insights.Status)
	}

	if insights.TotalUniqueErrors == 0 {
		fmt.Println("No errors recorded.")
		return nil
	}

	fmt.Printf("%d distinct error message(s):\n\n", insights.TotalUniqueErrors)
	for i, p := range insights.ErrorPatterns {
		fmt.Printf("%2d. %4dx  %s\n", i+1, p.Count, p.ErrorMessage)
		fmt.Printf("           last seen %s\n", p.LastSeen.Format(time.RFC3339))
	}
	return nil
}
