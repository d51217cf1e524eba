package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchSession string
	searchLimit   int
)

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVar(&searchSession, "session", "", "restrict matches to one session")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "k", 5, "maximum number of matches")
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search past interactions semantically",
	Long: `Search the knowledge index for interactions similar to the query.

Examples:
  # Find turns about timers
  insightd search "set a timer"

  # Only within one session, top 3 matches
  insightd search "weather" --session session_ab12cd34 -k 3`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	entries := a.manager.RelevantContext(cmd.Context(), args[0], searchLimit, searchSession)
	if len(entries) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	for i, entry := range entries {
		fmt.Printf("%d. [%.3f] %s\n", i+1, entry.Similarity, entry.ID)
		for _, line := range strings.Split(strings.TrimSpace(entry.Content), "\n") {
			fmt.Printf("   %s\n", line)
		}
		if session := entry.Metadata["session_id"]; session != "" {
			fmt.Printf("   (session %s)\n", session)
		}
		fmt.Println()
	}
	return nil
}
