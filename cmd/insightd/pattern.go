package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var patternMetadata []string

func init() {
	rootCmd.AddCommand(patternCmd)
	patternCmd.AddCommand(patternAddCmd)
	patternAddCmd.Flags().StringArrayVar(&patternMetadata, "meta", nil, "metadata as key=value (repeatable)")
}

var patternCmd = &cobra.Command{
	Use:   "pattern",
	Short: "Manage curated knowledge patterns",
}

var patternAddCmd = &cobra.Command{
	Use:   "add <type> <description>",
	Short: "Add a curated pattern to the knowledge index",
	Long: `Store a hand-written pattern alongside the recorded conversations so
retrieval can surface it for matching queries.

Examples:
  # A successful phrasing worth repeating
  insightd pattern add success_pattern "Answering with the city name first keeps weather replies short"

  # With metadata
  insightd pattern add error_pattern "Users repeat themselves when replies exceed ten seconds" --meta source=support-review`,
	Args: cobra.ExactArgs(2),
	RunE: runPatternAdd,
}

func runPatternAdd(cmd *cobra.Command, args []string) error {
	metadata, err := parseMetadata(patternMetadata)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	id, err := a.manager.AddPattern(cmd.Context(), args[0], args[1], metadata)
	if err != nil {
		return err
	}
	if id == "" {
		fmt.Println("Insights are disabled; nothing was added.")
		return nil
	}

	fmt.Printf("Added pattern %s\n", id)
	return nil
}

// parseMetadata converts repeated key=value flags into a map.
func parseMetadata(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	metadata := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid metadata %q, want key=value", pair)
		}
		metadata[key] = value
	}
	return metadata, nil
}
