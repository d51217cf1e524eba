package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var clearYes bool

func init() {
	rootCmd.AddCommand(clearCmd)
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "skip the confirmation prompt")
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every entry in the knowledge index",
	Long: `Delete all indexed interactions and patterns. The durable
conversation log is untouched; only semantic retrieval resets.`,
	RunE: runClear,
}

func runClear(cmd *cobra.Command, args []string) error {
	if !clearYes {
		fmt.Print("This deletes every knowledge index entry. Continue? [y/N] ")
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.manager.ClearKnowledge(cmd.Context()); err != nil {
		return err
	}

	fmt.Println("Knowledge index cleared.")
	return nil
}
