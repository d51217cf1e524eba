package main

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/insightd/internal/insight"
)

var (
	demoSessions int
	demoTurns    int
)

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().IntVar(&demoSessions, "sessions", 4, "number of concurrent sessions to simulate")
	demoCmd.Flags().IntVar(&demoTurns, "turns", 6, "turns per session")
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Simulate voice-agent sessions and print the resulting report",
	Long: `Simulate concurrent voice-agent sessions against the real stores.

Each session logs a sequence of canned conversation turns, including the
occasional pipeline failure, exactly as a live agent would. Afterwards the
command shows instruction enhancement in action and prints the performance
report for the last day.

Examples:
  # Run with defaults (4 sessions x 6 turns) in a scratch directory
  insightd demo --data-dir /tmp/insightd-demo

  # A longer run that crosses the report interval
  insightd demo --sessions 10 --turns 25`,
	RunE: runDemo,
}

// demoInstructions is the base prompt the enhancement step builds on.
const demoInstructions = "You are a helpful voice AI assistant. Your responses are concise and free of formatting."

// demoExchanges are the canned turns a simulated session cycles through.
var demoExchanges = []struct {
	user   string
	agent  string
	baseMS float64
}{
	{"What's the weather like today?", "It is sunny and seventy two degrees right now.", 740},
	{"Set a timer for ten minutes.", "Done. Your ten minute timer starts now.", 420},
	{"Remind me to call the dentist tomorrow at nine.", "I will remind you tomorrow at nine in the morning.", 510},
	{"How long is my commute right now?", "Traffic is light. About eighteen minutes to the office.", 880},
	{"Play some jazz in the living room.", "Playing jazz on the living room speaker.", 460},
	{"What's on my calendar this afternoon?", "You have a design review at two and a one on one at four.", 630},
	{"Turn off the kitchen lights.", "Kitchen lights are off.", 350},
	{"How do I say good morning in French?", "Good morning in French is bonjour.", 590},
}

// demoFailures are the pipeline errors injected on failing turns.
var demoFailures = []string{
	"LLM timeout: provider did not respond within 10s",
	"TTS synthesis failed: voice unavailable",
	"STT stream disconnected",
}

// demoTurn builds the i-th simulated turn of a session. Every fifth turn
// fails with a canned pipeline error instead of an agent response.
func demoTurn(sessionID string, i int) insight.TurnInput {
	ex := demoExchanges[i%len(demoExchanges)]
	turn := insight.TurnInput{
		SessionID:      sessionID,
		UserMessage:    ex.user,
		AgentResponse:  ex.agent,
		ResponseTimeMS: ex.baseMS + rand.Float64()*400,
		RoomName:       "demo-room",
		Success:        true,
		Metadata: map[string]string{
			"stt_model": "assemblyai/universal-streaming",
			"llm_model": "openai/gpt-4.1-mini",
			"tts_model": "cartesia/sonic-3",
		},
	}
	if (i+1)%5 == 0 {
		turn.Success = false
		turn.AgentResponse = ""
		turn.ErrorMessage = demoFailures[(i/5)%len(demoFailures)]
	}
	return turn
}

func runDemo(cmd *cobra.Command, args []string) error {
	if demoSessions < 1 || demoTurns < 1 {
		return errors.New("sessions and turns must be positive")
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	if !a.cfg.Insights.Enabled {
		return errors.New("insights are disabled, nothing to demo")
	}

	a.logger.Info("starting demo",
		zap.Int("sessions", demoSessions),
		zap.Int("turns", demoTurns))

	g, ctx := errgroup.WithContext(cmd.Context())
	for i := 0; i < demoSessions; i++ {
		sessionID := "session_" + uuid.New().String()[:8]
		g.Go(func() error {
			for turn := 0; turn < demoTurns; turn++ {
				result, err := a.manager.LogTurn(ctx, demoTurn(sessionID, turn))
				if err != nil {
					return fmt.Errorf("session %s turn %d: %w", sessionID, turn+1, err)
				}
				a.logger.Debug("turn logged",
					zap.String("session_id", sessionID),
					zap.Int64("record_id", result.RecordID),
					zap.Bool("indexed", result.Indexed))
			}
			a.logger.Info("session complete", zap.String("session_id", sessionID))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// The call an agent makes at session start: base instructions enriched
	// with relevant history.
	enhanced := a.manager.EnhanceInstructions(cmd.Context(), demoInstructions, "set a timer")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("ENHANCED INSTRUCTIONS")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println(enhanced)

	report := a.manager.PerformanceReport(cmd.Context(), 1)
	if report.Status != "" {
		return degradeError(report.Status)
	}
	fmt.Println()
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("PERFORMANCE REPORT (last day)")
	fmt.Println(strings.Repeat("=", 60))
	printReport(report)
	return nil
}
