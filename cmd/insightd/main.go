// Package main implements the insightd CLI for voice-agent conversation
// analytics: logging turns, searching past interactions, and generating
// improvement reports.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/insightd/internal/config"
	"github.com/fyrsmithlabs/insightd/internal/insight"
	"github.com/fyrsmithlabs/insightd/internal/telemetry"
)

var (
	// global flags
	configPath string
	logLevel   string
	dataDir    string

	// version is set via ldflags during build.
	version = "dev"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "insightd",
	Short: "Conversation analytics for voice agents",
	Long: `insightd records voice-agent conversation turns, indexes them for
semantic retrieval, and turns the accumulated history into performance
reports and improvement suggestions.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/insightd/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for the conversation log and knowledge index")
}

// app bundles what every command builds before doing work.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	tel     *telemetry.Telemetry
	manager *insight.Manager
}

// newApp loads configuration, applies flag overrides, and wires the logger,
// telemetry, and the insight manager.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	applyFlagOverrides(cfg)

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.New(ctx, cfg.Telemetry, version)
	if err != nil {
		logger.Warn("telemetry export unavailable", zap.Error(err))
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		tel:     tel,
		manager: insight.NewManager(cfg, logger),
	}, nil
}

// applyFlagOverrides lets global flags win over file and environment values.
func applyFlagOverrides(cfg *config.Config) {
	if dataDir != "" {
		cfg.Store.Path = filepath.Join(dataDir, "conversations.db")
		cfg.VectorStore.Chromem.Path = filepath.Join(dataDir, "knowledge")
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
}

// close releases app resources in dependency order.
func (a *app) close() {
	if err := a.manager.Close(); err != nil {
		a.logger.Warn("manager close failed", zap.Error(err))
	}
	if err := a.tel.Shutdown(context.Background()); err != nil {
		a.logger.Warn("telemetry shutdown failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// newLogger builds the CLI logger. Both encoders write to stderr, keeping
// stdout clean for command output.
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// outputJSON renders v as indented JSON on stdout.
func outputJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// degradeError turns a degraded read status into a command error.
func degradeError(status string) error {
	if status == insight.StatusDisabled {
		return errors.New("insights are disabled")
	}
	return errors.New("insight storage is unavailable, check logs for details")
}
