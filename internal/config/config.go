package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap/zapcore"
)

// ErrInvalidConfig indicates a configuration value that fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the root configuration for insightd.
//
// Values are resolved in precedence order: environment variables
// (INSIGHTD_SECTION_FIELD), then the YAML config file, then defaults.
type Config struct {
	Insights    InsightsConfig    `koanf:"insights"`
	Store       StoreConfig       `koanf:"store"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Log         LogConfig         `koanf:"log"`
	Sink        SinkConfig        `koanf:"sink"`
}

// InsightsConfig controls the analytics subsystem itself.
type InsightsConfig struct {
	// Enabled turns the whole subsystem on or off. When false every
	// operation is a no-op. Default: true.
	Enabled bool `koanf:"enabled"`

	// AutoImprove schedules a background improvement report every
	// ReportInterval logged turns. Default: true.
	AutoImprove bool `koanf:"auto_improve"`

	// ReportInterval is the number of logged turns between scheduled
	// background reports. Default: 100.
	ReportInterval int `koanf:"report_interval"`
}

// StoreConfig configures the durable conversation log.
type StoreConfig struct {
	// Path is the SQLite database file. Default: <data dir>/conversations.db.
	Path string `koanf:"path"`
}

// EmbeddingsConfig configures embedding generation.
type EmbeddingsConfig struct {
	// Provider selects the embedding backend: "fastembed" (local ONNX,
	// default) or "tei" (HTTP text-embeddings-inference server).
	Provider string `koanf:"provider"`

	// Model is the embedding model identifier.
	// Default: "all-MiniLM-L6-v2" (384 dimensions).
	Model string `koanf:"model"`

	// CacheDir is where fastembed stores downloaded model files.
	CacheDir string `koanf:"cache_dir"`

	// BaseURL is the TEI server endpoint, e.g. http://localhost:8080.
	// Required when Provider is "tei".
	BaseURL string `koanf:"base_url"`

	// Timeout bounds a single embedding request. Default: 30s.
	Timeout Duration `koanf:"timeout"`
}

// VectorStoreConfig selects and configures the vector index backend.
type VectorStoreConfig struct {
	// Provider selects the backend: "chromem" (embedded, default) or
	// "qdrant" (external server over gRPC).
	Provider string `koanf:"provider"`

	Chromem ChromemConfig `koanf:"chromem"`
	Qdrant  QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig configures the embedded chromem backend.
type ChromemConfig struct {
	// Path is the directory the index is persisted to.
	// Default: <data dir>/knowledge.
	Path string `koanf:"path"`

	// Collection is the collection name. Default: "voice_agent_knowledge".
	Collection string `koanf:"collection"`

	// Compress enables gzip compression of persisted entries. Default: true.
	Compress bool `koanf:"compress"`
}

// QdrantConfig configures the Qdrant backend (gRPC port, not HTTP).
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	Collection string `koanf:"collection"`
	UseTLS     bool   `koanf:"use_tls"`
}

// TelemetryConfig configures OTLP trace and metric export.
type TelemetryConfig struct {
	// Enabled turns OTLP export on. When false the global no-op
	// providers stay in place. Default: false.
	Enabled bool `koanf:"enabled"`

	// Endpoint is the OTLP collector address (host:port).
	Endpoint string `koanf:"endpoint"`

	// Protocol is "grpc" (default) or "http/protobuf".
	Protocol string `koanf:"protocol"`

	// Insecure disables TLS on the exporter connection.
	Insecure bool `koanf:"insecure"`

	// SampleRate is the trace sampling ratio in [0, 1]. Default: 1.0.
	SampleRate float64 `koanf:"sample_rate"`

	// MetricsInterval is the metric export period. Default: 30s.
	MetricsInterval Duration `koanf:"metrics_interval"`
}

// LogConfig configures the zap logger built by the CLI.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `koanf:"level"`

	// Development switches to the human-readable development encoder.
	Development bool `koanf:"development"`
}

// SinkConfig carries the optional downstream persistence collaborator
// settings. The core never uses these; the surrounding application may
// wire its own sink when both values are present.
type SinkConfig struct {
	URL        string `koanf:"url"`
	Credential Secret `koanf:"credential"`
}

// Configured reports whether both sink settings are present.
func (s SinkConfig) Configured() bool {
	return s.URL != "" && s.Credential.IsSet()
}

// DefaultDataDir returns the base directory for insightd state files.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "insightd-data"
	}
	return filepath.Join(home, ".local", "share", "insightd")
}

// ApplyDefaults fills unset fields with their documented defaults.
// Tri-state booleans (enabled, auto_improve, compress) are handled by the
// loader, which knows whether a key was explicitly provided.
func (c *Config) ApplyDefaults() {
	dataDir := DefaultDataDir()

	if c.Insights.ReportInterval == 0 {
		c.Insights.ReportInterval = 100
	}

	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(dataDir, "conversations.db")
	}

	if c.Embeddings.Provider == "" {
		c.Embeddings.Provider = "fastembed"
	}
	if c.Embeddings.Model == "" {
		c.Embeddings.Model = "all-MiniLM-L6-v2"
	}
	if c.Embeddings.Timeout == 0 {
		c.Embeddings.Timeout = Duration(30 * time.Second)
	}

	if c.VectorStore.Provider == "" {
		c.VectorStore.Provider = "chromem"
	}
	if c.VectorStore.Chromem.Path == "" {
		c.VectorStore.Chromem.Path = filepath.Join(dataDir, "knowledge")
	}
	if c.VectorStore.Chromem.Collection == "" {
		c.VectorStore.Chromem.Collection = "voice_agent_knowledge"
	}
	if c.VectorStore.Qdrant.Host == "" {
		c.VectorStore.Qdrant.Host = "localhost"
	}
	if c.VectorStore.Qdrant.Port == 0 {
		c.VectorStore.Qdrant.Port = 6334
	}
	if c.VectorStore.Qdrant.Collection == "" {
		c.VectorStore.Qdrant.Collection = "voice_agent_knowledge"
	}

	if c.Telemetry.Protocol == "" {
		c.Telemetry.Protocol = "grpc"
	}
	if c.Telemetry.SampleRate == 0 {
		c.Telemetry.SampleRate = 1.0
	}
	if c.Telemetry.MetricsInterval == 0 {
		c.Telemetry.MetricsInterval = Duration(30 * time.Second)
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the configuration for values no component can run with.
func (c *Config) Validate() error {
	if c.Insights.ReportInterval <= 0 {
		return fmt.Errorf("%w: insights.report_interval must be positive, got %d",
			ErrInvalidConfig, c.Insights.ReportInterval)
	}

	switch c.Embeddings.Provider {
	case "fastembed":
	case "tei":
		if c.Embeddings.BaseURL == "" {
			return fmt.Errorf("%w: embeddings.base_url required for tei provider", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported embeddings provider: %s (supported: fastembed, tei)",
			ErrInvalidConfig, c.Embeddings.Provider)
	}

	switch c.VectorStore.Provider {
	case "chromem":
		if c.VectorStore.Chromem.Path == "" {
			return fmt.Errorf("%w: vectorstore.chromem.path required", ErrInvalidConfig)
		}
	case "qdrant":
		if c.VectorStore.Qdrant.Host == "" {
			return fmt.Errorf("%w: vectorstore.qdrant.host required", ErrInvalidConfig)
		}
		if c.VectorStore.Qdrant.Port <= 0 || c.VectorStore.Qdrant.Port > 65535 {
			return fmt.Errorf("%w: invalid qdrant port: %d", ErrInvalidConfig, c.VectorStore.Qdrant.Port)
		}
	default:
		return fmt.Errorf("%w: unsupported vectorstore provider: %s (supported: chromem, qdrant)",
			ErrInvalidConfig, c.VectorStore.Provider)
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("%w: telemetry.endpoint required when telemetry is enabled", ErrInvalidConfig)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("%w: telemetry.sample_rate must be in [0, 1], got %v",
			ErrInvalidConfig, c.Telemetry.SampleRate)
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Log.Level)
	}

	return nil
}
