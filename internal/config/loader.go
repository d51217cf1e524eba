// Package config provides configuration loading for insightd.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix         = "INSIGHTD_"
	maxConfigFileSize = 1024 * 1024 // 1MB
)

// Load loads configuration from an optional YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (INSIGHTD_INSIGHTS_REPORT_INTERVAL, INSIGHTD_STORE_PATH, ...)
//  2. YAML config file
//  3. Defaults
//
// If configPath is empty the default path ~/.config/insightd/config.yaml is
// used when it exists; a missing file is not an error.
//
// Environment variables are mapped by stripping the INSIGHTD_ prefix,
// lowercasing, and splitting on the first underscore:
//
//	INSIGHTD_INSIGHTS_REPORT_INTERVAL -> insights.report_interval
//	INSIGHTD_VECTORSTORE_PROVIDER     -> vectorstore.provider
//	INSIGHTD_SINK_URL                 -> sink.url
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			configPath = filepath.Join(home, ".config", "insightd", "config.yaml")
		}
	}

	if configPath != "" {
		if err := loadFile(k, configPath); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		// INSIGHTD_SECTION_FIELD_NAME -> section.field_name: the section is
		// everything before the first underscore, the rest keeps its
		// underscores as the field name.
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Booleans that default to true cannot be distinguished from an unset
	// zero value after unmarshaling, so consult the key set directly.
	if !k.Exists("insights.enabled") {
		cfg.Insights.Enabled = true
	}
	if !k.Exists("insights.auto_improve") {
		cfg.Insights.AutoImprove = true
	}
	if !k.Exists("vectorstore.chromem.compress") {
		cfg.VectorStore.Chromem.Compress = true
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFile reads and parses a YAML config file into k. A file that does not
// exist is skipped silently; an unreadable or oversized one is an error.
func loadFile(k *koanf.Koanf, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	// Validate file properties using the already-opened descriptor to avoid
	// a TOCTOU race between stat and read.
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateFileProperties(info); err != nil {
		return fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// validateFileProperties checks permissions and size of an existing file.
// The credential in sink.credential makes world-readable configs a hazard.
func validateFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm&0o077 != 0 {
			return fmt.Errorf("insecure config file permissions: %v (must not be group/world accessible)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}
