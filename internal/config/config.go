// Package config holds all muse configuration, loaded from YAML with
// environment fallbacks. Configuration is passed explicitly at construction
// time; there is no package-level singleton.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"muse/internal/pricing"
)

// Config holds all muse configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM provider configuration
	LLM LLMConfig `yaml:"llm"`

	// Cognitive defaults (thinking shape)
	Cognition CognitionConfig `yaml:"cognition"`

	// Record archive
	Archive ArchiveConfig `yaml:"archive"`

	// Pricing table overrides, keyed by model
	Pricing map[string]pricing.CostModel `yaml:"pricing,omitempty"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the outbound provider client.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`

	// EmbeddingModel is used by the embedding faculty.
	EmbeddingModel string `yaml:"embedding_model"`

	// MaxConcurrentCalls caps in-flight generate calls at the gateway.
	MaxConcurrentCalls int `yaml:"max_concurrent_calls"`
}

// CognitionConfig holds the default thinking shape for an agent's mind.
type CognitionConfig struct {
	// SystemInstruction is the shared persona instruction sent with every call.
	SystemInstruction string `yaml:"system_instruction"`

	// ThoughtSpeed selects the default model when no override is given.
	ThoughtSpeed string `yaml:"thought_speed"`

	// IncludeTrace requests the provider's reasoning trace. Clarity is only
	// meaningful when this is set.
	IncludeTrace bool `yaml:"include_trace"`

	// Clarity is the qualitative reasoning-effort level:
	// instinct, glimmer, focused, lucid, piercing.
	Clarity string `yaml:"clarity"`

	// GrowthIterations is the default iteration count for narrative growth.
	GrowthIterations int `yaml:"growth_iterations"`
}

// ArchiveConfig configures the record persistence sink.
type ArchiveConfig struct {
	// Root directory for persisted records; kind subdirectories are created
	// on demand.
	Root string `yaml:"root"`

	// IndexPath is the SQLite index database path.
	IndexPath string `yaml:"index_path"`
}

// LoggingConfig configures categorized debug logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories,omitempty"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// Default returns a config with sensible defaults for the given workspace.
func Default(workspace string) *Config {
	return &Config{
		Name:    "muse",
		Version: "0.1.0",
		LLM: LLMConfig{
			Provider:           "gemini",
			Model:              "gemini-2.5-flash",
			BaseURL:            "https://generativelanguage.googleapis.com/v1beta",
			Timeout:            "10m",
			EmbeddingModel:     "gemini-embedding-001",
			MaxConcurrentCalls: 4,
		},
		Cognition: CognitionConfig{
			SystemInstruction: "You are a reflective writing agent. Ground every response in the provided material.",
			ThoughtSpeed:      "gemini-2.5-flash",
			IncludeTrace:      false,
			Clarity:           "focused",
			GrowthIterations:  1,
		},
		Archive: ArchiveConfig{
			Root:      filepath.Join(workspace, ".muse", "archive"),
			IndexPath: filepath.Join(workspace, ".muse", "archive", "index.db"),
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Path returns the canonical config file location for a workspace.
func Path(workspace string) string {
	return filepath.Join(workspace, ".muse", "config.yaml")
}

// Load reads the config file at path, applying defaults for absent fields
// and the GEMINI_API_KEY environment fallback.
func Load(path string) (*Config, error) {
	cfg := Default(filepath.Dir(filepath.Dir(path)))

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// Save writes the config to path, creating parent directories on demand.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ProviderTimeout parses the LLM timeout string, defaulting to 10 minutes.
func (c *Config) ProviderTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// PricingTable returns the default rate table merged with any overrides.
func (c *Config) PricingTable() pricing.Table {
	table := pricing.DefaultTable()
	for key, model := range c.Pricing {
		table[key] = model
	}
	return table
}

func (c *Config) applyEnv() {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
	}
}
