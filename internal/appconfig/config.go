package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/langpad/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int              `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string           `mapstructure:"state_dir" yaml:"state_dir"`
	Playground    PlaygroundConfig `mapstructure:"playground" yaml:"playground"`
	HTTP          HTTPConfig       `mapstructure:"http" yaml:"http"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// PlaygroundConfig controls orchestration timing and seed documents.
type PlaygroundConfig struct {
	DebounceMS         int    `mapstructure:"debounce_ms" yaml:"debounce_ms"`
	HandshakeTimeoutMS int    `mapstructure:"handshake_timeout_ms" yaml:"handshake_timeout_ms"`
	DisposeTimeoutMS   int    `mapstructure:"dispose_timeout_ms" yaml:"dispose_timeout_ms"`
	DefaultGrammar     string `mapstructure:"default_grammar" yaml:"default_grammar"`
	DefaultContent     string `mapstructure:"default_content" yaml:"default_content"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr       string `mapstructure:"addr" yaml:"addr"`
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	BasePath   string `mapstructure:"base_path" yaml:"base_path"`
	HubHistory int    `mapstructure:"hub_history" yaml:"hub_history"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".langpad", "state"),
		Playground: PlaygroundConfig{
			DebounceMS:         int(schema.DefaultDebounceDelay / time.Millisecond),
			HandshakeTimeoutMS: 0,
			DisposeTimeoutMS:   2000,
			DefaultGrammar:     schema.DefaultGrammar,
			DefaultContent:     schema.DefaultContent,
		},
		HTTP: HTTPConfig{
			Addr:       ":27490",
			BaseURL:    "",
			BasePath:   "",
			HubHistory: 500,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".langpad", "config.yaml"), nil
}

// PlaygroundSettings converts the file config into the orchestration policy.
func (c Config) PlaygroundSettings() schema.PlaygroundConfig {
	return schema.PlaygroundConfig{
		DebounceDelay:    time.Duration(c.Playground.DebounceMS) * time.Millisecond,
		HandshakeTimeout: time.Duration(c.Playground.HandshakeTimeoutMS) * time.Millisecond,
		DisposeTimeout:   time.Duration(c.Playground.DisposeTimeoutMS) * time.Millisecond,
		DefaultGrammar:   c.Playground.DefaultGrammar,
		DefaultContent:   c.Playground.DefaultContent,
		StateDir:         c.StateDir,
		BaseURL:          c.HTTP.BaseURL,
	}
}
