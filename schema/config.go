package schema

import (
	"errors"
	"time"
)

// PlaygroundConfig defines orchestration policy for every playground.
type PlaygroundConfig struct {
	// DebounceDelay is the coalescing window for definition and sample updates.
	DebounceDelay time.Duration
	// HandshakeTimeout bounds the worker handshake. Zero waits without limit.
	HandshakeTimeout time.Duration
	// DisposeTimeout bounds stopping a client during disposal. Zero waits without limit.
	DisposeTimeout time.Duration
	// DefaultGrammar seeds playgrounds created without a grammar.
	DefaultGrammar string
	// DefaultContent seeds playgrounds created without content.
	DefaultContent string
	// StateDir enables snapshot persistence when set.
	StateDir string
	// BaseURL is used to build share links.
	BaseURL string
}

// DefaultDebounceDelay is the coalescing window used when none is configured.
const DefaultDebounceDelay = 150 * time.Millisecond

// DefaultGrammar is a minimal grammar used when a playground starts empty.
const DefaultGrammar = `Model = { Greeting } .
Greeting = "Hello" name "!" .
name = letter { letter | digit | "_" } .
letter = "a" … "z" | "A" … "Z" .
digit = "0" … "9" .
`

// DefaultContent is a program matching DefaultGrammar.
const DefaultContent = `Hello World!
Hello Langpad!
`

// NormalizePlaygroundConfig applies defaults and validates the config.
func NormalizePlaygroundConfig(cfg PlaygroundConfig) (PlaygroundConfig, error) {
	if cfg.DebounceDelay == 0 {
		cfg.DebounceDelay = DefaultDebounceDelay
	}
	if cfg.DebounceDelay < 0 {
		return PlaygroundConfig{}, errors.New("debounce delay must not be negative")
	}
	if cfg.HandshakeTimeout < 0 {
		return PlaygroundConfig{}, errors.New("handshake timeout must not be negative")
	}
	if cfg.DisposeTimeout < 0 {
		return PlaygroundConfig{}, errors.New("dispose timeout must not be negative")
	}
	if cfg.DefaultGrammar == "" {
		cfg.DefaultGrammar = DefaultGrammar
	}
	if cfg.DefaultContent == "" {
		cfg.DefaultContent = DefaultContent
	}
	return cfg, nil
}
