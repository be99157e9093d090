// Package llm provides the language-model provider abstraction and the
// concurrent multi-provider scoring dispatcher.
package llm

import (
	"fmt"
	"time"
)

// Mode selects how results from multiple providers are combined
type Mode string

const (
	// ModeSingle queries only the first configured provider
	ModeSingle Mode = "single"
	// ModeEnsemble waits for every provider and averages the successes
	ModeEnsemble Mode = "ensemble"
	// ModeRace returns the first success and cancels the rest
	ModeRace Mode = "race"
)

// Provider identifies a language-model vendor
type Provider string

const (
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
	// ProviderOpenAI is the OpenAI provider (future)
	ProviderOpenAI Provider = "openai"
	// ProviderAnthropic is the Anthropic/Claude provider (future)
	ProviderAnthropic Provider = "anthropic"
)

// ProviderSpec configures one provider slot in the dispatcher
type ProviderSpec struct {
	Name     string   `json:"name" validate:"required"`
	Provider Provider `json:"provider" validate:"required"`
	Model    string   `json:"model" validate:"required"`
	APIKey   string   `json:"-"`
}

// Config holds dispatcher configuration. Build once at startup and treat as
// immutable afterwards.
type Config struct {
	Mode Mode `json:"mode" validate:"oneof=single ensemble race"`
	// ProviderTimeout bounds each provider call; a provider exceeding it
	// fails without affecting its siblings.
	ProviderTimeout time.Duration `json:"provider_timeout"`
	Providers       []ProviderSpec
}

// DefaultConfig returns a single-provider Gemini configuration
func DefaultConfig(apiKey string) Config {
	return Config{
		Mode:            ModeSingle,
		ProviderTimeout: 60 * time.Second,
		Providers: []ProviderSpec{
			{Name: "gemini-flash", Provider: ProviderGemini, Model: "gemini-2.5-flash", APIKey: apiKey},
		},
	}
}

// Validate checks the configuration is usable
func (c Config) Validate() error {
	switch c.Mode {
	case ModeSingle, ModeEnsemble, ModeRace:
	default:
		return fmt.Errorf("unknown aggregation mode %q", c.Mode)
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}
	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.Name == "" || p.Model == "" {
			return fmt.Errorf("provider entries need both name and model")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("provider timeout must be positive")
	}
	return nil
}
