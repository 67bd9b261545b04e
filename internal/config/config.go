package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (N1AGENT_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: N1AGENT_PROVIDER -> provider,
	// N1AGENT_WATCHDOG__ENABLED -> watchdog.enabled, etc.
	if err := k.Load(env.Provider("N1AGENT_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "N1AGENT_"))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderOllama: true,
	ProviderNone:   true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of openai, ollama, none", c.Provider)
	}

	if c.Provider != ProviderNone && c.Model == "" {
		return fmt.Errorf("model is required when a provider is configured")
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in 1..65535")
	}

	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive")
	}

	if c.Triage.ConfidenceThreshold < 0 || c.Triage.ConfidenceThreshold > 1 {
		return fmt.Errorf("triage.confidence_threshold must be in [0,1]")
	}

	if c.Watchdog.IntervalSeconds <= 0 {
		return fmt.Errorf("watchdog.interval_seconds must be positive")
	}

	for name, v := range map[string]int{
		"watchdog.reminder_minutes":    c.Watchdog.ReminderMinutes,
		"watchdog.timeout_minutes":     c.Watchdog.TimeoutMinutes,
		"watchdog.nudge1_minutes":      c.Watchdog.Nudge1Minutes,
		"watchdog.nudge2_minutes":      c.Watchdog.Nudge2Minutes,
		"watchdog.final_close_minutes": c.Watchdog.FinalCloseMinutes,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if c.Watchdog.ReminderMinutes >= c.Watchdog.TimeoutMinutes {
		return fmt.Errorf("watchdog.reminder_minutes must be before watchdog.timeout_minutes")
	}
	if !(c.Watchdog.Nudge1Minutes < c.Watchdog.Nudge2Minutes && c.Watchdog.Nudge2Minutes < c.Watchdog.FinalCloseMinutes) {
		return fmt.Errorf("watchdog nudge offsets must be strictly increasing")
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	if provider == ProviderOpenAI {
		return "OPENAI_API_KEY"
	}
	return ""
}
