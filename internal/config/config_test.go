package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Watchdog.Nudge1Minutes != 10 || cfg.Watchdog.Nudge2Minutes != 25 || cfg.Watchdog.FinalCloseMinutes != 85 {
		t.Errorf("unexpected default nudge offsets: %+v", cfg.Watchdog)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 || cfg.Provider != ProviderOpenAI {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadFileAndSaveRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "n1agent.yml")

	cfg := DefaultConfig()
	cfg.Provider = ProviderOllama
	cfg.Model = "llama3.1"
	cfg.Port = 9090
	cfg.Watchdog.Nudge1Minutes = 5
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Provider != ProviderOllama || loaded.Model != "llama3.1" || loaded.Port != 9090 {
		t.Errorf("file values lost: %+v", loaded)
	}
	if loaded.Watchdog.Nudge1Minutes != 5 {
		t.Errorf("nested value lost: %+v", loaded.Watchdog)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("N1AGENT_PORT", "3000")
	t.Setenv("N1AGENT_WATCHDOG__ENABLED", "false")
	t.Setenv("N1AGENT_RETRIEVAL__TOP_K", "10")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 3000 {
		t.Errorf("env port override lost: %d", cfg.Port)
	}
	if cfg.Watchdog.Enabled {
		t.Error("env watchdog override lost")
	}
	if cfg.Retrieval.TopK != 10 {
		t.Errorf("env top_k override lost: %d", cfg.Retrieval.TopK)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"empty provider":       func(c *Config) { c.Provider = "" },
		"unknown provider":     func(c *Config) { c.Provider = "claude" },
		"missing model":        func(c *Config) { c.Model = "" },
		"bad port":             func(c *Config) { c.Port = 0 },
		"bad top_k":            func(c *Config) { c.Retrieval.TopK = 0 },
		"threshold over one":   func(c *Config) { c.Triage.ConfidenceThreshold = 1.5 },
		"reminder after close": func(c *Config) { c.Watchdog.ReminderMinutes = 90 },
		"nudges not ascending": func(c *Config) { c.Watchdog.Nudge2Minutes = 5 },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected a validation error", name)
		}
	}
}

func TestValidateProviderNoneNeedsNoModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = ProviderNone
	cfg.Model = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("provider none should not require a model: %v", err)
	}
}

func TestSaveWritesReadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yml")
	if err := DefaultConfig().Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(data) == 0 {
		t.Error("saved config is empty")
	}
}
