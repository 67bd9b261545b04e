package config

// DefaultConfig returns the configuration used when no file or environment
// override is present. The follow-up offsets mirror the production flow:
// nudges at +10 and +25 minutes, final close at +85.
func DefaultConfig() *Config {
	return &Config{
		Provider:   ProviderOpenAI,
		Model:      "gpt-4o-mini",
		OllamaHost: "http://localhost:11434",
		Port:       8080,
		DataDir:    ".n1agent",
		Retrieval: RetrievalConfig{
			TopK:       6,
			PriorAlpha: 0.3,
		},
		Triage: TriageConfig{
			ConfidenceThreshold: 0.5,
			TimeoutSeconds:      30,
		},
		Watchdog: WatchdogConfig{
			Enabled:           true,
			IntervalSeconds:   60,
			ReminderMinutes:   15,
			TimeoutMinutes:    60,
			Nudge1Minutes:     10,
			Nudge2Minutes:     25,
			FinalCloseMinutes: 85,
		},
	}
}
