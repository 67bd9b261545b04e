package config

// ProviderType identifies which LLM backend classifies tickets and turns.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
	// ProviderNone disables the classification collaborator entirely;
	// triage turns fail fast and ingestion falls back to the rule classifier.
	ProviderNone ProviderType = "none"
)

// Config is the full n1agent configuration.
type Config struct {
	Provider ProviderType `koanf:"provider" yaml:"provider"`
	Model    string       `koanf:"model" yaml:"model"`

	// OllamaHost is only consulted when Provider is "ollama".
	OllamaHost string `koanf:"ollama_host" yaml:"ollama_host"`

	Port    int    `koanf:"port" yaml:"port"`
	DataDir string `koanf:"data_dir" yaml:"data_dir"`

	// IngestSecret guards the ticket ingestion webhook.
	IngestSecret string `koanf:"ingest_secret" yaml:"ingest_secret"`

	// WebhookURL receives reminder/nudge/close notifications. Empty means
	// notifications are only logged.
	WebhookURL string `koanf:"webhook_url" yaml:"webhook_url"`

	Retrieval RetrievalConfig `koanf:"retrieval" yaml:"retrieval"`
	Triage    TriageConfig    `koanf:"triage" yaml:"triage"`
	Watchdog  WatchdogConfig  `koanf:"watchdog" yaml:"watchdog"`
}

// RetrievalConfig tunes the BM25 engine consumers.
type RetrievalConfig struct {
	// TopK is how many chunks a triage turn retrieves.
	TopK int `koanf:"top_k" yaml:"top_k"`
	// PriorAlpha scales feedback priors: score = bm25 * (1 + alpha*prior).
	PriorAlpha float64 `koanf:"prior_alpha" yaml:"prior_alpha"`
}

// TriageConfig tunes the orchestration of one conversational turn.
type TriageConfig struct {
	// ConfidenceThreshold: classifier results below this always become
	// ask_followup, regardless of the proposed action.
	ConfidenceThreshold float64 `koanf:"confidence_threshold" yaml:"confidence_threshold"`
	// TimeoutSeconds bounds one classification collaborator call.
	TimeoutSeconds int `koanf:"timeout_seconds" yaml:"timeout_seconds"`
}

// WatchdogConfig controls the follow-up scanner and the scheduling offsets.
// Offsets are minutes relative to the last agent activity.
type WatchdogConfig struct {
	Enabled         bool `koanf:"enabled" yaml:"enabled"`
	IntervalSeconds int  `koanf:"interval_seconds" yaml:"interval_seconds"`

	// Ticket-driven sessions: one reminder, then a final close.
	ReminderMinutes int `koanf:"reminder_minutes" yaml:"reminder_minutes"`
	TimeoutMinutes  int `koanf:"timeout_minutes" yaml:"timeout_minutes"`

	// Chat-driven sessions: staged nudges, then a final close.
	Nudge1Minutes     int `koanf:"nudge1_minutes" yaml:"nudge1_minutes"`
	Nudge2Minutes     int `koanf:"nudge2_minutes" yaml:"nudge2_minutes"`
	FinalCloseMinutes int `koanf:"final_close_minutes" yaml:"final_close_minutes"`
}
