package llm

import (
	"fmt"
	"os"

	"github.com/helpdeskbr/n1agent/internal/config"
)

// NewProvider creates the classification provider selected by the
// configuration. Returns (nil, nil) for ProviderNone: callers treat a nil
// provider as "collaborator unavailable".
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return NewOpenAIProvider(apiKey, cfg.Model), nil

	case config.ProviderOllama:
		host := cfg.OllamaHost
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOllamaProvider(host, cfg.Model), nil

	case config.ProviderNone:
		return nil, nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Provider)
	}
}
