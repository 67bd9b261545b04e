package config

import (
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to the given path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to n1agent! Let's configure your support assistant.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select classification provider",
		Items: []string{"openai", "ollama", "none"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Provider = ProviderType(providerStr)

	// 2. Model name.
	if cfg.Provider != ProviderNone {
		defaultModel := "gpt-4o-mini"
		if cfg.Provider == ProviderOllama {
			defaultModel = "llama3.1"
		}
		modelPrompt := promptui.Prompt{
			Label:   "Model",
			Default: defaultModel,
		}
		model, err := modelPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("model selection: %w", err)
		}
		cfg.Model = model
	}

	// 3. HTTP port.
	portPrompt := promptui.Prompt{
		Label:   "HTTP port",
		Default: strconv.Itoa(cfg.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 65535 {
				return fmt.Errorf("invalid port")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port selection: %w", err)
	}
	cfg.Port, _ = strconv.Atoi(portStr)

	// 4. Notification webhook (optional).
	webhookPrompt := promptui.Prompt{
		Label:   "Notification webhook URL (empty to log only)",
		Default: "",
	}
	webhook, err := webhookPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("webhook selection: %w", err)
	}
	cfg.WebhookURL = webhook

	// 5. Watchdog toggle.
	watchdogPrompt := promptui.Select{
		Label: "Enable the follow-up watchdog",
		Items: []string{"yes", "no"},
	}
	_, wd, err := watchdogPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("watchdog selection: %w", err)
	}
	cfg.Watchdog.Enabled = wd == "yes"

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(path); err != nil {
		return nil, err
	}
	fmt.Printf("\nConfiguration saved to %s\n", path)
	if envVar := APIKeyEnvVar(cfg.Provider); envVar != "" {
		fmt.Printf("Remember to export %s before starting the server.\n", envVar)
	}
	return cfg, nil
}
