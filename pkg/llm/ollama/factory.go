package ollama

import (
	"log/slog"

	"fingerbot/pkg/config"
	"fingerbot/pkg/llm"
)

// OllamaFactory handles creation of Ollama providers.
type OllamaFactory struct{}

// Create implements ProviderFactory
func (f *OllamaFactory) Create(cfg llm.ProviderGroupConfig, sys *config.SystemConfig) ([]llm.Provider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sys.OllamaDefaultURL
	}

	var providers []llm.Provider
	for _, model := range cfg.Models {
		client, err := NewOllamaClient(model, baseURL, cfg.Options)
		if err != nil {
			slog.Error("Failed to create Ollama client", "model", model, "error", err)
			continue
		}
		providers = append(providers, client)
	}
	return providers, nil
}

func init() {
	llm.RegisterProvider("ollama", &OllamaFactory{})
}
