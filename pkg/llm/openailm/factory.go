package openailm

import (
	"fingerbot/pkg/config"
	"fingerbot/pkg/llm"
)

// OpenAIFactory handles creation of OpenAI-compatible providers.
type OpenAIFactory struct{}

// Create implements ProviderFactory
func (f *OpenAIFactory) Create(cfg llm.ProviderGroupConfig, sys *config.SystemConfig) ([]llm.Provider, error) {
	var providers []llm.Provider
	for _, model := range cfg.Models {
		providers = append(providers, NewClient("openai", model, cfg.BaseURL, cfg.Options))
	}
	return providers, nil
}

func init() {
	llm.RegisterProvider("openai", &OpenAIFactory{})
}
