package gemini

import (
	"fingerbot/pkg/config"
	"fingerbot/pkg/llm"
)

// GeminiFactory handles creation of Gemini providers.
type GeminiFactory struct{}

// Create implements ProviderFactory
func (f *GeminiFactory) Create(cfg llm.ProviderGroupConfig, sys *config.SystemConfig) ([]llm.Provider, error) {
	var providers []llm.Provider
	for _, model := range cfg.Models {
		providers = append(providers, NewGeminiClient(model))
	}
	return providers, nil
}

func init() {
	llm.RegisterProvider("gemini", &GeminiFactory{})
}
