package llm

import (
	"fmt"
	"log/slog"

	"fingerbot/pkg/config"

	jsoniter "github.com/json-iterator/go"
)

// NewFromConfig 根據設定檔建立 Provider
// 多個 provider 會包裹在 fallback 鍊中，依序嘗試
func NewFromConfig(rawLLM jsoniter.RawMessage, system *config.SystemConfig) (Provider, error) {
	if rawLLM == nil {
		return nil, fmt.Errorf("missing 'llm' config")
	}

	var groups []ProviderGroupConfig
	if err := json.Unmarshal(rawLLM, &groups); err != nil {
		return nil, fmt.Errorf("failed to parse 'llm' config: %v", err)
	}

	var all []Provider
	for _, group := range groups {
		slog.Info("Loading LLM Group", "type", group.Type, "models", len(group.Models))

		factory, ok := GetProviderFactory(group.Type)
		if !ok {
			slog.Warn("⚠️ Unknown provider type", "type", group.Type)
			continue
		}

		providers, err := factory.Create(group, system)
		if err != nil {
			slog.Warn("⚠️ Failed to create providers", "type", group.Type, "error", err)
			continue
		}

		all = append(all, providers...)
	}

	if len(all) == 0 {
		return nil, fmt.Errorf("no LLM providers could be initialized")
	}

	slog.Info("✅ Total atomic LLM providers initialized", "count", len(all))

	// 如果只有一個，直接回傳
	if len(all) == 1 {
		return all[0], nil
	}

	return &fallbackProvider{providers: all}, nil
}
