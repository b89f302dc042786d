package llm

import (
	"context"

	jsoniter "github.com/json-iterator/go"
)

// json 用於 package llm 內部的 JSON 處理，統一使用 json-iterator
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Completion 是一次模型呼叫的原始結果
type Completion struct {
	Text       string // the raw text returned by the model
	TokensUsed int    // total token estimate reported by the backend (0 when unknown)
}

// Provider 通用 LLM 供應商介面
// The secret is passed per call so the credential pool can rotate keys
// without rebuilding providers; providers cache their SDK clients per secret.
type Provider interface {
	// Name 回傳供應商識別 (e.g. "openai/gpt-4o")
	Name() string

	// Complete 以指定的憑證執行一次非串流補全
	Complete(ctx context.Context, secret, prompt string) (*Completion, error)
}

// fallbackProvider 支援多個 Provider 分級嘗試
// 每次呼叫依序嘗試，回傳第一個成功結果
type fallbackProvider struct {
	providers []Provider
}

func (f *fallbackProvider) Name() string {
	if len(f.providers) > 0 {
		return f.providers[0].Name() + "+fallback"
	}
	return "fallback"
}

func (f *fallbackProvider) Complete(ctx context.Context, secret, prompt string) (*Completion, error) {
	var lastErr error
	for _, p := range f.providers {
		result, err := p.Complete(ctx, secret, prompt)
		if err == nil {
			return result, nil
		}
		lastErr = err
		// 非暫時性錯誤直接往外拋，讓上層決定是否換 key
		if kind := Classify(err); kind != KindTransient {
			return nil, err
		}
	}
	return nil, lastErr
}
