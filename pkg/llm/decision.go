package llm

import (
	"fmt"
	"strings"
)

// Decision 是一次模型呼叫解析後的結果
// Reply=true 時 Messages 非空，否則 Reason 說明沉默原因
type Decision struct {
	Reply    bool     `json:"reply"`
	Messages []string `json:"messages,omitempty"`
	Thinking string   `json:"thinking,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Mentions []string `json:"mentions,omitempty"`

	// TokensUsed is the backend's token estimate for the whole logical call
	// (including any reformat retry).
	TokensUsed int `json:"tokens_used,omitempty"`
	// CorrelatedInboundIDs lists the inbound message ids this decision
	// answers. Filled from the model output when present, else by the
	// flushed batch snapshot.
	CorrelatedInboundIDs []string `json:"correlated_inbound_ids,omitempty"`
}

// decisionPayload 對應模型被要求回覆的兩種 JSON 形狀
type decisionPayload struct {
	Messages      []string `json:"messages"`
	Thinking      string   `json:"thinking"`
	Reason        string   `json:"reason"`
	Mentions      []string `json:"mentions"`
	CorrelatedIDs []string `json:"correlated_ids"`
}

// ParseDecision projects raw completion text into a Decision.
// Returns a *ParseError when the text is not one of the two mandated shapes,
// so the caller can run the reformat retry.
func ParseDecision(raw string) (*Decision, error) {
	extracted, err := ExtractJSON(raw)
	if err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}

	var payload decisionPayload
	if err := json.UnmarshalFromString(extracted, &payload); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}

	// reply shape: {messages: [..], thinking: ".."}
	if len(payload.Messages) > 0 {
		messages := make([]string, 0, len(payload.Messages))
		for _, m := range payload.Messages {
			if s := strings.TrimSpace(m); s != "" {
				messages = append(messages, s)
			}
		}
		if len(messages) == 0 {
			return nil, &ParseError{Raw: raw, Err: fmt.Errorf("reply shape contained only blank messages")}
		}
		return &Decision{
			Reply:                true,
			Messages:             messages,
			Thinking:             payload.Thinking,
			Mentions:             payload.Mentions,
			CorrelatedInboundIDs: payload.CorrelatedIDs,
		}, nil
	}

	// no-reply shape: {reason: "..", thinking: ".."}
	if payload.Reason != "" {
		return &Decision{
			Reply:                false,
			Reason:               payload.Reason,
			Thinking:             payload.Thinking,
			CorrelatedInboundIDs: payload.CorrelatedIDs,
		}, nil
	}

	return nil, &ParseError{Raw: raw, Err: fmt.Errorf("json matched neither reply nor no-reply shape")}
}

// FallbackDecision wraps raw text as a single reply after both the original
// parse and the reformat retry failed.
func FallbackDecision(raw string) *Decision {
	return &Decision{
		Reply:    true,
		Messages: []string{strings.TrimSpace(raw)},
		Thinking: "format fallback",
	}
}
