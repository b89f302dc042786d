package llm

import (
	"fmt"
	"strings"
)

// PromptBuilder 負責組裝送往模型的完整提示字串
type PromptBuilder struct {
	Persona string
	Traits  []string
	BotID   string
	BotName string
}

const replyInstructions = `You MUST answer with a single JSON object and nothing else, in exactly one of these two shapes:

1. To reply:
{"messages": ["first message", "second message"], "thinking": "your private reasoning", "mentions": ["senderId"]}

2. To stay silent:
{"reason": "why you are not replying", "thinking": "your private reasoning"}

Rules:
- "messages" must be non-empty when replying; each entry becomes one chat message.
- "mentions" is optional; list senderIds you want highlighted in the reply.
- Do not wrap the JSON in code fences. Do not add any text before or after it.`

// Build concatenates persona, trait guidance, bot identity, the serialized
// conversation context and the mandatory format instructions.
func (b *PromptBuilder) Build(mainContent, structuredContext string) string {
	var sb strings.Builder

	if b.Persona != "" {
		sb.WriteString(b.Persona)
		sb.WriteString("\n\n")
	}

	if len(b.Traits) > 0 {
		sb.WriteString("Style guidance:\n")
		for i, t := range b.Traits {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, t)
		}
		sb.WriteString("\n")
	}

	name := b.BotName
	if name == "" {
		name = b.BotID
	}
	fmt.Fprintf(&sb, "You are %q (id %s) in a group chat. Messages whose senderId equals your id are your own past replies.\n\n", name, b.BotID)

	if structuredContext != "" {
		sb.WriteString("Conversation context (JSON):\n")
		sb.WriteString(structuredContext)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Latest message to consider:\n")
	sb.WriteString(mainContent)
	sb.WriteString("\n\n")

	sb.WriteString(replyInstructions)

	return sb.String()
}

// BuildReformat produces the one-shot correction prompt after a parse
// failure: original prompt, the malformed output, and a demand to re-emit
// valid JSON.
func (b *PromptBuilder) BuildReformat(original, malformed string) string {
	var sb strings.Builder
	sb.WriteString(original)
	sb.WriteString("\n\nYour previous response could not be parsed:\n")
	sb.WriteString(malformed)
	sb.WriteString("\n\nRe-emit your answer as a single valid JSON object in one of the two mandated shapes. Output the JSON object only.")
	return sb.String()
}
