package llm

import (
	"fmt"
	"strings"
)

// ExtractJSON pulls the first JSON object out of a model completion.
// Models love to wrap their JSON in markdown code fences or prefix it with
// prose; this strips the decoration and returns the balanced object.
func ExtractJSON(text string) (string, error) {
	cleaned := strings.TrimSpace(text)

	// Strip markdown code fences (```json ... ``` or plain ```)
	if strings.HasPrefix(cleaned, "```") {
		if idx := strings.Index(cleaned, "\n"); idx >= 0 {
			cleaned = cleaned[idx+1:]
		}
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	start := strings.Index(cleaned, "{")
	if start < 0 {
		return "", fmt.Errorf("no JSON object found in text")
	}

	// Walk to the matching close brace, respecting strings and escapes
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(cleaned); i++ {
		c := cleaned[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return cleaned[start : i+1], nil
				}
			}
		}
	}

	return "", fmt.Errorf("unbalanced JSON object in text")
}
