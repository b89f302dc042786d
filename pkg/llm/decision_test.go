package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecisionReplyShape(t *testing.T) {
	raw := `{"messages": ["hello", "world"], "thinking": "they greeted me", "mentions": ["42"]}`
	d, err := ParseDecision(raw)
	require.NoError(t, err)
	assert.True(t, d.Reply)
	assert.Equal(t, []string{"hello", "world"}, d.Messages)
	assert.Equal(t, "they greeted me", d.Thinking)
	assert.Equal(t, []string{"42"}, d.Mentions)
}

func TestParseDecisionNoReplyShape(t *testing.T) {
	raw := `{"reason": "nothing to add", "thinking": "the topic moved on"}`
	d, err := ParseDecision(raw)
	require.NoError(t, err)
	assert.False(t, d.Reply)
	assert.Equal(t, "nothing to add", d.Reason)
	assert.Empty(t, d.Messages)
}

func TestParseDecisionStripsCodeFences(t *testing.T) {
	raw := "```json\n{\"messages\": [\"fenced reply\"], \"thinking\": \"t\"}\n```"
	d, err := ParseDecision(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"fenced reply"}, d.Messages)
}

func TestParseDecisionSurroundingProse(t *testing.T) {
	raw := "Sure! Here is my answer:\n{\"reason\": \"quiet\", \"thinking\": \"x\"}\nHope that helps."
	d, err := ParseDecision(raw)
	require.NoError(t, err)
	assert.Equal(t, "quiet", d.Reason)
}

func TestParseDecisionRejectsNonJSON(t *testing.T) {
	_, err := ParseDecision("not-json")
	require.Error(t, err)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "not-json", parseErr.Raw)
}

func TestParseDecisionRejectsWrongShape(t *testing.T) {
	_, err := ParseDecision(`{"something": "else"}`)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestParseDecisionBlankMessagesRejected(t *testing.T) {
	_, err := ParseDecision(`{"messages": ["  ", ""], "thinking": "t"}`)
	assert.Error(t, err)
}

func TestFallbackDecision(t *testing.T) {
	d := FallbackDecision("  raw model text  ")
	assert.True(t, d.Reply)
	assert.Equal(t, []string{"raw model text"}, d.Messages)
	assert.Equal(t, "format fallback", d.Thinking)
}

func TestExtractJSONNestedBraces(t *testing.T) {
	out, err := ExtractJSON(`prefix {"a": {"b": "c}"} , "d": 1} suffix`)
	require.NoError(t, err)
	assert.Equal(t, `{"a": {"b": "c}"} , "d": 1}`, out)
}

func TestExtractJSONUnbalanced(t *testing.T) {
	_, err := ExtractJSON(`{"a": 1`)
	assert.Error(t, err)
}
