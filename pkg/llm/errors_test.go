package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindTransient},
		{"status 429", &APIError{StatusCode: 429, Message: "too many requests"}, KindRateLimited},
		{"status 401", &APIError{StatusCode: 401, Message: "bad key"}, KindCredentialInvalid},
		{"status 403", &APIError{StatusCode: 403, Message: "forbidden"}, KindCredentialInvalid},
		{"status 500", &APIError{StatusCode: 500, Message: "boom"}, KindTransient},
		{"status 503", &APIError{StatusCode: 503, Message: "overloaded"}, KindTransient},
		{"wrapped api error", fmt.Errorf("call failed: %w", &APIError{StatusCode: 429}), KindRateLimited},
		{"deadline", context.DeadlineExceeded, KindTransient},
		{"parse error", &ParseError{Raw: "x", Err: errors.New("bad shape")}, KindParse},
		{"text rate limit", errors.New("Rate limit reached for model"), KindRateLimited},
		{"text quota", errors.New("quota exceeded for project"), KindRateLimited},
		{"text invalid key", errors.New("invalid key provided"), KindCredentialInvalid},
		{"text unauthorized", errors.New("request unauthorized"), KindCredentialInvalid},
		{"unknown text", errors.New("something odd happened"), KindTransient},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "transient", KindTransient.String())
	assert.Equal(t, "rate_limited", KindRateLimited.String())
	assert.Equal(t, "credential_invalid", KindCredentialInvalid.String())
	assert.Equal(t, "parse_error", KindParse.String())
}
