package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"fingerbot/pkg/config"
	"fingerbot/pkg/credential"
)

// Client is the orchestration layer over a Provider: it rotates credentials
// through the pool, retries with exponential backoff, and projects raw
// completions into Decisions (with the one-shot reformat retry and the
// raw-text fallback).
type Client struct {
	provider Provider
	pool     *credential.Pool
	prompts  *PromptBuilder

	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	timeout     time.Duration

	debugger *Debugger
}

// NewClient wires a provider, the credential pool and the prompt builder
// together, taking retry tuning from the system config.
func NewClient(provider Provider, pool *credential.Pool, prompts *PromptBuilder, sys *config.SystemConfig) *Client {
	return &Client{
		provider:    provider,
		pool:        pool,
		prompts:     prompts,
		maxAttempts: sys.MaxRetries,
		baseDelay:   time.Duration(sys.RetryBaseDelayMs) * time.Millisecond,
		maxDelay:    time.Duration(sys.RetryMaxDelayMs) * time.Millisecond,
		timeout:     time.Duration(sys.LLMTimeoutMs) * time.Millisecond,
		debugger:    NewDebugger(sys.DebugCompletions),
	}
}

// Generate runs one logical LLM call for a batch: build the prompt, call the
// backend with up to maxAttempts tries, then parse. Recoverable errors stay
// inside this method; only a terminal failure after all attempts surfaces.
func (c *Client) Generate(ctx context.Context, mainContent, structuredContext string) (*Decision, error) {
	prompt := c.prompts.Build(mainContent, structuredContext)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.backoff(attempt - 1)
			slog.Debug("🔄 Retrying LLM call", "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		completion, secret, err := c.callOnce(ctx, prompt)
		if err != nil {
			lastErr = err
			kind := Classify(err)
			slog.Warn("❌ LLM call failed", "attempt", attempt, "kind", kind.String(), "key", credential.Mask(secret), "error", err)
			continue
		}

		c.debugger.Save("completion", prompt, completion.Text)
		return c.parse(ctx, prompt, completion)
	}

	return nil, fmt.Errorf("llm call failed after %d attempts: %w", c.maxAttempts, lastErr)
}

// callOnce acquires a credential, performs one backend call and reports the
// outcome to the pool. Returns the secret used so failures can be attributed
// in logs.
func (c *Client) callOnce(ctx context.Context, prompt string) (*Completion, string, error) {
	secret := c.pool.Acquire()

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	completion, err := c.provider.Complete(callCtx, secret, prompt)
	if err != nil {
		switch Classify(err) {
		case KindRateLimited:
			c.pool.ReportOutcome(secret, credential.OutcomeRateLimited, err.Error())
		case KindCredentialInvalid:
			c.pool.ReportOutcome(secret, credential.OutcomeAuthFailed, err.Error())
		default:
			c.pool.ReportOutcome(secret, credential.OutcomeOther, err.Error())
		}
		return nil, secret, err
	}

	c.pool.ReportOutcome(secret, credential.OutcomeSuccess, "")
	return completion, secret, nil
}

// parse projects the completion into a Decision. On a malformed response it
// issues exactly one reformat call; if that also fails to parse, the original
// raw text becomes a single reply with thinking = "format fallback".
func (c *Client) parse(ctx context.Context, prompt string, completion *Completion) (*Decision, error) {
	tokens := completion.TokensUsed

	decision, err := ParseDecision(completion.Text)
	if err == nil {
		decision.TokensUsed = tokens
		return decision, nil
	}

	slog.Warn("⚠️ LLM response failed to parse, issuing reformat request", "error", err)
	reformatPrompt := c.prompts.BuildReformat(prompt, completion.Text)

	retry, _, rerr := c.callOnce(ctx, reformatPrompt)
	if rerr == nil {
		tokens += retry.TokensUsed
		c.debugger.Save("reformat", reformatPrompt, retry.Text)
		if decision, err = ParseDecision(retry.Text); err == nil {
			decision.TokensUsed = tokens
			return decision, nil
		}
	}

	slog.Warn("⚠️ Reformat retry also failed, falling back to raw text")
	decision = FallbackDecision(completion.Text)
	decision.TokensUsed = tokens
	return decision, nil
}

// HealthCheck performs a one-shot probe against the backend. A failure is
// non-fatal for the caller; the system starts degraded and ingress buffers.
func (c *Client) HealthCheck(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, _, err := c.callOnce(probeCtx, "Reply with the word: pong")
	return err
}

// backoff computes the sleep after the n-th failed attempt:
// min(base·2^(n−1) + jitter[0,1s], cap).
func (c *Client) backoff(failed int) time.Duration {
	delay := c.baseDelay * (1 << (failed - 1))
	delay += time.Duration(rand.Int63n(int64(time.Second)))
	if delay > c.maxDelay {
		delay = c.maxDelay
	}
	return delay
}
