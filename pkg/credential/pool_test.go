package credential

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolDeduplicatesAndPreservesOrder(t *testing.T) {
	p := NewPool([]string{"sk-aaaaaaaa", "sk-bbbbbbbb", "sk-aaaaaaaa"})
	require.Equal(t, 2, p.Size())
	assert.Equal(t, "sk-aaaaaaaa", p.Acquire())
}

func TestPoolBlocksAfterFiveRateLimits(t *testing.T) {
	p := NewPool([]string{"sk-key-alpha", "sk-key-bravo"})

	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.Local)
	p.SetClock(func() time.Time { return now })

	// Five 429s within the window block alpha and rotate to bravo
	for i := 0; i < 5; i++ {
		p.ReportOutcome("sk-key-alpha", OutcomeRateLimited, "429 too many requests")
		now = now.Add(30 * time.Second)
	}

	assert.Equal(t, "sk-key-bravo", p.Acquire())

	status := p.Snapshot()
	require.Len(t, status, 2)
	assert.True(t, status[0].Blocked)
	assert.False(t, status[1].Blocked)

	// One hour later the sweep releases alpha with a clean slate
	now = now.Add(61 * time.Minute)
	p.Sweep()
	status = p.Snapshot()
	assert.False(t, status[0].Blocked)
	assert.Equal(t, 0, status[0].ErrorCount)
}

func TestPoolSlidingWindowResets(t *testing.T) {
	p := NewPool([]string{"sk-key-alpha"})

	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.Local)
	p.SetClock(func() time.Time { return now })

	for i := 0; i < 4; i++ {
		p.ReportOutcome("sk-key-alpha", OutcomeRateLimited, "429")
	}

	// The window elapses, so the next failure starts a fresh count
	now = now.Add(6 * time.Minute)
	p.ReportOutcome("sk-key-alpha", OutcomeRateLimited, "429")

	status := p.Snapshot()
	assert.False(t, status[0].Blocked)
	assert.Equal(t, 1, status[0].ErrorCount)
}

func TestPoolDailyResetUnblocksEverything(t *testing.T) {
	p := NewPool([]string{"sk-key-alpha", "sk-key-bravo"})

	now := time.Date(2026, 8, 26, 23, 50, 0, 0, time.Local)
	p.SetClock(func() time.Time { return now })

	for i := 0; i < 5; i++ {
		p.ReportOutcome("sk-key-alpha", OutcomeRateLimited, "quota exceeded")
	}
	require.True(t, p.Snapshot()[0].Blocked)

	// Simulated midnight
	p.DailyReset()

	assert.False(t, p.Snapshot()[0].Blocked)
	assert.Equal(t, "sk-key-alpha", func() string {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.creds[0].Secret
	}())
}

func TestPoolDegradedModeReturnsEarliestBlocked(t *testing.T) {
	p := NewPool([]string{"sk-key-alpha", "sk-key-bravo"})

	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.Local)
	p.SetClock(func() time.Time { return now })

	for i := 0; i < 5; i++ {
		p.ReportOutcome("sk-key-alpha", OutcomeRateLimited, "429")
	}
	now = now.Add(time.Minute)
	for i := 0; i < 5; i++ {
		p.ReportOutcome("sk-key-bravo", OutcomeRateLimited, "429")
	}

	// Both blocked: alpha was blocked first, so it serves degraded traffic
	assert.Equal(t, "sk-key-alpha", p.Acquire())
}

func TestPoolSuccessResetsErrorCount(t *testing.T) {
	p := NewPool([]string{"sk-key-alpha"})
	p.ReportOutcome("sk-key-alpha", OutcomeRateLimited, "429")
	p.ReportOutcome("sk-key-alpha", OutcomeRateLimited, "429")
	p.ReportOutcome("sk-key-alpha", OutcomeSuccess, "")
	assert.Equal(t, 0, p.Snapshot()[0].ErrorCount)
}

func TestPoolAuthFailureRotatesWithoutCounting(t *testing.T) {
	p := NewPool([]string{"sk-key-alpha", "sk-key-bravo"})
	p.ReportOutcome("sk-key-alpha", OutcomeAuthFailed, "401 invalid key")

	status := p.Snapshot()
	assert.Equal(t, 0, status[0].ErrorCount)
	assert.False(t, status[0].Blocked)
	assert.Equal(t, "sk-key-bravo", p.Acquire())
}

func TestPoolForceReset(t *testing.T) {
	p := NewPool([]string{"sk-key-alpha", "other-key"})
	for i := 0; i < 5; i++ {
		p.ReportOutcome("sk-key-alpha", OutcomeRateLimited, "429")
	}
	require.True(t, p.Snapshot()[0].Blocked)

	assert.Equal(t, 1, p.ForceReset("sk-key"))
	assert.False(t, p.Snapshot()[0].Blocked)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "****", Mask("short"))
	assert.Equal(t, "sk-abc...yz", Mask("sk-abcdefghijklxyz"[:13]+"yz"))
}
