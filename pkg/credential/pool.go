package credential

import (
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Outcome classifies how a remote call using a credential ended.
// The pool only changes block state on rate-limit-like failures.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRateLimited
	OutcomeAuthFailed
	OutcomeOther
)

const (
	errorWindow   = 5 * time.Minute
	maxErrors     = 5
	blockDuration = time.Hour
)

// Credential tracks the failure state of one opaque API secret.
type Credential struct {
	Secret       string
	ErrorCount   int
	BlockedAt    time.Time // zero when not blocked
	FirstErrorAt time.Time // start of the current sliding window
	LastError    string    // diagnostics only
}

func (c *Credential) blocked() bool {
	return !c.BlockedAt.IsZero()
}

// Status is a read-only snapshot row for the admin surface.
type Status struct {
	Masked     string
	ErrorCount int
	Blocked    bool
	BlockedAt  time.Time
	LastError  string
}

// Pool rotates LLM API credentials. Ordered, insertion order preserved,
// deduplicated on identity. All state transitions are serialized by one lock.
type Pool struct {
	mu     sync.Mutex
	creds  []*Credential
	cursor int

	cron *cron.Cron
	now  func() time.Time // injectable clock
}

// NewPool builds a pool from the merged secret list. The caller guarantees
// the list is non-empty; an empty list is a startup configuration error.
func NewPool(secrets []string) *Pool {
	seen := make(map[string]struct{})
	p := &Pool{now: time.Now}
	for _, s := range secrets {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		p.creds = append(p.creds, &Credential{Secret: s})
	}
	return p
}

// Start schedules the daily reset at local midnight.
func (p *Pool) Start() {
	p.cron = cron.New()
	p.cron.AddFunc("0 0 * * *", p.DailyReset)
	p.cron.Start()
	slog.Info("🔑 Credential pool started", "credentials", p.Size())
}

// Stop cancels the midnight reset schedule.
func (p *Pool) Stop() {
	if p.cron != nil {
		p.cron.Stop()
	}
}

// Size returns the number of distinct credentials.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.creds)
}

// Acquire returns the first non-blocked credential starting at the rotation
// cursor. When every credential is blocked it returns the earliest-blocked
// one and logs a degraded-mode warning.
func (p *Pool) Acquire() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sweepLocked(p.now())

	n := len(p.creds)
	for i := 0; i < n; i++ {
		c := p.creds[(p.cursor+i)%n]
		if !c.blocked() {
			return c.Secret
		}
	}

	// Degraded mode: everything is blocked, pick the one closest to release
	oldest := p.creds[0]
	for _, c := range p.creds[1:] {
		if c.BlockedAt.Before(oldest.BlockedAt) {
			oldest = c
		}
	}
	slog.Warn("⚠️ All credentials blocked, using earliest-blocked key in degraded mode",
		"key", Mask(oldest.Secret), "blocked_at", oldest.BlockedAt)
	return oldest.Secret
}

// ReportOutcome records the result of a call made with the given secret.
// Rate-limit failures accumulate in a 5-minute sliding window; the fifth one
// blocks the credential for an hour and advances the rotation cursor.
func (p *Pool) ReportOutcome(secret string, outcome Outcome, detail string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := -1
	for i, c := range p.creds {
		if c.Secret == secret {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	c := p.creds[idx]
	now := p.now()

	switch outcome {
	case OutcomeSuccess:
		c.ErrorCount = 0
		c.FirstErrorAt = time.Time{}
		c.LastError = ""

	case OutcomeRateLimited:
		if !c.FirstErrorAt.IsZero() && now.Sub(c.FirstErrorAt) > errorWindow {
			// Window elapsed, start counting fresh
			c.ErrorCount = 0
			c.FirstErrorAt = time.Time{}
		}
		if c.FirstErrorAt.IsZero() {
			c.FirstErrorAt = now
		}
		c.ErrorCount++
		c.LastError = detail
		slog.Warn("🔑 Credential rate-limited", "key", Mask(secret), "errors", c.ErrorCount)
		if c.ErrorCount >= maxErrors && !c.blocked() {
			c.BlockedAt = now
			slog.Warn("🚫 Credential blocked for 1h", "key", Mask(secret))
			p.advanceCursorLocked(idx)
		}

	case OutcomeAuthFailed:
		// Invalid keys rotate away but do not count toward the block window
		c.LastError = detail
		slog.Warn("🔑 Credential rejected by backend, rotating", "key", Mask(secret))
		p.advanceCursorLocked(idx)

	case OutcomeOther:
		c.LastError = detail
	}
}

// advanceCursorLocked moves the cursor to the next non-blocked credential
// after the given index. Caller holds the lock.
func (p *Pool) advanceCursorLocked(from int) {
	n := len(p.creds)
	for i := 1; i <= n; i++ {
		next := (from + i) % n
		if !p.creds[next].blocked() {
			p.cursor = next
			return
		}
	}
	// everything blocked, leave the cursor alone
}

// sweepLocked releases credentials blocked for longer than an hour.
// Caller holds the lock.
func (p *Pool) sweepLocked(now time.Time) {
	for _, c := range p.creds {
		if c.blocked() && now.Sub(c.BlockedAt) > blockDuration {
			slog.Info("🔓 Credential unblocked after cooldown", "key", Mask(c.Secret))
			c.BlockedAt = time.Time{}
			c.ErrorCount = 0
			c.FirstErrorAt = time.Time{}
		}
	}
}

// Sweep releases expired blocks. Also runs implicitly on every Acquire.
func (p *Pool) Sweep() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sweepLocked(p.now())
}

// DailyReset clears all error counts and blocks. Runs at local midnight.
func (p *Pool) DailyReset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.creds {
		c.ErrorCount = 0
		c.BlockedAt = time.Time{}
		c.FirstErrorAt = time.Time{}
		c.LastError = ""
	}
	slog.Info("🌙 Daily credential reset completed", "credentials", len(p.creds))
}

// ForceAdvance rotates to the next non-blocked credential. Admin operation.
func (p *Pool) ForceAdvance() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advanceCursorLocked(p.cursor)
	current := p.creds[p.cursor]
	slog.Info("👮 Operator forced credential rotation", "now_using", Mask(current.Secret))
	return Mask(current.Secret)
}

// ForceReset clears the error state of every credential whose secret starts
// with the given prefix. Admin operation. Returns how many were reset.
func (p *Pool) ForceReset(prefix string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for _, c := range p.creds {
		if prefix != "" && len(c.Secret) >= len(prefix) && c.Secret[:len(prefix)] == prefix {
			c.ErrorCount = 0
			c.BlockedAt = time.Time{}
			c.FirstErrorAt = time.Time{}
			c.LastError = ""
			count++
		}
	}
	slog.Info("👮 Operator reset credentials", "prefix", prefix, "count", count)
	return count
}

// Snapshot returns a read-only view for the admin/observability surface.
func (p *Pool) Snapshot() []Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Status, 0, len(p.creds))
	for _, c := range p.creds {
		out = append(out, Status{
			Masked:     Mask(c.Secret),
			ErrorCount: c.ErrorCount,
			Blocked:    c.blocked(),
			BlockedAt:  c.BlockedAt,
			LastError:  c.LastError,
		})
	}
	return out
}

// Mask hides most of a secret for log output.
func Mask(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:6] + "..." + secret[len(secret)-2:]
}

// SetClock overrides the pool's time source. Test hook.
func (p *Pool) SetClock(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
}
