package stamina

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"fingerbot/pkg/config"
)

// Level 是從 current/S_max 推導出的疲勞等級
type Level string

const (
	LevelHigh     Level = "high"     // ≥70%
	LevelMedium   Level = "medium"   // ≥50%
	LevelLow      Level = "low"      // ≥ critical threshold
	LevelCritical Level = "critical" // below critical threshold
)

// LevelListener 在等級轉換時收到通知。僅供記錄與觀測，不得有行為分支依賴它
type LevelListener func(old, new Level)

// Controller implements the fatigue-with-inertia model that gates replies at
// the scheduler boundary. One process-wide instance; all mutation happens
// under a single lock.
//
// Discrete update over dt seconds with intensity I:
//
//	momentum ← max(0, momentum·(1 − β·dt) + α·I·dt)
//	consume  ← k·I^p·dt
//	recover  ← (r·(1 − current/S_max) − γ·momentum)·dt
//	current  ← clamp(current − consume + recover, 0, S_max)
type Controller struct {
	mu  sync.Mutex
	cfg config.StaminaConfig

	current    float64
	momentum   float64
	lastUpdate time.Time
	restMode   bool
	lastLevel  Level

	listeners []LevelListener

	stopCh chan struct{}
	wg     sync.WaitGroup
	now    func() time.Time // injectable clock
}

// Snapshot is a read-only view for the admin/observability surface.
type Snapshot struct {
	Current  float64 `json:"current"`
	Max      float64 `json:"max"`
	Momentum float64 `json:"momentum"`
	Level    Level   `json:"level"`
	RestMode bool    `json:"rest_mode"`
}

// NewController builds a controller starting at full stamina.
func NewController(cfg config.StaminaConfig) *Controller {
	c := &Controller{
		cfg:      cfg,
		current:  cfg.Max,
		restMode: cfg.RestMode,
		now:      time.Now,
	}
	c.lastUpdate = c.now()
	c.lastLevel = c.levelLocked()
	return c
}

// Start launches the background regeneration tick.
func (c *Controller) Start() {
	c.stopCh = make(chan struct{})
	interval := time.Duration(c.cfg.RegenIntervalMs) * time.Millisecond
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.Tick()
			}
		}
	}()
	slog.Info("⚡ Stamina controller started", "max", c.cfg.Max, "regen_interval", interval)
}

// Stop joins the background tick goroutine.
func (c *Controller) Stop() {
	if c.stopCh != nil {
		close(c.stopCh)
		c.wg.Wait()
	}
}

// Tick applies the elapsed background update with zero intensity.
func (c *Controller) Tick() {
	c.mu.Lock()
	old := c.lastLevel
	c.applyElapsedLocked()
	newLevel := c.levelLocked()
	c.lastLevel = newLevel
	c.mu.Unlock()

	c.notify(old, newLevel)
}

// Consume charges the model for a processed batch: the elapsed background
// tick is applied first, then one update with I = messageCount over dt = 1s.
func (c *Controller) Consume(messageCount int) {
	c.mu.Lock()
	old := c.lastLevel
	c.applyElapsedLocked()
	c.applyLocked(float64(messageCount), 1)
	newLevel := c.levelLocked()
	c.lastLevel = newLevel
	current, momentum := c.current, c.momentum
	c.mu.Unlock()

	slog.Debug("⚡ Stamina consumed", "messages", messageCount,
		"current", current, "momentum", momentum, "level", newLevel)
	c.notify(old, newLevel)
}

// CanReply reports whether a flush may proceed: not resting, above the
// critical band, and enough stamina for at least one message unit.
func (c *Controller) CanReply() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyElapsedLocked()
	if c.restMode {
		return false
	}
	if c.levelLocked() == LevelCritical {
		return false
	}
	unit := c.cfg.BaseCost * math.Pow(1, c.cfg.CostExponent)
	return c.current >= unit
}

// Level returns the current derived level.
func (c *Controller) Level() Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyElapsedLocked()
	return c.levelLocked()
}

// SetRestMode toggles rest mode: cost and recovery suspend, momentum still
// decays. Admin operation.
func (c *Controller) SetRestMode(rest bool) {
	c.mu.Lock()
	c.applyElapsedLocked()
	c.restMode = rest
	c.mu.Unlock()
	slog.Info("👮 Rest mode toggled", "rest", rest)
}

// SetCurrent forces the stamina value. Admin operation ("stamina set N").
func (c *Controller) SetCurrent(v float64) {
	c.mu.Lock()
	c.current = clamp(v, 0, c.cfg.Max)
	c.lastUpdate = c.now()
	c.mu.Unlock()
	slog.Info("👮 Stamina forced", "current", v)
}

// SetConfig swaps the model tuning live (config hot reload). The current
// value and momentum carry over, clamped into the new range.
func (c *Controller) SetConfig(cfg config.StaminaConfig) {
	c.mu.Lock()
	c.applyElapsedLocked()
	c.cfg = cfg
	c.current = clamp(c.current, 0, cfg.Max)
	c.restMode = cfg.RestMode
	c.mu.Unlock()
	slog.Info("🔁 Stamina config reloaded", "max", cfg.Max, "recovery", cfg.RecoveryRate)
}

// Subscribe registers a level-transition listener.
func (c *Controller) Subscribe(l LevelListener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// Snapshot returns a read-only view of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyElapsedLocked()
	return Snapshot{
		Current:  c.current,
		Max:      c.cfg.Max,
		Momentum: c.momentum,
		Level:    c.levelLocked(),
		RestMode: c.restMode,
	}
}

// applyElapsedLocked advances the model to now with zero intensity.
func (c *Controller) applyElapsedLocked() {
	now := c.now()
	dt := now.Sub(c.lastUpdate).Seconds()
	if dt <= 0 {
		return
	}
	c.applyLocked(0, dt)
}

// applyLocked runs one discrete update. Caller holds the lock.
func (c *Controller) applyLocked(intensity, dt float64) {
	cfg := &c.cfg

	c.momentum = math.Max(0, c.momentum*(1-cfg.MomentumDecay*dt)+cfg.MomentumAccrual*intensity*dt)

	if !c.restMode {
		consume := cfg.BaseCost * math.Pow(intensity, cfg.CostExponent) * dt
		recover := (cfg.RecoveryRate*(1-c.current/cfg.Max) - cfg.MomentumPenalty*c.momentum) * dt
		c.current = clamp(c.current-consume+recover, 0, cfg.Max)
	}

	c.lastUpdate = c.now()
}

// levelLocked derives the level label. The critical band is strictly below
// the configured threshold. Caller holds the lock.
func (c *Controller) levelLocked() Level {
	pct := c.current / c.cfg.Max * 100
	switch {
	case pct >= 70:
		return LevelHigh
	case pct >= 50:
		return LevelMedium
	case pct >= c.cfg.CriticalThreshold:
		return LevelLow
	default:
		return LevelCritical
	}
}

func (c *Controller) notify(old, new Level) {
	if old == new {
		return
	}
	slog.Info("⚡ Stamina level changed", "from", old, "to", new)
	c.mu.Lock()
	listeners := make([]LevelListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()
	for _, l := range listeners {
		l(old, new)
	}
}

// SetClock overrides the time source. Test hook.
func (c *Controller) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	c.lastUpdate = now()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
