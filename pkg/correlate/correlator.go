package correlate

import (
	"log/slog"
	"sync"
	"time"

	"fingerbot/pkg/api"
	"fingerbot/pkg/task"
	"fingerbot/pkg/utils"
)

// PendingCorrelation links an inbound event to the reply that will
// eventually answer it. Held from ingress until dispatch or TTL eviction.
type PendingCorrelation struct {
	InboundID string
	Event     *api.InboundMessage
	CreatedAt time.Time
}

// DeliverReplyPayload is the payload of a deliver-reply task.
type DeliverReplyPayload struct {
	Session api.Session
	Reply   *api.OutboundReply
}

// RecordThoughtPayload is the payload of a record-thought task.
type RecordThoughtPayload struct {
	MemoryType string
	Content    string
	Metadata   map[string]any
}

const sweepInterval = time.Minute

// Correlator subscribes to flush outcomes and converts decisions into
// delivery and thought-recording tasks, matched back to the inbound events
// they answer.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]*PendingCorrelation

	runner *task.Runner
	ttl    time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewCorrelator builds a correlator evicting unmatched correlations after ttl.
func NewCorrelator(runner *task.Runner, ttl time.Duration) *Correlator {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Correlator{
		pending: make(map[string]*PendingCorrelation),
		runner:  runner,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Start launches the background TTL sweep.
func (c *Correlator) Start() {
	c.stopCh = make(chan struct{})
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

// Shutdown stops the sweep and reports whatever never got answered.
func (c *Correlator) Shutdown() {
	if c.stopCh != nil {
		close(c.stopCh)
		c.wg.Wait()
	}
	c.mu.Lock()
	remaining := len(c.pending)
	c.pending = make(map[string]*PendingCorrelation)
	c.mu.Unlock()
	if remaining > 0 {
		slog.Warn("📮 Evicting unanswered correlations on shutdown", "count", remaining)
	}
}

// Track records an inbound event at ingress. Channel-minted ids embed their
// creation second; the sweep ages entries from that instead of the tracking
// time, so a delayed Track does not extend an event's TTL.
func (c *Correlator) Track(msg *api.InboundMessage) {
	createdAt := c.now()
	if ts, err := utils.GetTimeFromID(msg.ID); err == nil {
		createdAt = ts
	}
	c.mu.Lock()
	c.pending[msg.ID] = &PendingCorrelation{
		InboundID: msg.ID,
		Event:     msg,
		CreatedAt: createdAt,
	}
	c.mu.Unlock()
}

// PendingCount returns the number of unanswered correlations.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// OnQueueFlushed implements api.QueueEventListener.
func (c *Correlator) OnQueueFlushed(outcome *api.FlushOutcome) {
	decision := outcome.Decision
	if decision == nil {
		return
	}

	entries := c.take(decision.CorrelatedInboundIDs, outcome.InboundIDs)

	if !decision.Reply {
		slog.Info("🤫 Decision: stay silent", "context", outcome.ContextID, "reason", decision.Reason)
		c.recordThought(outcome, decision.Thinking)
		return
	}

	// The newest correlated event is the reply target
	var target *PendingCorrelation
	for _, e := range entries {
		if target == nil || e.CreatedAt.After(target.CreatedAt) {
			target = e
		}
	}
	if target == nil {
		slog.Warn("📮 Reply decision had no correlated inbound event, dropping", "context", outcome.ContextID)
		return
	}

	for i, content := range decision.Messages {
		reply := &api.OutboundReply{Content: content}
		if i == 0 && len(decision.Mentions) > 0 {
			reply.Mention = decision.Mentions[0]
		}
		_, err := c.runner.Enqueue(task.KindDeliverReply, &DeliverReplyPayload{
			Session: target.Event.Session,
			Reply:   reply,
		})
		if err != nil {
			slog.Error("📮 Failed to enqueue delivery", "context", outcome.ContextID, "error", err)
		}
	}

	c.recordThought(outcome, decision.Thinking)
}

// OnQueueError implements api.QueueEventListener.
func (c *Correlator) OnQueueError(contextID string, err error) {
	slog.Error("📮 Queue reported batch failure", "context", contextID, "error", err)
}

// take resolves the correlated entries using the three strategies in order:
// explicit decision ids, the flushed batch ids, then (degraded) everything
// currently pending. Resolved entries are removed from the pending map.
func (c *Correlator) take(decisionIDs, batchIDs []string) []*PendingCorrelation {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := decisionIDs
	strategy := "decision"
	if len(ids) == 0 {
		ids = batchIDs
		strategy = "batch"
	}
	if len(ids) == 0 {
		for id := range c.pending {
			ids = append(ids, id)
		}
		strategy = "all_pending"
	}
	slog.Debug("📮 Correlating decision to inbound events", "strategy", strategy, "ids", len(ids))
	if strategy == "all_pending" && len(ids) > 0 {
		slog.Warn("📮 No explicit correlation ids, matching all pending events", "count", len(ids))
	}

	var entries []*PendingCorrelation
	for _, id := range ids {
		if e, ok := c.pending[id]; ok {
			entries = append(entries, e)
			delete(c.pending, id)
		}
	}
	return entries
}

// recordThought enqueues a record-thought task. Ordered after the delivery
// tasks for the same batch by FIFO.
func (c *Correlator) recordThought(outcome *api.FlushOutcome, thinking string) {
	if thinking == "" {
		return
	}
	_, err := c.runner.Enqueue(task.KindRecordThought, &RecordThoughtPayload{
		MemoryType: "thinking",
		Content:    thinking,
		Metadata: map[string]any{
			"contextId": outcome.ContextID,
			"reason":    string(outcome.Reason),
			"tokens":    outcome.Decision.TokensUsed,
		},
	})
	if err != nil {
		slog.Error("📮 Failed to enqueue thought record", "context", outcome.ContextID, "error", err)
	}
}

// sweep evicts pending correlations older than the TTL; they will never
// match a future flush.
func (c *Correlator) sweep() {
	cutoff := c.now().Add(-c.ttl)
	c.mu.Lock()
	evicted := 0
	for id, e := range c.pending {
		if e.CreatedAt.Before(cutoff) {
			delete(c.pending, id)
			evicted++
		}
	}
	c.mu.Unlock()
	if evicted > 0 {
		slog.Info("📮 Evicted stale correlations", "count", evicted)
	}
}

// SetClock overrides the time source. Test hook.
func (c *Correlator) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
