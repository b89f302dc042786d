package queue

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"fingerbot/pkg/api"
	"fingerbot/pkg/config"
	"fingerbot/pkg/stamina"
)

// contextState is the per-conversation queue. Its own lock protects every
// field; the Manager's outer lock only guards creation and deletion in the
// contexts map. Locks never nest the other way around.
type contextState struct {
	mu           sync.Mutex
	contextID    string
	messages     []*api.QueuedMessage
	silenceTimer *time.Timer
	processing   bool
	removed      bool // set when cleanup deletes the state from the map
	lastFlushAt  time.Time
	lastReason   api.TriggerReason
}

// ContextStatus is a read-only row for the admin "queue status" view.
type ContextStatus struct {
	ContextID   string            `json:"contextId"`
	Queued      int               `json:"queued"`
	Processing  bool              `json:"processing"`
	LastFlushAt time.Time         `json:"lastFlushAt,omitempty"`
	LastReason  api.TriggerReason `json:"lastReason,omitempty"`
}

// Manager buffers inbound messages per conversation and evaluates the five
// trigger policies: high priority, silence, size, age, manual.
type Manager struct {
	mu       sync.Mutex
	contexts map[string]*contextState

	cfgMu sync.RWMutex
	cfg   config.SchedulerConfig

	botID   string
	botName string

	stamina   *stamina.Controller
	processor api.BatchProcessor
	listener  api.QueueEventListener

	groupsEnabled  atomic.Bool
	totalProcessed atomic.Uint64

	now func() time.Time
}

// NewManager wires the queue to the stamina gate, the batch pipeline and the
// flush event listener.
func NewManager(botID, botName string, cfg config.SchedulerConfig, st *stamina.Controller, processor api.BatchProcessor, listener api.QueueEventListener) *Manager {
	m := &Manager{
		contexts:  make(map[string]*contextState),
		cfg:       cfg,
		botID:     botID,
		botName:   botName,
		stamina:   st,
		processor: processor,
		listener:  listener,
		now:       time.Now,
	}
	m.groupsEnabled.Store(true)
	return m
}

// SetSchedulerConfig swaps the trigger tuning live (config hot reload).
func (m *Manager) SetSchedulerConfig(cfg config.SchedulerConfig) {
	m.cfgMu.Lock()
	m.cfg = cfg
	m.cfgMu.Unlock()
	slog.Info("🔁 Scheduler config reloaded",
		"silence_s", cfg.SilenceSeconds, "max_size", cfg.MaxQueueSize, "max_age_s", cfg.MaxQueueAgeSeconds)
}

func (m *Manager) schedulerConfig() config.SchedulerConfig {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return m.cfg
}

// SetGroupsEnabled toggles group-chat processing globally. When disabled,
// flushes targeting group contexts return skip_reply and drop their batch.
func (m *Manager) SetGroupsEnabled(enabled bool) {
	m.groupsEnabled.Store(enabled)
	slog.Info("👮 Group processing toggled", "enabled", enabled)
}

// GroupsEnabled reports the current toggle state.
func (m *Manager) GroupsEnabled() bool {
	return m.groupsEnabled.Load()
}

// TotalProcessed returns the number of batches handed to the pipeline.
func (m *Manager) TotalProcessed() uint64 {
	return m.totalProcessed.Load()
}

// Enqueue buffers one inbound message and evaluates the ingress triggers.
func (m *Manager) Enqueue(msg *api.InboundMessage) {
	contextID := msg.Session.ContextID()
	cfg := m.schedulerConfig()

	queued := &api.QueuedMessage{
		InboundMessage: *msg,
		IsHighPriority: m.isHighPriority(msg),
		EnqueuedAt:     m.now(),
	}

	state := m.claim(contextID)
	state.messages = append(state.messages, queued)

	if queued.IsHighPriority {
		state.mu.Unlock()
		m.flush(state, api.TriggerHighPriority)
		return
	}

	// Re-arm the silence timer on every non-priority enqueue
	if state.silenceTimer != nil {
		state.silenceTimer.Stop()
	}
	state.silenceTimer = time.AfterFunc(time.Duration(cfg.SilenceSeconds)*time.Second, func() {
		m.onSilence(contextID)
	})

	size := len(state.messages)
	oldest := state.messages[0].EnqueuedAt
	state.mu.Unlock()

	if size >= cfg.MaxQueueSize {
		m.flush(state, api.TriggerSize)
		return
	}
	if m.now().Sub(oldest) >= time.Duration(cfg.MaxQueueAgeSeconds)*time.Second {
		m.flush(state, api.TriggerAge)
	}
}

// isHighPriority implements the mention rule: @botName, the bare bot name
// (case-insensitive), or a command kind.
func (m *Manager) isHighPriority(msg *api.InboundMessage) bool {
	if msg.Kind == api.KindCommand {
		return true
	}
	if m.botName == "" {
		return false
	}
	content := strings.ToLower(msg.Content)
	name := strings.ToLower(m.botName)
	return strings.Contains(content, "@"+name) || strings.Contains(content, name)
}

// onSilence fires when a context has been quiet for silenceSeconds.
func (m *Manager) onSilence(contextID string) {
	state := m.lookup(contextID)
	if state == nil {
		return
	}
	state.mu.Lock()
	empty := len(state.messages) == 0
	state.mu.Unlock()
	if !empty {
		m.flush(state, api.TriggerSilence)
	}
}

// Flush drains one context on operator request.
func (m *Manager) Flush(contextID string) api.FlushResult {
	state := m.lookup(contextID)
	if state == nil {
		return api.FlushResult{Processed: false, Reason: "empty"}
	}
	return m.flush(state, api.TriggerManual)
}

// FlushAll drains every non-empty context on operator request.
func (m *Manager) FlushAll() int {
	flushed := 0
	for _, state := range m.allContexts() {
		if m.flush(state, api.TriggerManual).Processed {
			flushed++
		}
	}
	return flushed
}

// Clear drops every queued message without processing and cancels all timers.
func (m *Manager) Clear() int {
	dropped := 0
	for _, state := range m.allContexts() {
		state.mu.Lock()
		if state.silenceTimer != nil {
			state.silenceTimer.Stop()
			state.silenceTimer = nil
		}
		for _, msg := range state.messages {
			slog.Info("🗑️ Dropped queued message", "context", state.contextID, "id", msg.ID, "content", msg.Content)
			dropped++
		}
		state.messages = nil
		state.mu.Unlock()
		m.cleanup(state)
	}
	if dropped > 0 {
		slog.Warn("🗑️ Queue cleared", "dropped", dropped)
	}
	return dropped
}

// flush runs the single-context flush protocol. Refusals (busy context,
// insufficient stamina, empty queue, disabled groups) are normal results.
func (m *Manager) flush(state *contextState, reason api.TriggerReason) api.FlushResult {
	cfg := m.schedulerConfig()

	state.mu.Lock()

	if state.silenceTimer != nil {
		state.silenceTimer.Stop()
		state.silenceTimer = nil
	}

	if state.processing {
		state.mu.Unlock()
		return api.FlushResult{Processed: false, Reason: "queue_busy"}
	}
	if len(state.messages) == 0 {
		state.mu.Unlock()
		m.cleanup(state)
		return api.FlushResult{Processed: false, Reason: "empty"}
	}

	// Stop gate: group contexts are silently skipped while disabled
	if !m.groupsEnabled.Load() && strings.HasPrefix(state.contextID, "group:") {
		dropped := len(state.messages)
		state.messages = nil
		state.mu.Unlock()
		slog.Info("⏸️ Group processing disabled, batch skipped", "context", state.contextID, "dropped", dropped)
		m.cleanup(state)
		return api.FlushResult{Processed: false, Reason: "skip_reply"}
	}

	// Stamina gate
	if !m.stamina.CanReply() {
		if m.stamina.Level() == stamina.LevelCritical && !cfg.RetainOnCritical {
			// Critical: the backlog would never be answered, drain it
			for _, msg := range state.messages {
				slog.Warn("🔋 Critical stamina, dropping message", "context", state.contextID, "id", msg.ID, "content", msg.Content)
			}
			state.messages = nil
			state.mu.Unlock()
			m.cleanup(state)
		} else {
			state.mu.Unlock()
		}
		return api.FlushResult{Processed: false, Reason: "stamina_insufficient"}
	}

	// Commit: snapshot the queue and mark the context in flight
	state.processing = true
	snapshot := state.messages
	state.messages = nil
	state.mu.Unlock()

	batch := &api.Batch{
		ContextID: state.contextID,
		Reason:    reason,
		Messages:  snapshot,
	}

	go m.process(state, batch)
	return api.FlushResult{Processed: true}
}

// process hands one batch to the pipeline. Runs outside every lock so
// enqueue and timers stay responsive during the LLM call.
func (m *Manager) process(state *contextState, batch *api.Batch) {
	defer func() {
		state.mu.Lock()
		state.processing = false
		state.mu.Unlock()
		m.cleanup(state)
	}()

	slog.Info("📤 Flushing batch", "context", batch.ContextID, "reason", batch.Reason, "messages", len(batch.Messages))

	decision, err := m.processor.ProcessBatch(context.Background(), batch)

	state.mu.Lock()
	state.lastFlushAt = m.now()
	state.lastReason = batch.Reason
	state.mu.Unlock()

	if err != nil {
		// The batch is considered delivered-with-error; it is not re-queued
		slog.Error("❌ Batch processing failed", "context", batch.ContextID, "error", err)
		if m.listener != nil {
			m.listener.OnQueueError(batch.ContextID, err)
		}
		return
	}

	m.stamina.Consume(len(batch.Messages))
	m.totalProcessed.Add(1)

	if m.listener != nil {
		m.listener.OnQueueFlushed(&api.FlushOutcome{
			ContextID:  batch.ContextID,
			Reason:     batch.Reason,
			Decision:   decision,
			Batch:      batch,
			InboundIDs: batch.InboundIDs(),
		})
	}
}

// cleanup deletes a context that is empty, timer-less and idle.
func (m *Manager) cleanup(state *contextState) {
	state.mu.Lock()
	removable := len(state.messages) == 0 && state.silenceTimer == nil && !state.processing
	state.mu.Unlock()
	if !removable {
		return
	}
	m.mu.Lock()
	// Re-check under the outer lock in case a concurrent enqueue revived it
	state.mu.Lock()
	if len(state.messages) == 0 && state.silenceTimer == nil && !state.processing {
		state.removed = true
		delete(m.contexts, state.contextID)
	}
	state.mu.Unlock()
	m.mu.Unlock()
}

func (m *Manager) getOrCreate(contextID string) *contextState {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.contexts[contextID]
	if !ok {
		state = &contextState{contextID: contextID}
		m.contexts[contextID] = state
	}
	return state
}

// claim returns the live state for a context with its lock held. A state that
// a concurrent cleanup deleted between the map read and the lock is dead — a
// message appended to it would sit on an orphan and never flush — so claim
// retries until it holds the state currently mapped for the context.
func (m *Manager) claim(contextID string) *contextState {
	for {
		state := m.getOrCreate(contextID)
		state.mu.Lock()
		if !state.removed {
			return state
		}
		state.mu.Unlock()
	}
}

func (m *Manager) lookup(contextID string) *contextState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contexts[contextID]
}

func (m *Manager) allContexts() []*contextState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*contextState, 0, len(m.contexts))
	for _, state := range m.contexts {
		out = append(out, state)
	}
	return out
}

// Status returns a read-only snapshot of every active context.
func (m *Manager) Status() []ContextStatus {
	states := m.allContexts()
	out := make([]ContextStatus, 0, len(states))
	for _, state := range states {
		state.mu.Lock()
		out = append(out, ContextStatus{
			ContextID:   state.contextID,
			Queued:      len(state.messages),
			Processing:  state.processing,
			LastFlushAt: state.lastFlushAt,
			LastReason:  state.lastReason,
		})
		state.mu.Unlock()
	}
	return out
}

// Shutdown cancels every silence timer. Queued messages are left in place;
// the process is exiting and nothing persists.
func (m *Manager) Shutdown() {
	for _, state := range m.allContexts() {
		state.mu.Lock()
		if state.silenceTimer != nil {
			state.silenceTimer.Stop()
			state.silenceTimer = nil
		}
		state.mu.Unlock()
	}
	slog.Info("📪 Queue manager shut down")
}

// SetClock overrides the time source. Test hook.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}
