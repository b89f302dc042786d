package api

import (
	"context"
	"time"

	"fingerbot/pkg/llm"
)

// TriggerReason names the policy that caused a per-context flush.
type TriggerReason string

const (
	TriggerHighPriority TriggerReason = "high_priority"
	TriggerSilence      TriggerReason = "silence"
	TriggerSize         TriggerReason = "size"
	TriggerAge          TriggerReason = "age"
	TriggerManual       TriggerReason = "manual"
)

// QueuedMessage wraps an InboundMessage with the queue-assigned fields.
// Added at ingress, never mutated afterwards.
type QueuedMessage struct {
	InboundMessage
	IsHighPriority bool
	EnqueuedAt     time.Time
}

// Batch is the snapshot drained from one per-context queue by a trigger.
// All messages share the same ContextID.
type Batch struct {
	ContextID string
	Reason    TriggerReason
	Messages  []*QueuedMessage
}

// LastSession returns the session of the newest message, used for routing
// the eventual reply back to the platform.
func (b *Batch) LastSession() Session {
	if len(b.Messages) == 0 {
		return Session{}
	}
	return b.Messages[len(b.Messages)-1].Session
}

// InboundIDs lists the message ids the batch carries, in queue order.
func (b *Batch) InboundIDs() []string {
	ids := make([]string, 0, len(b.Messages))
	for _, m := range b.Messages {
		ids = append(ids, m.ID)
	}
	return ids
}

// FlushResult is the immediate outcome of a flush request. A refused flush
// (busy context, insufficient stamina, empty queue) is a normal result,
// not an error.
type FlushResult struct {
	Processed bool
	Reason    string // "queue_busy", "stamina_insufficient", "empty", "skip_reply" or "" on success
}

// FlushOutcome is the event payload emitted after a batch was successfully
// processed by the LLM pipeline.
type FlushOutcome struct {
	ContextID  string
	Reason     TriggerReason
	Decision   *llm.Decision
	Batch      *Batch
	InboundIDs []string // ids of the flushed snapshot, in order
}

// QueueEventListener receives flush events from the queue manager. The queue
// never references the orchestrator directly; the orchestrator and the
// correlator subscribe through this interface instead.
type QueueEventListener interface {
	OnQueueFlushed(outcome *FlushOutcome)
	OnQueueError(contextID string, err error)
}

// BatchProcessor turns a drained batch into an LLM decision. Implemented by
// the batch pipeline (assembler + LLM client).
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, batch *Batch) (*llm.Decision, error)
}
