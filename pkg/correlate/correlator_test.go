package correlate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fingerbot/pkg/api"
	"fingerbot/pkg/llm"
	"fingerbot/pkg/task"
)

// event is one handled task, tagged so cross-kind ordering is observable.
type event struct {
	kind    string
	deliver *DeliverReplyPayload
	thought *RecordThoughtPayload
}

func newSinkRunner(t *testing.T) (*task.Runner, chan event) {
	t.Helper()
	events := make(chan event, 32)
	r := task.NewRunner(3)
	r.Register(task.KindDeliverReply, func(_ context.Context, payload any) error {
		events <- event{kind: "deliver", deliver: payload.(*DeliverReplyPayload)}
		return nil
	})
	r.Register(task.KindRecordThought, func(_ context.Context, payload any) error {
		events <- event{kind: "thought", thought: payload.(*RecordThoughtPayload)}
		return nil
	})
	r.Start()
	t.Cleanup(r.Shutdown)
	return r, events
}

func nextEvent(t *testing.T, events chan event) event {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for task event")
		return event{}
	}
}

func inbound(id, userID, content string) *api.InboundMessage {
	return &api.InboundMessage{
		ID:      id,
		Content: content,
		Session: api.Session{
			ChannelID: "onebot", UserID: userID, ChatID: "777",
			Username: userID, Group: true,
		},
		ReceivedAt: time.Now(),
	}
}

func outcome(decision *llm.Decision, inboundIDs ...string) *api.FlushOutcome {
	return &api.FlushOutcome{
		ContextID:  "group:777",
		Reason:     api.TriggerSilence,
		Decision:   decision,
		InboundIDs: inboundIDs,
	}
}

func TestReplyDispatchedToNewestEvent(t *testing.T) {
	runner, events := newSinkRunner(t)
	c := NewCorrelator(runner, 30*time.Minute)

	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return now })

	c.Track(inbound("m1", "alice", "first"))
	now = now.Add(5 * time.Second)
	c.Track(inbound("m2", "bob", "second"))

	c.OnQueueFlushed(outcome(&llm.Decision{
		Reply:    true,
		Messages: []string{"part one", "part two"},
		Mentions: []string{"alice"},
		Thinking: "answering the thread",
	}, "m1", "m2"))

	first := nextEvent(t, events)
	require.Equal(t, "deliver", first.kind)
	assert.Equal(t, "part one", first.deliver.Reply.Content)
	assert.Equal(t, "alice", first.deliver.Reply.Mention)
	// Routed to the session of the newest correlated event.
	assert.Equal(t, "bob", first.deliver.Session.UserID)

	second := nextEvent(t, events)
	require.Equal(t, "deliver", second.kind)
	assert.Equal(t, "part two", second.deliver.Reply.Content)
	assert.Empty(t, second.deliver.Reply.Mention)

	third := nextEvent(t, events)
	require.Equal(t, "thought", third.kind)
	assert.Equal(t, "thinking", third.thought.MemoryType)
	assert.Equal(t, "answering the thread", third.thought.Content)
	assert.Equal(t, "group:777", third.thought.Metadata["contextId"])

	assert.Equal(t, 0, c.PendingCount())
}

func TestNoReplyRecordsThoughtOnly(t *testing.T) {
	runner, events := newSinkRunner(t)
	c := NewCorrelator(runner, 30*time.Minute)

	c.Track(inbound("m1", "alice", "chatter"))
	c.OnQueueFlushed(outcome(&llm.Decision{
		Reply:    false,
		Reason:   "not addressed to me",
		Thinking: "staying out of it",
	}, "m1"))

	e := nextEvent(t, events)
	assert.Equal(t, "thought", e.kind)
	assert.Equal(t, "staying out of it", e.thought.Content)
	assert.Equal(t, 0, c.PendingCount())
}

func TestDecisionIDsWinOverBatchIDs(t *testing.T) {
	runner, events := newSinkRunner(t)
	c := NewCorrelator(runner, 30*time.Minute)

	c.Track(inbound("m1", "alice", "target"))
	c.Track(inbound("m2", "bob", "bystander"))

	c.OnQueueFlushed(outcome(&llm.Decision{
		Reply:                true,
		Messages:             []string{"just for alice"},
		Thinking:             "t",
		CorrelatedInboundIDs: []string{"m1"},
	}, "m1", "m2"))

	e := nextEvent(t, events)
	require.Equal(t, "deliver", e.kind)
	assert.Equal(t, "alice", e.deliver.Session.UserID)

	// The uncorrelated event is left pending for a later flush.
	assert.Equal(t, 1, c.PendingCount())
}

func TestAllPendingFallback(t *testing.T) {
	runner, events := newSinkRunner(t)
	c := NewCorrelator(runner, 30*time.Minute)

	c.Track(inbound("m1", "alice", "hello"))

	// No decision ids, no batch ids: degrade to everything pending.
	c.OnQueueFlushed(outcome(&llm.Decision{
		Reply:    true,
		Messages: []string{"best effort"},
		Thinking: "t",
	}))

	e := nextEvent(t, events)
	require.Equal(t, "deliver", e.kind)
	assert.Equal(t, "alice", e.deliver.Session.UserID)
	assert.Equal(t, 0, c.PendingCount())
}

func TestReplyWithNoMatchIsDropped(t *testing.T) {
	runner, events := newSinkRunner(t)
	c := NewCorrelator(runner, 30*time.Minute)

	c.OnQueueFlushed(outcome(&llm.Decision{
		Reply:    true,
		Messages: []string{"to nobody"},
		Thinking: "t",
	}, "never-tracked"))

	select {
	case e := <-events:
		t.Fatalf("unexpected task %q", e.kind)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNilDecisionIgnored(t *testing.T) {
	runner, events := newSinkRunner(t)
	c := NewCorrelator(runner, 30*time.Minute)

	c.Track(inbound("m1", "alice", "hello"))
	c.OnQueueFlushed(outcome(nil, "m1"))

	select {
	case <-events:
		t.Fatal("unexpected task for nil decision")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, 1, c.PendingCount())
}

// Channel-minted ids carry their creation second; the sweep must age such an
// entry from the id, not from when Track happened to run.
func TestSweepAgesFromIDEmbeddedTime(t *testing.T) {
	runner, _ := newSinkRunner(t)
	c := NewCorrelator(runner, 30*time.Minute)

	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return now })

	// An id minted an hour ago, tracked only now.
	minted := now.Add(-time.Hour)
	staleID := fmt.Sprintf("%08x%s", uint32(minted.Unix()), "00000000deadbeef")
	c.Track(&api.InboundMessage{ID: staleID, Session: api.Session{UserID: "alice"}})
	c.Track(inbound("m1", "bob", "fresh"))
	require.Equal(t, 2, c.PendingCount())

	c.sweep()
	assert.Equal(t, 1, c.PendingCount())
}

func TestSweepEvictsExpired(t *testing.T) {
	runner, _ := newSinkRunner(t)
	c := NewCorrelator(runner, 30*time.Minute)

	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return now })

	c.Track(inbound("m1", "alice", "old"))
	now = now.Add(20 * time.Minute)
	c.Track(inbound("m2", "bob", "newer"))
	require.Equal(t, 2, c.PendingCount())

	// 31 minutes after m1, 11 after m2: only m1 crosses the TTL.
	now = now.Add(11 * time.Minute)
	c.sweep()
	assert.Equal(t, 1, c.PendingCount())

	now = now.Add(30 * time.Minute)
	c.sweep()
	assert.Equal(t, 0, c.PendingCount())
}
