package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// orderRecorder collects the payloads a handler saw, in execution order.
type orderRecorder struct {
	mu   sync.Mutex
	seen []string
}

func (r *orderRecorder) handler(_ context.Context, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, payload.(string))
	return nil
}

func (r *orderRecorder) order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.seen))
	copy(out, r.seen)
	return out
}

func waitTask(t *testing.T, task *Task) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return task.Wait(ctx)
}

func TestTasksRunInFIFOOrder(t *testing.T) {
	rec := &orderRecorder{}
	r := NewRunner(3)
	r.Register(KindDeliverReply, rec.handler)

	var tasks []*Task
	for i := 0; i < 4; i++ {
		task, err := r.Enqueue(KindDeliverReply, fmt.Sprintf("reply %d", i))
		require.NoError(t, err)
		tasks = append(tasks, task)
	}

	r.Start()
	defer r.Shutdown()
	for _, task := range tasks {
		require.NoError(t, waitTask(t, task))
	}

	assert.Equal(t, []string{"reply 0", "reply 1", "reply 2", "reply 3"}, rec.order())
	assert.Equal(t, 0, r.Pending())
}

func TestHighPriorityRunsFirst(t *testing.T) {
	rec := &orderRecorder{}
	r := NewRunner(3)
	r.Register(KindDeliverReply, rec.handler)

	a, err := r.Enqueue(KindDeliverReply, "normal a")
	require.NoError(t, err)
	b, err := r.Enqueue(KindDeliverReply, "normal b")
	require.NoError(t, err)
	urgent, err := r.Enqueue(KindDeliverReply, "urgent", WithPriority(PriorityHigh))
	require.NoError(t, err)

	r.Start()
	defer r.Shutdown()
	for _, task := range []*Task{a, b, urgent} {
		require.NoError(t, waitTask(t, task))
	}

	assert.Equal(t, []string{"urgent", "normal a", "normal b"}, rec.order())
}

func TestRetryThenSuccess(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	r := NewRunner(3)
	r.Register(KindDeliverReply, func(_ context.Context, _ any) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return errors.New("transient send failure")
		}
		return nil
	})
	r.Start()
	defer r.Shutdown()

	task, err := r.Enqueue(KindDeliverReply, "payload")
	require.NoError(t, err)
	require.NoError(t, waitTask(t, task))
	assert.Equal(t, 2, task.Attempts)
}

func TestTerminalFailureRejectsFuture(t *testing.T) {
	r := NewRunner(3)
	r.Register(KindDeliverReply, func(_ context.Context, _ any) error {
		return errors.New("endpoint gone")
	})
	r.Start()
	defer r.Shutdown()

	task, err := r.Enqueue(KindDeliverReply, "payload", WithMaxAttempts(1))
	require.NoError(t, err)

	werr := waitTask(t, task)
	require.Error(t, werr)
	assert.ErrorContains(t, werr, "endpoint gone")
	assert.Equal(t, 1, task.Attempts)
}

func TestPanickingHandlerCountsAsFailure(t *testing.T) {
	r := NewRunner(3)
	r.Register(KindRecordThought, func(_ context.Context, _ any) error {
		panic("nil map write")
	})
	r.Start()
	defer r.Shutdown()

	task, err := r.Enqueue(KindRecordThought, "payload", WithMaxAttempts(1))
	require.NoError(t, err)

	werr := waitTask(t, task)
	require.Error(t, werr)
	assert.ErrorContains(t, werr, "panicked")
}

func TestEnqueueUnknownKind(t *testing.T) {
	r := NewRunner(3)
	_, err := r.Enqueue(Kind("no-such-kind"), "payload")
	require.Error(t, err)
	assert.ErrorContains(t, err, "no handler registered")
}

func TestShutdownRejectsQueuedFutures(t *testing.T) {
	r := NewRunner(3)
	r.Register(KindDeliverReply, func(_ context.Context, _ any) error { return nil })

	// Worker never started: the task sits queued until shutdown.
	task, err := r.Enqueue(KindDeliverReply, "payload")
	require.NoError(t, err)

	r.Shutdown()

	werr := waitTask(t, task)
	require.Error(t, werr)
	assert.ErrorContains(t, werr, "shut down")

	_, err = r.Enqueue(KindDeliverReply, "late")
	assert.Error(t, err)
}
