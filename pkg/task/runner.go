package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind names a registered task family.
type Kind string

const (
	KindDeliverReply  Kind = "deliver-reply"
	KindRecordThought Kind = "record-thought"
)

// Priority controls queue placement: normal appends, high prepends.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

// Handler executes one task. A returned error schedules a retry until the
// task's attempt budget is spent.
type Handler func(ctx context.Context, payload any) error

// Task is one queued unit of work. Its future resolves on success and
// rejects on terminal failure.
type Task struct {
	ID          string
	Kind        Kind
	Payload     any
	Attempts    int
	MaxAttempts int

	done chan error
}

// Wait blocks until the task reaches a terminal state or the context ends.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Option tunes a single enqueue.
type Option func(*Task, *Priority)

// WithPriority prepends the task instead of appending it.
func WithPriority(p Priority) Option {
	return func(_ *Task, prio *Priority) { *prio = p }
}

// WithMaxAttempts overrides the runner's default attempt budget.
func WithMaxAttempts(n int) Option {
	return func(t *Task, _ *Priority) {
		if n > 0 {
			t.MaxAttempts = n
		}
	}
}

// Runner is a process-wide bounded task queue consumed by a single worker.
// One task is in flight at a time; delivery order is FIFO with priority
// insertion at the front.
type Runner struct {
	mu       sync.Mutex
	handlers map[Kind]Handler
	queue    []*Task
	stopped  bool

	wake   chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup

	defaultMaxAttempts int
	baseDelay          time.Duration
	maxDelay           time.Duration
}

// NewRunner builds a runner with the given default attempt budget.
func NewRunner(defaultMaxAttempts int) *Runner {
	if defaultMaxAttempts <= 0 {
		defaultMaxAttempts = 3
	}
	return &Runner{
		handlers:           make(map[Kind]Handler),
		wake:               make(chan struct{}, 1),
		stopCh:             make(chan struct{}),
		defaultMaxAttempts: defaultMaxAttempts,
		baseDelay:          time.Second,
		maxDelay:           10 * time.Second,
	}
}

// Register installs the handler for a kind. Enqueue refuses unknown kinds.
func (r *Runner) Register(kind Kind, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = handler
}

// Enqueue schedules one task and returns it as a future.
func (r *Runner) Enqueue(kind Kind, payload any, opts ...Option) (*Task, error) {
	t := &Task{
		ID:          uuid.NewString(),
		Kind:        kind,
		Payload:     payload,
		MaxAttempts: r.defaultMaxAttempts,
		done:        make(chan error, 1),
	}
	prio := PriorityNormal
	for _, opt := range opts {
		opt(t, &prio)
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil, fmt.Errorf("task runner is shut down")
	}
	if _, ok := r.handlers[kind]; !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("no handler registered for task kind %q", kind)
	}
	if prio == PriorityHigh {
		r.queue = append([]*Task{t}, r.queue...)
	} else {
		r.queue = append(r.queue, t)
	}
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
	return t, nil
}

// Start launches the worker goroutine.
func (r *Runner) Start() {
	r.wg.Add(1)
	go r.loop()
	slog.Info("🛠️ Task runner started", "max_attempts", r.defaultMaxAttempts)
}

func (r *Runner) loop() {
	defer r.wg.Done()
	for {
		t := r.pop()
		if t == nil {
			select {
			case <-r.stopCh:
				return
			case <-r.wake:
				continue
			}
		}

		r.run(t)

		select {
		case <-r.stopCh:
			return
		default:
		}
	}
}

func (r *Runner) pop() *Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return nil
	}
	t := r.queue[0]
	r.queue = r.queue[1:]
	return t
}

func (r *Runner) prepend(t *Task) {
	r.mu.Lock()
	r.queue = append([]*Task{t}, r.queue...)
	r.mu.Unlock()
}

// run executes one attempt, sleeping and re-queuing at the front on
// retryable failure: min(1s·2^(attempts−1), 10s).
func (r *Runner) run(t *Task) {
	r.mu.Lock()
	handler := r.handlers[t.Kind]
	r.mu.Unlock()

	t.Attempts++
	err := r.invoke(handler, t)
	if err == nil {
		t.done <- nil
		return
	}

	if t.Attempts < t.MaxAttempts {
		delay := r.baseDelay * (1 << (t.Attempts - 1))
		if delay > r.maxDelay {
			delay = r.maxDelay
		}
		slog.Warn("🛠️ Task failed, retrying", "id", t.ID, "kind", t.Kind, "attempt", t.Attempts, "delay", delay, "error", err)
		select {
		case <-r.stopCh:
			t.done <- fmt.Errorf("task runner shut down during retry: %w", err)
			return
		case <-time.After(delay):
		}
		r.prepend(t)
		return
	}

	slog.Error("🛠️ Task failed terminally", "id", t.ID, "kind", t.Kind, "attempts", t.Attempts, "error", err)
	t.done <- fmt.Errorf("task %s failed after %d attempts: %w", t.ID, t.Attempts, err)
}

// invoke runs the handler with panic containment; a panicking handler counts
// as a failed attempt, not a dead worker.
func (r *Runner) invoke(handler Handler, t *Task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task handler panicked: %v", rec)
		}
	}()
	return handler(context.Background(), t.Payload)
}

// Shutdown stops the worker, waits for the in-flight task, and rejects the
// futures of everything still queued.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)
	r.wg.Wait()

	r.mu.Lock()
	remaining := r.queue
	r.queue = nil
	r.mu.Unlock()

	for _, t := range remaining {
		t.done <- fmt.Errorf("task runner shut down before task %s ran", t.ID)
	}
	if len(remaining) > 0 {
		slog.Warn("🛠️ Task runner discarded queued tasks on shutdown", "count", len(remaining))
	}
	slog.Info("🛠️ Task runner stopped")
}

// Pending returns the queue depth. Observability only.
func (r *Runner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}
