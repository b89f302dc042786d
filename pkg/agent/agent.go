package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"fingerbot/pkg/api"
	"fingerbot/pkg/batch"
	"fingerbot/pkg/config"
	"fingerbot/pkg/correlate"
	"fingerbot/pkg/credential"
	"fingerbot/pkg/history"
	"fingerbot/pkg/llm"
	"fingerbot/pkg/monitor"
	"fingerbot/pkg/queue"
	"fingerbot/pkg/stamina"
	"fingerbot/pkg/task"
	"fingerbot/pkg/thoughtlog"
)

// Agent is the orchestrator: it owns the component lifecycle, routes inbound
// events into the queue, answers admin commands, and wires LLM decisions back
// out through the task runner.
type Agent struct {
	cfg *config.Config
	sys *config.SystemConfig

	pool       *credential.Pool
	stamina    *stamina.Controller
	client     *llm.Client
	store      *history.Store
	queue      *queue.Manager
	correlator *correlate.Correlator
	runner     *task.Runner
	thoughts   *thoughtlog.Log
	commands   *CommandRegistry

	responder api.MessageResponder
	monitor   monitor.Monitor

	accepting atomic.Bool
}

// New assembles the full component graph. A config without credentials has
// already been refused by config validation; everything else here is
// non-fatal wiring.
func New(cfg *config.Config, sys *config.SystemConfig, mon monitor.Monitor) (*Agent, error) {
	provider, err := llm.NewFromConfig(cfg.LLM, sys)
	if err != nil {
		return nil, fmt.Errorf("llm init failed: %w", err)
	}

	a := &Agent{
		cfg:      cfg,
		sys:      sys,
		monitor:  mon,
		commands: NewCommandRegistry(),
	}

	a.pool = credential.NewPool(cfg.Credentials.Merged())
	a.stamina = stamina.NewController(cfg.Stamina)

	prompts := &llm.PromptBuilder{
		Persona: cfg.Persona,
		Traits:  cfg.Traits,
		BotID:   cfg.BotID,
		BotName: cfg.BotName,
	}
	a.client = llm.NewClient(provider, a.pool, prompts, sys)

	a.store = history.NewStore(sys.HistoryRingSize)
	assembler := batch.NewAssembler(cfg.BotID, a.store, sys.HistoryContextSize)
	pipeline := batch.NewPipeline(assembler, a.client)

	a.runner = task.NewRunner(sys.TaskMaxAttempts)
	a.correlator = correlate.NewCorrelator(a.runner, time.Duration(sys.CorrelationTTLMinutes)*time.Minute)
	a.queue = queue.NewManager(cfg.BotID, cfg.DisplayName(), cfg.Scheduler, a.stamina, pipeline, a.correlator)

	a.thoughts = thoughtlog.New(cfg.ThoughtLogPath)

	a.runner.Register(task.KindDeliverReply, a.deliverReply)
	a.runner.Register(task.KindRecordThought, a.recordThought)
	a.registerCommands()

	return a, nil
}

// Start boots every component and runs the non-fatal LLM health probe.
func (a *Agent) Start(ctx context.Context) {
	a.pool.Start()
	a.stamina.Start()
	a.runner.Start()
	a.correlator.Start()

	if err := a.client.HealthCheck(ctx); err != nil {
		slog.Warn("⚠️ LLM health probe failed, starting degraded (ingress still buffers)", "error", err)
	} else {
		slog.Info("✅ LLM backend reachable")
	}

	a.accepting.Store(true)
	slog.Info("🤖 Agent started", "bot", a.cfg.DisplayName())
}

// Shutdown stops ingress, drains the in-flight task, and tears the
// components down in dependency order.
func (a *Agent) Shutdown() {
	a.accepting.Store(false)
	a.runner.Shutdown()
	a.queue.Shutdown()
	a.correlator.Shutdown()
	a.stamina.Stop()
	a.pool.Stop()
	if err := a.thoughts.Close(); err != nil {
		slog.Warn("Failed to close thought log", "error", err)
	}
	slog.Info("🤖 Agent stopped")
}

// SetResponder implements api.ResponderAware; the gateway injects itself.
func (a *Agent) SetResponder(responder api.MessageResponder) {
	a.responder = responder
}

// OnMessage implements api.MessageProcessor: the single ingress point for
// every inbound event from every channel.
func (a *Agent) OnMessage(msg *api.InboundMessage) {
	if !a.accepting.Load() {
		slog.Debug("Ingress closed, dropping message", "id", msg.ID)
		return
	}

	if a.monitor != nil {
		a.monitor.OnMessage(monitor.MonitorMessage{
			Timestamp:   msg.ReceivedAt,
			MessageType: "USER",
			ContextID:   msg.Session.ContextID(),
			Username:    msg.Session.Username,
			Content:     msg.Content,
			Stamina:     -1,
		})
	}

	a.correlator.Track(msg)

	// Admin commands bypass the queue and answer immediately. Commands from
	// anyone else fall through as ordinary text.
	if msg.IsCommand() && msg.Session.UserID == a.cfg.AdminID {
		if reply, ok := a.commands.Dispatch(msg.Content); ok {
			a.respond(msg.Session, &api.OutboundReply{Content: reply})
			return
		}
	}

	a.queue.Enqueue(msg)
}

// WatchConfig applies hot-reloadable tunables whenever the config file
// changes. Only scheduler and stamina settings reload live.
func (a *Agent) WatchConfig(ctx context.Context, path string) {
	reloadCh := config.Watch(ctx, path)
	go func() {
		for range reloadCh {
			cfg, _, err := config.Load()
			if err != nil {
				slog.Warn("🔁 Config reload failed, keeping previous settings", "error", err)
				continue
			}
			a.queue.SetSchedulerConfig(cfg.Scheduler)
			a.stamina.SetConfig(cfg.Stamina)
		}
	}()
}

// deliverReply is the deliver-reply task handler.
func (a *Agent) deliverReply(ctx context.Context, payload any) error {
	p, ok := payload.(*correlate.DeliverReplyPayload)
	if !ok {
		return fmt.Errorf("unexpected deliver-reply payload %T", payload)
	}
	if err := a.respond(p.Session, p.Reply); err != nil {
		return err
	}

	if a.monitor != nil {
		a.monitor.OnMessage(monitor.MonitorMessage{
			Timestamp:   time.Now(),
			MessageType: "ASSISTANT",
			ContextID:   p.Session.ContextID(),
			Content:     p.Reply.Content,
			Stamina:     a.stamina.Snapshot().Current,
		})
	}
	return nil
}

// recordThought is the record-thought task handler.
func (a *Agent) recordThought(ctx context.Context, payload any) error {
	p, ok := payload.(*correlate.RecordThoughtPayload)
	if !ok {
		return fmt.Errorf("unexpected record-thought payload %T", payload)
	}
	return a.thoughts.Append(p.MemoryType, p.Content, p.Metadata)
}

func (a *Agent) respond(session api.Session, reply *api.OutboundReply) error {
	if a.responder == nil {
		return fmt.Errorf("no responder attached")
	}
	return a.responder.SendReply(session, reply)
}

// Status aggregates component snapshots for the observability surface.
type Status struct {
	Stamina     stamina.Snapshot      `json:"stamina"`
	Credentials []credential.Status   `json:"credentials"`
	Queue       []queue.ContextStatus `json:"queue"`
	Pending     int                   `json:"pendingCorrelations"`
	Processed   uint64                `json:"batchesProcessed"`
}

// Snapshot returns the read-only system status.
func (a *Agent) Snapshot() Status {
	return Status{
		Stamina:     a.stamina.Snapshot(),
		Credentials: a.pool.Snapshot(),
		Queue:       a.queue.Status(),
		Pending:     a.correlator.PendingCount(),
		Processed:   a.queue.TotalProcessed(),
	}
}
