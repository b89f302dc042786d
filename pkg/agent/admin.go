package agent

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CommandFunc executes one admin command and returns the reply text.
type CommandFunc func(args []string) string

// CommandRegistry maps admin command names to their implementations.
// Commands bypass the queue entirely and answer immediately.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[string]CommandFunc
}

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{commands: make(map[string]CommandFunc)}
}

// Register installs a command under its name (without the "/" sigil).
func (r *CommandRegistry) Register(name string, fn CommandFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[name] = fn
}

// Dispatch parses "/name arg arg" and runs the matching command.
// The bool is false when no such command exists.
func (r *CommandRegistry) Dispatch(line string) (string, bool) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "/"))
	if len(fields) == 0 {
		return "", false
	}

	r.mu.RLock()
	fn, ok := r.commands[strings.ToLower(fields[0])]
	r.mu.RUnlock()
	if !ok {
		return "", false
	}
	return fn(fields[1:]), true
}

// registerCommands installs the built-in admin command set.
func (a *Agent) registerCommands() {
	a.commands.Register("queue", func(args []string) string {
		if len(args) == 0 {
			args = []string{"status"}
		}
		switch args[0] {
		case "status":
			statuses := a.queue.Status()
			if len(statuses) == 0 {
				return fmt.Sprintf("📦 No active contexts. Total batches processed: %d", a.queue.TotalProcessed())
			}
			var sb strings.Builder
			fmt.Fprintf(&sb, "📦 Active contexts: %d (total processed: %d)\n", len(statuses), a.queue.TotalProcessed())
			for _, s := range statuses {
				fmt.Fprintf(&sb, "- %s: queued=%d processing=%v", s.ContextID, s.Queued, s.Processing)
				if !s.LastFlushAt.IsZero() {
					fmt.Fprintf(&sb, " last=%s(%s)", s.LastFlushAt.Format("15:04:05"), s.LastReason)
				}
				sb.WriteString("\n")
			}
			return strings.TrimRight(sb.String(), "\n")
		case "flush":
			return fmt.Sprintf("📤 Flushed %d contexts", a.queue.FlushAll())
		case "clear":
			return fmt.Sprintf("🗑️ Dropped %d queued messages", a.queue.Clear())
		default:
			return "Usage: /queue [status|flush|clear]"
		}
	})

	a.commands.Register("stamina", func(args []string) string {
		if len(args) == 0 {
			s := a.stamina.Snapshot()
			return fmt.Sprintf("⚡ Stamina %.1f/%.0f (%s) momentum=%.2f rest=%v",
				s.Current, s.Max, s.Level, s.Momentum, s.RestMode)
		}
		switch args[0] {
		case "rest":
			s := a.stamina.Snapshot()
			a.stamina.SetRestMode(!s.RestMode)
			return fmt.Sprintf("⚡ Rest mode now %v", !s.RestMode)
		case "set":
			if len(args) < 2 {
				return "Usage: /stamina set N"
			}
			v, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return "Invalid number: " + args[1]
			}
			a.stamina.SetCurrent(v)
			return fmt.Sprintf("⚡ Stamina forced to %.1f", v)
		default:
			return "Usage: /stamina [rest|set N]"
		}
	})

	a.commands.Register("apikeys", func(args []string) string {
		var sb strings.Builder
		sb.WriteString("🔑 Credentials:\n")
		for _, s := range a.pool.Snapshot() {
			state := "healthy"
			if s.Blocked {
				state = "blocked until " + s.BlockedAt.Add(time.Hour).Format("15:04:05")
			} else if s.ErrorCount > 0 {
				state = fmt.Sprintf("failing (%d errors)", s.ErrorCount)
			}
			fmt.Fprintf(&sb, "- %s: %s\n", s.Masked, state)
		}
		return strings.TrimRight(sb.String(), "\n")
	})

	a.commands.Register("resetkey", func(args []string) string {
		if len(args) == 0 {
			return "Usage: /resetkey <prefix>"
		}
		return fmt.Sprintf("🔑 Reset %d credentials", a.pool.ForceReset(args[0]))
	})

	a.commands.Register("switchkey", func(args []string) string {
		return "🔑 Now using " + a.pool.ForceAdvance()
	})

	a.commands.Register("start", func(args []string) string {
		a.queue.SetGroupsEnabled(true)
		return "▶️ Group processing enabled"
	})

	a.commands.Register("stop", func(args []string) string {
		a.queue.SetGroupsEnabled(false)
		return "⏸️ Group processing disabled"
	})
}
