package llm

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// Debugger persists raw prompts and completions to the debug/ folder for
// inspection. Disabled by default; every write failure is logged and ignored
// so debugging can never break the reply path.
type Debugger struct {
	enabled bool
	dir     string
	seq     atomic.Uint64
}

func NewDebugger(enabled bool) *Debugger {
	return &Debugger{enabled: enabled, dir: "debug"}
}

// Save writes one prompt/completion pair as a timestamped text file.
func (d *Debugger) Save(stage, prompt, completion string) {
	if !d.enabled {
		return
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		slog.Warn("Failed to create debug directory", "error", err)
		return
	}

	name := fmt.Sprintf("%s_%s_%04d.txt",
		time.Now().Format("20060102_150405"), stage, d.seq.Add(1))

	content := fmt.Sprintf("=== PROMPT ===\n%s\n\n=== COMPLETION ===\n%s\n", prompt, completion)
	if err := os.WriteFile(filepath.Join(d.dir, name), []byte(content), 0o644); err != nil {
		slog.Warn("Failed to write debug file", "file", name, "error", err)
	}
}
