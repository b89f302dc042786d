package agent

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fingerbot/pkg/api"
	"fingerbot/pkg/config"

	_ "fingerbot/pkg/llm/autoload"
)

func TestCommandRegistryDispatch(t *testing.T) {
	r := NewCommandRegistry()
	var gotArgs []string
	r.Register("ping", func(args []string) string {
		gotArgs = args
		return "pong"
	})

	reply, ok := r.Dispatch("/ping one two")
	require.True(t, ok)
	assert.Equal(t, "pong", reply)
	assert.Equal(t, []string{"one", "two"}, gotArgs)

	// Command names are matched case-insensitively.
	_, ok = r.Dispatch("/PING")
	assert.True(t, ok)

	_, ok = r.Dispatch("/unknown")
	assert.False(t, ok)
	_, ok = r.Dispatch("   ")
	assert.False(t, ok)
	_, ok = r.Dispatch("/")
	assert.False(t, ok)
}

type fakeResponder struct {
	mu      sync.Mutex
	replies []*api.OutboundReply
}

func (f *fakeResponder) SendReply(_ api.Session, reply *api.OutboundReply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, reply)
	return nil
}

func (f *fakeResponder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.replies)
}

func newTestAgent(t *testing.T) (*Agent, *fakeResponder) {
	t.Helper()
	cfg := &config.Config{
		BotID:   "10001",
		BotName: "Finger",
		AdminID: "999",
		Persona: "test persona",
		LLM:     jsoniter.RawMessage(`[{"type": "ollama", "models": ["test-model"]}]`),
		Credentials: config.CredentialConfig{
			Primary: []string{"key-alpha"},
		},
	}
	cfg.ApplyDefaults()
	cfg.Scheduler.SilenceSeconds = 300 // keep timers out of the test
	cfg.ThoughtLogPath = filepath.Join(t.TempDir(), "thoughts.ndjson")

	a, err := New(cfg, config.DefaultSystemConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(a.Shutdown)

	responder := &fakeResponder{}
	a.SetResponder(responder)
	a.accepting.Store(true) // skip Start: no background loops needed here
	return a, responder
}

func adminMsg(content string) *api.InboundMessage {
	kind := api.KindText
	if len(content) > 0 && content[0] == '/' {
		kind = api.KindCommand
	}
	return &api.InboundMessage{
		ID:      "a1",
		Content: content,
		Kind:    kind,
		Session: api.Session{
			ChannelID: "onebot", UserID: "999", ChatID: "777",
			Username: "admin", Group: true,
		},
		ReceivedAt: time.Now(),
	}
}

func TestAdminCommandBypassesQueue(t *testing.T) {
	a, responder := newTestAgent(t)

	a.OnMessage(adminMsg("/stamina"))

	require.Equal(t, 1, responder.count())
	assert.Contains(t, responder.replies[0].Content, "Stamina")
	assert.Empty(t, a.queue.Status())
}

func TestAdminQueueStatusCommand(t *testing.T) {
	a, responder := newTestAgent(t)

	reply, ok := a.commands.Dispatch("/queue status")
	require.True(t, ok)
	assert.Contains(t, reply, "No active contexts")
	assert.Equal(t, 0, responder.count())
}

func TestAdminStopAndStartToggleGroups(t *testing.T) {
	a, _ := newTestAgent(t)

	reply, ok := a.commands.Dispatch("/stop")
	require.True(t, ok)
	assert.Contains(t, reply, "disabled")
	assert.False(t, a.queue.GroupsEnabled())

	reply, ok = a.commands.Dispatch("/start")
	require.True(t, ok)
	assert.Contains(t, reply, "enabled")
	assert.True(t, a.queue.GroupsEnabled())
}

func TestAdminStaminaSetCommand(t *testing.T) {
	a, _ := newTestAgent(t)

	_, ok := a.commands.Dispatch("/stamina set 42")
	require.True(t, ok)
	assert.InDelta(t, 42, a.stamina.Snapshot().Current, 0.5)

	reply, _ := a.commands.Dispatch("/stamina set notanumber")
	assert.Contains(t, reply, "Invalid number")
}

func TestAdminApikeysCommand(t *testing.T) {
	a, _ := newTestAgent(t)

	reply, ok := a.commands.Dispatch("/apikeys")
	require.True(t, ok)
	assert.Contains(t, reply, "Credentials")
	// Secrets never appear unmasked.
	assert.NotContains(t, reply, "key-alpha")
}

func TestOrdinaryMessageGoesToQueue(t *testing.T) {
	a, responder := newTestAgent(t)

	msg := adminMsg("just chatting")
	msg.Session.UserID = "555"
	a.OnMessage(msg)

	assert.Equal(t, 0, responder.count())
	status := a.queue.Status()
	require.Len(t, status, 1)
	assert.Equal(t, 1, status[0].Queued)
	assert.Equal(t, 1, a.correlator.PendingCount())
}

func TestIngressClosedDropsMessages(t *testing.T) {
	a, responder := newTestAgent(t)
	a.accepting.Store(false)

	a.OnMessage(adminMsg("/stamina"))
	assert.Equal(t, 0, responder.count())
	assert.Empty(t, a.queue.Status())
}
