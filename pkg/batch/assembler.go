package batch

import (
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"fingerbot/pkg/api"
	"fingerbot/pkg/history"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Summary condenses a batch for the model's context header.
type Summary struct {
	MessageCount    int  `json:"messageCount"`
	UserCount       int  `json:"userCount"`
	TimespanSeconds int  `json:"timespanSeconds"`
	HasHighPriority bool `json:"hasHighPriority"`
}

// StructuredContext is the JSON object handed to the LLM alongside the main
// content: a batch summary, the queued messages, and up to contextSize prior
// history entries for the same conversation.
type StructuredContext struct {
	Summary       Summary         `json:"summary"`
	QueueMessages []history.Entry `json:"queueMessages"`
	RecentHistory []history.Entry `json:"recentHistory"`
}

// Assembler transforms a drained batch into the LLM input shape and commits
// the batch into the per-conversation history ring.
type Assembler struct {
	botID       string
	store       *history.Store
	contextSize int
}

// NewAssembler wires the assembler to the history store. contextSize bounds
// the recentHistory slice (50 by default).
func NewAssembler(botID string, store *history.Store, contextSize int) *Assembler {
	if contextSize <= 0 {
		contextSize = 50
	}
	return &Assembler{
		botID:       botID,
		store:       store,
		contextSize: contextSize,
	}
}

// Assemble produces the mainContent string and the serialized structured
// context for a batch, then commits the batch messages into history.
// mainContent is the last high-priority message if any, else the last message.
func (a *Assembler) Assemble(batch *api.Batch) (string, string, error) {
	msgs := batch.Messages

	mainContent := ""
	if len(msgs) > 0 {
		mainContent = msgs[len(msgs)-1].Content
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].IsHighPriority {
				mainContent = msgs[i].Content
				break
			}
		}
	}

	entries := make([]history.Entry, 0, len(msgs))
	users := make(map[string]struct{})
	hasHighPriority := false
	for _, m := range msgs {
		entries = append(entries, a.toEntry(m))
		users[m.Session.UserID] = struct{}{}
		if m.IsHighPriority {
			hasHighPriority = true
		}
	}

	timespan := 0
	if len(msgs) > 1 {
		timespan = int(msgs[len(msgs)-1].EnqueuedAt.Sub(msgs[0].EnqueuedAt).Seconds())
	}

	// Prior history is captured before the batch itself is committed
	recent := a.store.Recent(batch.ContextID, a.contextSize)
	a.store.Append(batch.ContextID, entries...)

	sc := StructuredContext{
		Summary: Summary{
			MessageCount:    len(msgs),
			UserCount:       len(users),
			TimespanSeconds: timespan,
			HasHighPriority: hasHighPriority,
		},
		QueueMessages: entries,
		RecentHistory: recent,
	}

	serialized, err := json.MarshalToString(&sc)
	if err != nil {
		return "", "", err
	}
	return mainContent, serialized, nil
}

// CommitReply records the chosen reply text as an assistant-role entry in
// the conversation's history.
func (a *Assembler) CommitReply(contextID, text string) {
	a.store.Append(contextID, history.Entry{
		SenderID:   a.botID,
		SenderName: a.botID,
		Content:    text,
		Timestamp:  time.Now(),
		Role:       "assistant",
	})
}

func (a *Assembler) toEntry(m *api.QueuedMessage) history.Entry {
	role := "user"
	if strings.EqualFold(m.Session.UserID, a.botID) {
		role = "assistant"
	}
	name := m.Session.Username
	if name == "" {
		name = m.Session.UserID
	}
	return history.Entry{
		MessageID:  m.ID,
		SenderID:   m.Session.UserID,
		SenderName: name,
		Content:    m.Content,
		Timestamp:  m.ReceivedAt,
		Role:       role,
	}
}
