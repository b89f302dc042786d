package api

import (
	"strings"
	"time"
)

// MessageKind classifies an inbound message at ingress.
type MessageKind string

const (
	KindText    MessageKind = "text"
	KindCommand MessageKind = "command" // starts with the command sigil, e.g. "/queue status"
)

// Session encapsulates identity and routing information for a specific
// conversation unit on a specific communication channel.
type Session struct {
	ChannelID string // Identifier of the channel that originated the session (e.g., "onebot")
	UserID    string // Platform-specific unique identifier for the sender
	ChatID    string // Platform-specific identifier for the group (empty for DMs)
	Username  string // Display name or nickname of the sender as provided by the platform
	Group     bool   // True when the message came from a multi-party chat
}

// ContextID derives the logical addressing key for this conversation:
// the group identifier when present, otherwise the sender identifier.
func (s Session) ContextID() string {
	if s.Group && s.ChatID != "" {
		return "group:" + s.ChatID
	}
	return "private:" + s.UserID
}

// InboundMessage defines the standardized internal data structure for all
// incoming messages. Immutable after construction.
type InboundMessage struct {
	ID         string      // Unique identifier assigned at ingress
	Session    Session     // Contextual information about the source (User, Chat)
	Content    string      // Standardized text content of the message
	Kind       MessageKind // text or command
	ReceivedAt time.Time   // Ingress timestamp
	Raw        any         // Optional storage for the original platform-specific payload object
}

// IsCommand reports whether the content carries the command sigil.
func (m *InboundMessage) IsCommand() bool {
	return m.Kind == KindCommand || strings.HasPrefix(strings.TrimSpace(m.Content), "/")
}

// OutboundReply is a single reply line headed back to the originating
// platform. Mention, when set, asks the channel to decorate the reply with a
// platform-native mention of that sender (e.g., [CQ:at,qq=...] on OneBot).
type OutboundReply struct {
	Content string
	Mention string // senderId to mention, empty for none
}
