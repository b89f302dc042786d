package gateway

import (
	"fingerbot/pkg/api"
)

// Re-export types from api package via aliases so channel implementations
// can depend on the gateway package alone.
type Channel = api.Channel
type MessageResponder = api.MessageResponder
type ChannelContext = api.ChannelContext
type InboundMessage = api.InboundMessage
type OutboundReply = api.OutboundReply
type Session = api.Session

type MessageHandler = api.MessageHandler
