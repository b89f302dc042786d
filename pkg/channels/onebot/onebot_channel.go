package onebot

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"fingerbot/pkg/api"
	"fingerbot/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OneBotConfig holds the forward-WebSocket connection settings for a
// OneBot v11 compatible event bus (go-cqhttp, NapCat, Lagrange, ...).
type OneBotConfig struct {
	URL              string `json:"url"`                         // ws://host:port
	AccessToken      string `json:"access_token,omitempty"`      // optional bearer token
	ReconnectSeconds int    `json:"reconnect_seconds,omitempty"` // default 5
}

// event mirrors the subset of the OneBot v11 event payload the bot consumes.
type event struct {
	PostType    string `json:"post_type"`
	MessageType string `json:"message_type"` // "group" or "private"
	MessageID   int64  `json:"message_id"`
	GroupID     int64  `json:"group_id"`
	UserID      int64  `json:"user_id"`
	RawMessage  string `json:"raw_message"`
	Sender      struct {
		Nickname string `json:"nickname"`
		Card     string `json:"card"`
	} `json:"sender"`
}

// action is an outbound OneBot API call.
type action struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
}

// OneBotChannel is the production implementation of gateway.Channel for the
// OneBot event bus. One forward-WebSocket connection carries both the event
// stream and the outbound send actions; writes are serialized by a mutex.
type OneBotChannel struct {
	config OneBotConfig

	mu   sync.Mutex // protects conn writes and replacement
	conn *websocket.Conn

	ctx    api.ChannelContext
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewOneBotChannel(cfg OneBotConfig) (*OneBotChannel, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("onebot channel requires 'url'")
	}
	if cfg.ReconnectSeconds <= 0 {
		cfg.ReconnectSeconds = 5
	}
	return &OneBotChannel{
		config: cfg,
		stopCh: make(chan struct{}),
	}, nil
}

// ID returns the unique platform identifier "onebot".
func (o *OneBotChannel) ID() string {
	return "onebot"
}

// Start launches the connect/read loop in a background goroutine. The
// channel keeps reconnecting until Stop is called.
func (o *OneBotChannel) Start(ctx api.ChannelContext) error {
	o.ctx = ctx
	o.wg.Add(1)
	go o.connectLoop()
	return nil
}

// Stop closes the connection and joins the read loop.
func (o *OneBotChannel) Stop() error {
	close(o.stopCh)
	o.mu.Lock()
	if o.conn != nil {
		o.conn.Close()
	}
	o.mu.Unlock()
	o.wg.Wait()
	return nil
}

func (o *OneBotChannel) connectLoop() {
	defer o.wg.Done()
	interval := time.Duration(o.config.ReconnectSeconds) * time.Second

	for {
		select {
		case <-o.stopCh:
			return
		default:
		}

		if err := o.connectAndRead(); err != nil {
			slog.Warn("OneBot connection lost, reconnecting", "url", o.config.URL, "in", interval, "error", err)
		}

		select {
		case <-o.stopCh:
			return
		case <-time.After(interval):
		}
	}
}

func (o *OneBotChannel) connectAndRead() error {
	header := http.Header{}
	if o.config.AccessToken != "" {
		header.Set("Authorization", "Bearer "+o.config.AccessToken)
	}

	conn, _, err := websocket.DefaultDialer.Dial(o.config.URL, header)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.conn = conn
	o.mu.Unlock()
	slog.Info("🔌 OneBot connected", "url", o.config.URL)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			o.mu.Lock()
			o.conn = nil
			o.mu.Unlock()
			return err
		}
		o.handleFrame(data)
	}
}

// handleFrame parses one inbound frame. Non-message events (heartbeats,
// lifecycle, API echoes) are ignored.
func (o *OneBotChannel) handleFrame(data []byte) {
	var ev event
	if err := json.Unmarshal(data, &ev); err != nil {
		slog.Debug("OneBot frame not parseable, skipping", "error", err)
		return
	}
	if ev.PostType != "message" || ev.RawMessage == "" {
		return
	}

	name := ev.Sender.Card
	if name == "" {
		name = ev.Sender.Nickname
	}

	session := api.Session{
		ChannelID: o.ID(),
		UserID:    strconv.FormatInt(ev.UserID, 10),
		Username:  name,
		Group:     ev.MessageType == "group",
	}
	if session.Group {
		session.ChatID = strconv.FormatInt(ev.GroupID, 10)
	}

	kind := api.KindText
	if strings.HasPrefix(strings.TrimSpace(ev.RawMessage), "/") {
		kind = api.KindCommand
	}

	o.ctx.OnMessage(o.ID(), &api.InboundMessage{
		ID:         utils.GenerateID(),
		Session:    session,
		Content:    ev.RawMessage,
		Kind:       kind,
		ReceivedAt: time.Now(),
		Raw:        &ev,
	})
}

// Send emits one reply as a send_group_msg / send_private_msg action.
// A mention is rendered as a CQ code prefix in group chats.
func (o *OneBotChannel) Send(session api.Session, reply *api.OutboundReply) error {
	content := reply.Content
	var act action
	if session.Group {
		if reply.Mention != "" {
			content = fmt.Sprintf("[CQ:at,qq=%s] %s", reply.Mention, content)
		}
		groupID, err := strconv.ParseInt(session.ChatID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid group id %q: %w", session.ChatID, err)
		}
		act = action{
			Action: "send_group_msg",
			Params: map[string]any{"group_id": groupID, "message": content},
		}
	} else {
		userID, err := strconv.ParseInt(session.UserID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q: %w", session.UserID, err)
		}
		act = action{
			Action: "send_private_msg",
			Params: map[string]any{"user_id": userID, "message": content},
		}
	}

	payload, err := json.Marshal(&act)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.conn == nil {
		return fmt.Errorf("onebot connection is down")
	}
	return o.conn.WriteMessage(websocket.TextMessage, payload)
}
