package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"fingerbot/pkg/api"
	"fingerbot/pkg/utils"
)

// TelegramConfig encapsulates the credentials required to authenticate with
// the Telegram Bot API.
type TelegramConfig struct {
	Token string `json:"token"` // The secret BOT API string provided by @BotFather
}

// TelegramChannel is the implementation of gateway.Channel for the Telegram
// platform. Text messages only; media is ignored at this layer.
type TelegramChannel struct {
	config  TelegramConfig
	bot     *tgbotapi.BotAPI
	updates tgbotapi.UpdatesChannel
	stopCh  chan struct{}
}

func NewTelegramChannel(cfg TelegramConfig) (*TelegramChannel, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	slog.Info("Telegram bot authorized", "username", bot.Self.UserName)

	return &TelegramChannel{
		config: cfg,
		bot:    bot,
		stopCh: make(chan struct{}),
	}, nil
}

// ID returns the unique platform identifier "telegram".
func (t *TelegramChannel) ID() string {
	return "telegram"
}

// Start initiates the long-polling update loop in a background goroutine.
func (t *TelegramChannel) Start(ctx api.ChannelContext) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	t.updates = t.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-t.stopCh:
				return
			case update, ok := <-t.updates:
				if !ok {
					return
				}
				t.handleUpdate(ctx, update)
			}
		}
	}()
	return nil
}

func (t *TelegramChannel) handleUpdate(ctx api.ChannelContext, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" || msg.From == nil {
		return
	}

	isGroup := msg.Chat.IsGroup() || msg.Chat.IsSuperGroup()
	session := api.Session{
		ChannelID: t.ID(),
		UserID:    strconv.FormatInt(msg.From.ID, 10),
		Username:  msg.From.UserName,
		Group:     isGroup,
	}
	if isGroup {
		session.ChatID = strconv.FormatInt(msg.Chat.ID, 10)
	}

	kind := api.KindText
	if strings.HasPrefix(strings.TrimSpace(msg.Text), "/") {
		kind = api.KindCommand
	}

	ctx.OnMessage(t.ID(), &api.InboundMessage{
		ID:         utils.GenerateID(),
		Session:    session,
		Content:    msg.Text,
		Kind:       kind,
		ReceivedAt: time.Unix(int64(msg.Date), 0),
		Raw:        msg,
	})
}

// Stop terminates the long-polling loop.
func (t *TelegramChannel) Stop() error {
	close(t.stopCh)
	t.bot.StopReceivingUpdates()
	return nil
}

// Send delivers one reply. Mentions render as a leading @ reference since
// Telegram has no CQ-style codes.
func (t *TelegramChannel) Send(session api.Session, reply *api.OutboundReply) error {
	chatID, err := strconv.ParseInt(session.ChatID, 10, 64)
	if !session.Group || err != nil {
		chatID, err = strconv.ParseInt(session.UserID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chat id: %w", err)
		}
	}

	content := reply.Content
	if reply.Mention != "" && session.Group {
		content = "@" + reply.Mention + " " + content
	}

	_, err = t.bot.Send(tgbotapi.NewMessage(chatID, content))
	return err
}
