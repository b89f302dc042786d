package telegram

import (
	"fingerbot/pkg/channels"
	"fingerbot/pkg/config"
	"fingerbot/pkg/gateway"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TelegramFactory handles creation of Telegram channels.
type TelegramFactory struct{}

// Create implements ChannelFactory
func (f *TelegramFactory) Create(rawConfig jsoniter.RawMessage, system *config.SystemConfig) (gateway.Channel, error) {
	var cfg TelegramConfig
	if err := json.Unmarshal(rawConfig, &cfg); err != nil {
		return nil, err
	}
	if cfg.Token == "" {
		return nil, nil // channel configured but disabled
	}
	return NewTelegramChannel(cfg)
}

func init() {
	channels.RegisterChannel("telegram", &TelegramFactory{})
}
