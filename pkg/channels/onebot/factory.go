package onebot

import (
	"fingerbot/pkg/channels"
	"fingerbot/pkg/config"
	"fingerbot/pkg/gateway"

	jsoniter "github.com/json-iterator/go"
)

// OneBotFactory handles creation of OneBot channels.
type OneBotFactory struct{}

// Create implements ChannelFactory
func (f *OneBotFactory) Create(rawConfig jsoniter.RawMessage, system *config.SystemConfig) (gateway.Channel, error) {
	var cfg OneBotConfig
	if err := json.Unmarshal(rawConfig, &cfg); err != nil {
		return nil, err
	}
	return NewOneBotChannel(cfg)
}

func init() {
	channels.RegisterChannel("onebot", &OneBotFactory{})
}
