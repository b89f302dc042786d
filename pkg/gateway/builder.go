package gateway

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"fingerbot/pkg/api"
	"fingerbot/pkg/config"
	"fingerbot/pkg/monitor"
)

// GatewayBuilder provides a fluent builder pattern interface for constructing
// and initializing a GatewayManager with all its necessary dependencies.
type GatewayBuilder struct {
	gw             *GatewayManager
	monitor        monitor.Monitor
	systemConfig   *config.SystemConfig
	channelConfigs map[string]jsoniter.RawMessage
	channelLoader  func(*GatewayManager, map[string]jsoniter.RawMessage)
	handler        api.MessageProcessor
}

// NewGatewayBuilder creates a fresh GatewayBuilder instance and allocates
// an internal GatewayManager to be configured.
func NewGatewayBuilder() *GatewayBuilder {
	return &GatewayBuilder{
		gw: NewGatewayManager(),
	}
}

// WithMonitor injects a monitoring implementation into the builder.
// This monitor will be started automatically during the Build() process.
func (b *GatewayBuilder) WithMonitor(m monitor.Monitor) *GatewayBuilder {
	b.monitor = m
	return b
}

// WithSystemConfig provides engine-level technical parameters to the builder.
func (b *GatewayBuilder) WithSystemConfig(cfg *config.SystemConfig) *GatewayBuilder {
	b.systemConfig = cfg
	return b
}

// WithChannelConfigs supplies the raw channel configuration payloads.
func (b *GatewayBuilder) WithChannelConfigs(configs map[string]jsoniter.RawMessage) *GatewayBuilder {
	b.channelConfigs = configs
	return b
}

// WithChannelLoader registers the strategy that resolves channel factories
// and registers the resulting channels on the manager.
func (b *GatewayBuilder) WithChannelLoader(loader func(*GatewayManager, map[string]jsoniter.RawMessage)) *GatewayBuilder {
	b.channelLoader = loader
	return b
}

// WithHandler injects the core message handler. If the handler implements
// api.ResponderAware, the gateway is wired back into it during Build().
func (b *GatewayBuilder) WithHandler(h api.MessageProcessor) *GatewayBuilder {
	b.handler = h
	return b
}

// Build finalizes the configuration, injects all dependencies into the
// GatewayManager, registers all channels, and starts everything.
// Returns the fully operational GatewayManager or an error if any stage fails.
func (b *GatewayBuilder) Build() (*GatewayManager, error) {
	if b.systemConfig != nil {
		b.gw.WithSystemConfig(b.systemConfig)
	}

	if b.monitor != nil {
		if err := b.monitor.Start(); err != nil {
			return nil, fmt.Errorf("failed to start monitor: %w", err)
		}
	}

	if b.channelLoader != nil {
		b.channelLoader(b.gw, b.channelConfigs)
	}

	if b.handler != nil {
		if setter, ok := b.handler.(api.ResponderAware); ok {
			setter.SetResponder(b.gw)
		}
		b.gw.SetMessageHandler(b.handler.OnMessage)
	}

	if err := b.gw.StartAll(); err != nil {
		return nil, fmt.Errorf("failed to start channels: %w", err)
	}

	return b.gw, nil
}
