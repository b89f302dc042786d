package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	_ "fingerbot/pkg/channels/autoload" // 自動註冊 Channels
	_ "fingerbot/pkg/llm/autoload"      // 自動註冊 LLM Providers

	"fingerbot/pkg/agent"
	"fingerbot/pkg/channels"
	"fingerbot/pkg/config"
	"fingerbot/pkg/gateway"
	"fingerbot/pkg/monitor"

	jsoniter "github.com/json-iterator/go"
)

func main() {
	// .env 提供 FINGERBOT_API_KEYS 等環境變數（檔案不存在也沒關係）
	_ = godotenv.Load()

	// --- 0. 讀取設定檔 ---
	cfg, sys, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v\n", err)
	}

	monitor.SetupSlog(sys.LogLevel)
	monitor.PrintBanner()

	cliMonitor := monitor.NewCLIMonitor()

	// --- 1. Agent 初始化 ---
	bot, err := agent.New(cfg, sys, cliMonitor)
	if err != nil {
		log.Fatalf("❌ Failed to init agent: %v\n", err)
	}

	// --- 2. Gateway 初始化（使用 Builder 模式）---
	gw, err := gateway.NewGatewayBuilder().
		WithSystemConfig(sys).
		WithMonitor(cliMonitor).
		WithChannelConfigs(cfg.Channels).
		WithChannelLoader(func(g *gateway.GatewayManager, configs map[string]jsoniter.RawMessage) {
			channels.LoadFromConfig(g, configs, sys)
		}).
		WithHandler(bot).
		Build()
	if err != nil {
		log.Fatalf("❌ Failed to build gateway: %v\n", err)
	}

	// --- 3. 啟動核心元件 ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bot.Start(ctx)
	bot.WatchConfig(ctx, "config.json")

	// --- 4. 等待結束訊號 ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("🛑 Shutting down...")
	cancel()
	gw.StopAll()
	bot.Shutdown()
	cliMonitor.Stop()
}
