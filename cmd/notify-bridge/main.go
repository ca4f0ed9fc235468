package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/ZenRasta/IbisExchange-sub000/internal/config"
	"github.com/ZenRasta/IbisExchange-sub000/internal/db"
	"github.com/ZenRasta/IbisExchange-sub000/internal/events"
)

// Notify Bridge — small service that subscribes to trade lifecycle
// events on Redis and forwards them to the external notifier (chat bot).

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	subscriber := events.NewRedisSubscriber(rdb, log)

	log.Info("notify-bridge started")

	_ = subscriber.Subscribe(ctx, events.StreamTrades, func(event events.Event) {
		log.Info("forwarding event to notifier", zap.String("type", event.Type), zap.String("trade_id", event.TradeID))
		forwardToNotifier(cfg.NotifierInternalURL, event, log)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down notify-bridge")
	cancel()
}

func forwardToNotifier(baseURL string, event events.Event, log *zap.Logger) {
	body, err := json.Marshal(event)
	if err != nil {
		return
	}

	url := fmt.Sprintf("%s/internal/notify", strings.TrimRight(baseURL, "/"))
	resp, err := http.Post(url, "application/json", strings.NewReader(string(body)))
	if err != nil {
		log.Warn("failed to forward notification", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn("notifier returned non-200", zap.Int("status", resp.StatusCode))
	}
}
