package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/ftms/config"
	"github.com/Domenick1991/ftms/internal/kafka"
	"github.com/Domenick1991/ftms/internal/logger"
	"github.com/Domenick1991/ftms/internal/notify"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.String("config", "", "path to the YAML config (default $CONFIG_PATH or config.yaml)")
	pflag.Parse()

	cfg, err := config.LoadConfig(config.Path(*configPath))
	if err != nil {
		logger.Fatal("load config", "error", err)
	}
	log := logger.Init(cfg.Log.Level, cfg.Log.Format)

	if len(cfg.Kafka.Brokers) == 0 {
		logger.Fatal("kafka.brokers is empty; nothing to consume")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, log.With("component", "kafka"))
	defer consumer.Close()

	notifier := notify.NewNotifier(log.With("component", "notify"))

	log.Info("notification worker started", "topic", cfg.Kafka.NotificationsTopic, "group_id", cfg.Kafka.GroupID)
	if err := consumer.ConsumeTicketEvents(ctx, notifier.Notify); err != nil {
		log.Error("consumer stopped", "error", err)
		return
	}
	log.Info("notification worker stopped")
}
