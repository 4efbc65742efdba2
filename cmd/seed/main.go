package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/ftms/config"
	"github.com/Domenick1991/ftms/internal/bootstrap"
	"github.com/Domenick1991/ftms/internal/logger"
	"github.com/Domenick1991/ftms/internal/seed"
	"github.com/Domenick1991/ftms/internal/service/flights"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.String("config", "", "path to the YAML config (default $CONFIG_PATH or config.yaml)")
	count := pflag.Int("count", 10000, "number of flights to generate")
	days := pflag.Int("days", 60, "departures are spread over this many days from today")
	pflag.Parse()

	cfg, err := config.LoadConfig(config.Path(*configPath))
	if err != nil {
		logger.Fatal("load config", "error", err)
	}
	log := logger.Init(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opener, closeStore, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		logger.Fatal("open store", "driver", cfg.Storage.Driver, "error", err)
	}
	defer closeStore()

	list := seed.Generate(seed.Options{Count: *count, Days: *days, Start: time.Now()})
	res, err := seed.Load(ctx, opener, flights.NewFlightService(nil, log), list, log)
	if err != nil {
		log.Error("seeding failed", "added", res.Added, "error", err)
		closeStore()
		os.Exit(1)
	}
	log.Info("flights seeded", "added", res.Added, "skipped", res.Skipped, "driver", cfg.Storage.Driver)
}
