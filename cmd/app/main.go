package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/ftms/config"
	"github.com/Domenick1991/ftms/internal/bootstrap"
	"github.com/Domenick1991/ftms/internal/cache"
	"github.com/Domenick1991/ftms/internal/chat"
	"github.com/Domenick1991/ftms/internal/jobs"
	"github.com/Domenick1991/ftms/internal/kafka"
	"github.com/Domenick1991/ftms/internal/logger"
	"github.com/Domenick1991/ftms/internal/registry"
	"github.com/Domenick1991/ftms/internal/server"
	"github.com/Domenick1991/ftms/internal/service/account"
	"github.com/Domenick1991/ftms/internal/service/booking"
	"github.com/Domenick1991/ftms/internal/service/flights"
	"github.com/Domenick1991/ftms/internal/validation"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opener, closeStore, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		logger.Fatal("open store", "driver", cfg.Storage.Driver, "error", err)
	}
	defer closeStore()

	cacheTTL := time.Duration(cfg.Booking.FlightsCacheTTL) * time.Second
	bookingOpts := []booking.BookingServiceOption{
		booking.WithAllocationAttempts(cfg.Booking.AllocationAttempts),
		booking.WithLogger(log.With("component", "booking")),
	}

	var flightCache flights.FlightCache
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cfg.Redis, cacheTTL)
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn("redis unavailable, searches will hit the store", "addr", cfg.Redis.Addr, "error", err)
		}
		flightCache = redisCache
		bookingOpts = append(bookingOpts, booking.WithCache(redisCache))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, log.With("component", "kafka"))
		defer producer.Close()
		bookingOpts = append(bookingOpts,
			booking.WithProducer(producer, cfg.Kafka.TicketEventsTopic),
			booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		)
	}

	accountService := account.NewAccountService()
	flightService := flights.NewFlightService(flightCache, log.With("component", "flights"))
	bookingService := booking.NewBookingService(bookingOpts...)

	reg := registry.New(opener,
		registry.WithLogger(log.With("component", "registry")),
		registry.WithOpenTimeout(time.Duration(cfg.Storage.HandleWaitSeconds)*time.Second),
	)
	dispatcher := server.NewDispatcher(server.Services{
		Accounts:  accountService,
		Flights:   flightService,
		Booking:   bookingService,
		Chat:      chat.NewRelay(cfg.Chat),
		Validator: validation.New(),
	}, log)

	scheduler, err := jobs.NewScheduler(opener, flightService, reg, log.With("component", "jobs"))
	if err != nil {
		logger.Fatal("create scheduler", "error", err)
	}
	if err := scheduler.Start(ctx, time.Duration(cfg.Jobs.CacheWarmMinutes)*time.Minute); err != nil {
		logger.Fatal("start scheduler", "error", err)
	}
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			log.Warn("scheduler shutdown", "error", err)
		}
	}()

	if err := bootstrap.Run(ctx, cfg, bootstrap.Deps{
		Dispatcher: dispatcher,
		Registry:   reg,
		Opener:     opener,
		Flights:    flightService,
		Booking:    bookingService,
		Logger:     log,
	}); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
