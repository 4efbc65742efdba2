// Package jobs runs periodic maintenance inside the server process.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Domenick1991/ftms/internal/registry"
	"github.com/Domenick1991/ftms/internal/repository"
	"github.com/go-co-op/gocron/v2"
)

type CacheWarmer interface {
	WarmCache(ctx context.Context, h repository.Handle) error
}

type StatsSource interface {
	Stats() registry.Stats
}

type Scheduler struct {
	scheduler gocron.Scheduler
	opener    repository.Opener
	warmer    CacheWarmer
	stats     StatsSource
	logger    *slog.Logger
}

func NewScheduler(opener repository.Opener, warmer CacheWarmer, stats StatsSource, logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{scheduler: s, opener: opener, warmer: warmer, stats: stats, logger: logger}, nil
}

// Start schedules the cache warm-up and the registry report every interval,
// running both once right away.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	if _, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { s.WarmCache(ctx) }),
		gocron.WithName("warm-flight-cache"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	); err != nil {
		return fmt.Errorf("schedule cache warm-up: %w", err)
	}

	if s.stats != nil {
		if _, err := s.scheduler.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(s.ReportStats),
			gocron.WithName("registry-stats"),
		); err != nil {
			return fmt.Errorf("schedule registry report: %w", err)
		}
	}

	s.scheduler.Start()
	s.logger.Info("scheduler started", "interval", interval)
	return nil
}

func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

func (s *Scheduler) WarmCache(ctx context.Context) {
	h, err := s.opener.Open(ctx)
	if err != nil {
		s.logger.Warn("cache warm-up skipped", "error", err)
		return
	}
	defer h.Close()

	if err := s.warmer.WarmCache(ctx, h); err != nil {
		s.logger.Warn("cache warm-up failed", "error", err)
		return
	}
	s.logger.Debug("flight cache warmed")
}

func (s *Scheduler) ReportStats() {
	st := s.stats.Stats()
	s.logger.Info("store handles", "open", st.Open, "opened_total", st.Opened)
}
