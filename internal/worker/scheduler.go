package worker

import (
	"context"
	"sync"
	"time"

	"github.com/attendance-notifier/internal/application/delivery"
	"github.com/rs/zerolog"
)

type sweeper interface {
	ProcessDue(ctx context.Context) (delivery.Report, error)
	Cleanup(ctx context.Context, retentionDays int) (delivery.CleanupReport, error)
}

type reminderGenerator interface {
	Generate(ctx context.Context, now time.Time) (int, error)
}

// Config holds the cadence of each periodic job. A zero interval disables that job.
type Config struct {
	SweepInterval    time.Duration
	ReminderInterval time.Duration
	CleanupInterval  time.Duration
	RetentionDays    int
}

// Scheduler is the periodic trigger: it drives the due sweep, reminder
// generation and cleanup on their own tickers until the context ends.
type Scheduler struct {
	pipeline  sweeper
	reminders reminderGenerator
	config    Config
	logger    zerolog.Logger
	now       func() time.Time
}

func NewScheduler(pipeline sweeper, reminders reminderGenerator, cfg Config, logger zerolog.Logger) *Scheduler {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = delivery.DefaultRetentionDays
	}
	return &Scheduler{
		pipeline:  pipeline,
		reminders: reminders,
		config:    cfg,
		logger:    logger.With().Str("component", "scheduler").Logger(),
		now:       time.Now,
	}
}

// Start runs one sweep immediately, then blocks running every enabled job until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().
		Dur("sweep_interval", s.config.SweepInterval).
		Dur("reminder_interval", s.config.ReminderInterval).
		Dur("cleanup_interval", s.config.CleanupInterval).
		Msg("starting scheduler")

	s.Sweep(ctx)

	var wg sync.WaitGroup
	s.every(ctx, &wg, s.config.SweepInterval, s.Sweep)
	s.every(ctx, &wg, s.config.ReminderInterval, s.Remind)
	s.every(ctx, &wg, s.config.CleanupInterval, s.Clean)
	wg.Wait()

	s.logger.Info().Msg("shutting down scheduler")
}

func (s *Scheduler) every(ctx context.Context, wg *sync.WaitGroup, interval time.Duration, job func(context.Context)) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				job(ctx)
			}
		}
	}()
}

// Sweep delivers everything due. Errors are logged; the next tick tries again.
func (s *Scheduler) Sweep(ctx context.Context) {
	report, err := s.pipeline.ProcessDue(ctx)
	if err != nil {
		s.logger.Error().Err(err).Int("errors", report.Errors).Msg("due sweep failed")
		return
	}
	if report.Contended {
		s.logger.Debug().Msg("due sweep skipped, another sweep holds the lock")
	}
}

func (s *Scheduler) Remind(ctx context.Context) {
	if s.reminders == nil {
		return
	}
	if _, err := s.reminders.Generate(ctx, s.now()); err != nil {
		s.logger.Error().Err(err).Msg("reminder generation failed")
	}
}

func (s *Scheduler) Clean(ctx context.Context) {
	report, err := s.pipeline.Cleanup(ctx, s.config.RetentionDays)
	if err != nil {
		s.logger.Error().Err(err).Int("deleted", report.Deleted).Msg("cleanup failed")
	}
}
