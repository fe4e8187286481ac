package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/attendance-notifier/internal/app"
	"github.com/attendance-notifier/internal/config"
	"github.com/attendance-notifier/internal/pkg/logger"
	"github.com/attendance-notifier/internal/worker"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.LogLevel, Console: cfg.AppEnv == "development"})
	if envErr != nil {
		log.Info().Msg("no .env file found, reading from environment")
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("worker exited")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, prometheus.DefaultRegisterer, log)
	if err != nil {
		return fmt.Errorf("wire application: %w", err)
	}
	defer a.Close()

	// The worker has no API surface; it only exposes metrics for scraping.
	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.AppPort),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()

	scheduler := worker.NewScheduler(a.Pipeline, a.Reminders, worker.Config{
		SweepInterval:    cfg.Schedule.SweepInterval,
		ReminderInterval: cfg.Schedule.ReminderInterval,
		CleanupInterval:  cfg.Schedule.CleanupInterval,
		RetentionDays:    cfg.Schedule.RetentionDays,
	}, log)
	scheduler.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics shutdown: %w", err)
	}
	log.Info().Msg("worker stopped")
	return nil
}
