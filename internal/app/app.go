// Package app assembles the service graph shared by the API and worker processes.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/attendance-notifier/internal/application/delivery"
	"github.com/attendance-notifier/internal/application/notification"
	"github.com/attendance-notifier/internal/application/reminder"
	"github.com/attendance-notifier/internal/application/user"
	"github.com/attendance-notifier/internal/config"
	"github.com/attendance-notifier/internal/infrastructure/cache"
	"github.com/attendance-notifier/internal/infrastructure/dynamo"
	"github.com/attendance-notifier/internal/infrastructure/expo"
	redisinfra "github.com/attendance-notifier/internal/infrastructure/redis"
	s3infra "github.com/attendance-notifier/internal/infrastructure/s3"
	snsinfra "github.com/attendance-notifier/internal/infrastructure/sns"
	"github.com/attendance-notifier/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	metricsNamespace = "notifier"
	sweepLockKey     = "notifier:sweep-lock"
)

// App holds the wired application services.
type App struct {
	Notifications notification.Service
	Users         user.Service
	Pipeline      *delivery.Pipeline
	Reminders     *reminder.Service
	Metrics       *metrics.Metrics

	closers []func() error
}

// Close releases connections opened by New.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// New connects to the configured backends and builds every service. Tables are
// created when missing. reg receives the metric collectors; nil skips registration.
func New(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, log zerolog.Logger) (*App, error) {
	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Schedule.Timezone, err)
	}

	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("dynamodb client: %w", err)
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables, log)

	transport, err := newTransport(ctx, cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.New(metricsNamespace, reg)
	a := &App{Metrics: m}

	notifications := dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications)
	logs := dynamo.NewDeliveryLogRepo(dynamoClient, cfg.DynamoTables.DeliveryLogs, time.Duration(cfg.Schedule.LogRetentionDays)*24*time.Hour)
	users := dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)

	deps := delivery.Deps{
		Store:     notifications,
		Logs:      logs,
		Users:     users,
		Transport: transport,
		Limiter:   delivery.NewPushLimiter(cfg.PushRatePerSec, cfg.Delivery.BatchSize),
		Metrics:   m,
		Logger:    log.With().Str("component", "delivery").Logger(),
		Config:    cfg.Delivery,
	}

	if cfg.ArchiveBucket != "" {
		s3Client, err := s3infra.NewClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("s3 client: %w", err)
		}
		deps.Archive = s3infra.NewArchive(s3Client, cfg.ArchiveBucket)
	}

	if cfg.RedisAddr != "" {
		rdb, err := redisinfra.NewClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)
		deps.Lock = redisinfra.NewLock(rdb, sweepLockKey, cfg.SweepLockTTL, log)
	} else {
		log.Info().Msg("REDIS_ADDR not set, sweeps are serialised in-process only")
	}

	a.Pipeline = delivery.NewPipeline(deps)
	a.Notifications = notification.NewService(notification.ServiceDeps{
		NotificationRepo: notifications,
		LogRepo:          logs,
		UserRepo:         users,
		Transport:        transport,
		MaxRetries:       cfg.Delivery.MaxRetries,
		Logger:           log.With().Str("component", "notifications").Logger(),
	})
	a.Users = user.NewService(user.ServiceDeps{UserRepo: users, Transport: transport})
	var timetable cache.TimetableSource = dynamo.NewTimetableRepo(dynamoClient, cfg.DynamoTables.Timetable)
	if cfg.Schedule.TimetableTTL > 0 {
		timetable = cache.NewTimetable(timetable, cfg.Schedule.TimetableTTL)
	}
	a.Reminders = reminder.NewService(reminder.ServiceDeps{
		UserRepo:         users,
		TimetableRepo:    timetable,
		AttendanceRepo:   dynamo.NewAttendanceRepo(dynamoClient, cfg.DynamoTables.Attendance),
		NotificationRepo: notifications,
		Location:         loc,
		MaxRetries:       cfg.Delivery.MaxRetries,
		Metrics:          m,
		Logger:           log.With().Str("component", "reminders").Logger(),
	})
	return a, nil
}

// newTransport picks the push gateway named by PUSH_PROVIDER.
func newTransport(ctx context.Context, cfg *config.Config) (delivery.Transport, error) {
	switch cfg.PushProvider {
	case "", "expo":
		c, err := expo.New(cfg.ExpoPushURL, cfg.ExpoAccessToken, cfg.PushTimeout)
		if err != nil {
			return nil, fmt.Errorf("expo transport: %w", err)
		}
		return c, nil
	case "sns":
		client, err := snsinfra.NewClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("sns client: %w", err)
		}
		return snsinfra.NewTransport(client), nil
	default:
		return nil, fmt.Errorf("unknown PUSH_PROVIDER %q", cfg.PushProvider)
	}
}
