package reminder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/attendance-notifier/internal/domain"
	"github.com/attendance-notifier/internal/pkg/id"
	"github.com/attendance-notifier/internal/pkg/metrics"
	"github.com/rs/zerolog"
)

const reminderTitle = "📚 Attendance Reminder"

type userSource interface {
	ScanNotifiable(ctx context.Context) ([]domain.User, error)
}

type timetableSource interface {
	ListActiveForDay(ctx context.Context, userID string, day int) ([]domain.TimetableEntry, error)
}

type attendanceSource interface {
	Exists(ctx context.Context, userID, entryID, date string) (bool, error)
}

type notificationCreator interface {
	Create(ctx context.Context, n *domain.ScheduledNotification) error
}

// Service schedules "mark your attendance" reminders from users' timetables.
type Service struct {
	users         userSource
	timetable     timetableSource
	attendance    attendanceSource
	notifications notificationCreator
	loc           *time.Location
	maxRetries    int
	metrics       *metrics.Metrics
	logger        zerolog.Logger
}

type ServiceDeps struct {
	UserRepo         userSource
	TimetableRepo    timetableSource
	AttendanceRepo   attendanceSource
	NotificationRepo notificationCreator
	// Location is the zone class times are written in. Defaults to UTC.
	Location   *time.Location
	MaxRetries int
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

func NewService(deps ServiceDeps) *Service {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.MaxRetries <= 0 {
		deps.MaxRetries = domain.DefaultMaxRetries
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New("notifier", nil)
	}
	return &Service{
		users:         deps.UserRepo,
		timetable:     deps.TimetableRepo,
		attendance:    deps.AttendanceRepo,
		notifications: deps.NotificationRepo,
		loc:           deps.Location,
		maxRetries:    deps.MaxRetries,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
	}
}

// Generate schedules a reminder ReminderMinutes after the end of each of today's
// classes that has no attendance mark yet. Reminders in the past are skipped.
// Ids are derived from (user, class, date), so running it again creates nothing new.
func (s *Service) Generate(ctx context.Context, now time.Time) (int, error) {
	users, err := s.users.ScanNotifiable(ctx)
	if err != nil {
		return 0, fmt.Errorf("list notifiable users: %w", err)
	}

	local := now.In(s.loc)
	date := local.Format(domain.DateLayout)
	day := int(local.Weekday())

	scheduled := 0
	var errs []error
	for i := range users {
		u := &users[i]
		if u.DeliveryToken() == "" {
			continue
		}
		n, err := s.forUser(ctx, u, local, date, day)
		scheduled += n
		if err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", u.UserID, err))
		}
	}

	s.metrics.RemindersScheduled.Add(float64(scheduled))
	s.logger.Info().Int("users", len(users)).Int("scheduled", scheduled).Str("date", date).Msg("attendance reminders generated")
	return scheduled, errors.Join(errs...)
}

func (s *Service) forUser(ctx context.Context, u *domain.User, now time.Time, date string, day int) (int, error) {
	entries, err := s.timetable.ListActiveForDay(ctx, u.UserID, day)
	if err != nil {
		return 0, err
	}
	offset := u.ReminderMinutes
	if offset <= 0 {
		offset = domain.DefaultReminderMinutes
	}

	scheduled := 0
	for _, e := range entries {
		h, m, err := parseClock(e.EndTime)
		if err != nil {
			s.logger.Warn().Err(err).Str("entry_id", e.EntryID).Msg("skipping timetable entry")
			continue
		}
		at := time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, s.loc).Add(time.Duration(offset) * time.Minute)
		if !at.After(now) {
			continue
		}
		marked, err := s.attendance.Exists(ctx, u.UserID, e.EntryID, date)
		if err != nil {
			return scheduled, err
		}
		if marked {
			continue
		}

		err = s.notifications.Create(ctx, reminderFor(u.UserID, e, date, at, now, s.maxRetries))
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return scheduled, err
		}
		scheduled++
	}
	return scheduled, nil
}

func reminderFor(userID string, e domain.TimetableEntry, date string, at, now time.Time, maxRetries int) *domain.ScheduledNotification {
	created := now.UTC()
	return &domain.ScheduledNotification{
		NotificationID: id.Derive("rem", userID, e.EntryID, date),
		UserID:         userID,
		Title:          reminderTitle,
		Body:           fmt.Sprintf("Don't forget to mark attendance for %s", e.Subject),
		Data: map[string]any{
			"type":         "attendance_reminder",
			"class_id":     e.EntryID,
			"subject_code": e.SubjectCode,
			"subject_name": e.Subject,
			"class_time":   e.StartTime + " - " + e.EndTime,
			"date":         date,
		},
		ScheduledFor: at.UTC(),
		Type:         domain.TypeReminder,
		Priority:     domain.PriorityNormal,
		Status:       domain.StatusPending,
		MaxRetries:   maxRetries,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

// parseClock reads "HH:MM" (24h).
func parseClock(s string) (int, int, error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time %q", s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}
