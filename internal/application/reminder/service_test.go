package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/attendance-notifier/internal/domain"
	"github.com/attendance-notifier/internal/pkg/logger"
	"github.com/attendance-notifier/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeUsers struct {
	users []domain.User
	err   error
}

func (f *fakeUsers) ScanNotifiable(context.Context) ([]domain.User, error) { return f.users, f.err }

type fakeTimetable map[string][]domain.TimetableEntry // user id -> entries

func (f fakeTimetable) ListActiveForDay(_ context.Context, userID string, day int) ([]domain.TimetableEntry, error) {
	var out []domain.TimetableEntry
	for _, e := range f[userID] {
		if e.DayOfWeek == day && e.IsActive {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeAttendance map[string]bool // user|entry|date

func (f fakeAttendance) Exists(_ context.Context, userID, entryID, date string) (bool, error) {
	return f[userID+"|"+entryID+"|"+date], nil
}

type fakeNotifications struct {
	created map[string]*domain.ScheduledNotification
	err     error
}

func (f *fakeNotifications) Create(_ context.Context, n *domain.ScheduledNotification) error {
	if f.err != nil {
		return f.err
	}
	if f.created == nil {
		f.created = map[string]*domain.ScheduledNotification{}
	}
	if _, ok := f.created[n.NotificationID]; ok {
		return domain.ErrConflict
	}
	f.created[n.NotificationID] = n
	return nil
}

// --- helpers ---

// Thursday 2026-10-15 10:00 UTC
var now = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

func student(id string) domain.User {
	tok := "ExponentPushToken[" + id + "]"
	return domain.User{UserID: id, PushToken: &tok, NotificationsEnabled: true}
}

func class(id, end string) domain.TimetableEntry {
	return domain.TimetableEntry{EntryID: id, Subject: "Physics " + id, SubjectCode: "PHY" + id, DayOfWeek: int(time.Thursday), StartTime: "08:00", EndTime: end, IsActive: true}
}

type fixture struct {
	users      *fakeUsers
	timetable  fakeTimetable
	attendance fakeAttendance
	notifs     *fakeNotifications
	metrics    *metrics.Metrics
	svc        *Service
}

func newFixture() *fixture {
	f := &fixture{
		users:      &fakeUsers{users: []domain.User{student("u1")}},
		timetable:  fakeTimetable{},
		attendance: fakeAttendance{},
		notifs:     &fakeNotifications{},
		metrics:    metrics.New("test", nil),
	}
	f.svc = NewService(ServiceDeps{
		UserRepo:         f.users,
		TimetableRepo:    f.timetable,
		AttendanceRepo:   f.attendance,
		NotificationRepo: f.notifs,
		Metrics:          f.metrics,
		Logger:           logger.Nop(),
	})
	return f
}

// --- tests ---

func TestGenerate_SchedulesAfterClassEnd(t *testing.T) {
	f := newFixture()
	f.timetable["u1"] = []domain.TimetableEntry{class("c1", "11:30")}

	n, err := f.svc.Generate(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, f.notifs.created, 1)
	for _, r := range f.notifs.created {
		assert.Equal(t, time.Date(2026, 10, 15, 11, 35, 0, 0, time.UTC), r.ScheduledFor)
		assert.Equal(t, domain.TypeReminder, r.Type)
		assert.Equal(t, domain.StatusPending, r.Status)
		assert.Equal(t, "c1", r.Data["class_id"])
		assert.Equal(t, "Don't forget to mark attendance for Physics c1", r.Body)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RemindersScheduled))
}

func TestGenerate_UsesUserOffset(t *testing.T) {
	f := newFixture()
	u := student("u1")
	u.ReminderMinutes = 15
	f.users.users = []domain.User{u}
	f.timetable["u1"] = []domain.TimetableEntry{class("c1", "11:30")}

	_, err := f.svc.Generate(context.Background(), now)
	require.NoError(t, err)
	for _, r := range f.notifs.created {
		assert.Equal(t, time.Date(2026, 10, 15, 11, 45, 0, 0, time.UTC), r.ScheduledFor)
	}
}

func TestGenerate_SkipsPastMarkedAndOtherDays(t *testing.T) {
	f := newFixture()
	other := class("friday", "15:00")
	other.DayOfWeek = int(time.Friday)
	inactive := class("inactive", "15:00")
	inactive.IsActive = false
	f.timetable["u1"] = []domain.TimetableEntry{
		class("over", "09:00"),
		class("marked", "12:00"),
		other,
		inactive,
		class("due", "16:00"),
	}
	f.attendance["u1|marked|2026-10-15"] = true

	n, err := f.svc.Generate(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	for _, r := range f.notifs.created {
		assert.Equal(t, "due", r.Data["class_id"])
	}
}

func TestGenerate_IsIdempotent(t *testing.T) {
	f := newFixture()
	f.timetable["u1"] = []domain.TimetableEntry{class("c1", "11:30")}

	first, err := f.svc.Generate(context.Background(), now)
	require.NoError(t, err)
	second, err := f.svc.Generate(context.Background(), now.Add(10*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second)
	assert.Len(t, f.notifs.created, 1)
}

func TestGenerate_SkipsUsersWithoutDeliveryToken(t *testing.T) {
	f := newFixture()
	disabled := student("u2")
	disabled.NotificationsEnabled = false
	f.users.users = append(f.users.users, disabled)
	f.timetable["u2"] = []domain.TimetableEntry{class("c9", "11:30")}

	n, err := f.svc.Generate(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGenerate_BadEndTimeIsSkipped(t *testing.T) {
	f := newFixture()
	f.timetable["u1"] = []domain.TimetableEntry{class("bad", "25:99"), class("ok", "11:00")}

	n, err := f.svc.Generate(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGenerate_RespectsLocation(t *testing.T) {
	f := newFixture()
	loc := time.FixedZone("UTC+5", 5*3600)
	f.svc.loc = loc
	// 10:00 UTC is 15:00 local; a class ending 14:00 local is over, 16:00 local is not.
	f.timetable["u1"] = []domain.TimetableEntry{class("early", "14:00"), class("late", "16:00")}

	n, err := f.svc.Generate(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	for _, r := range f.notifs.created {
		assert.Equal(t, time.Date(2026, 10, 15, 11, 5, 0, 0, time.UTC), r.ScheduledFor)
	}
}

func TestGenerate_StoreErrorIsReported(t *testing.T) {
	f := newFixture()
	f.timetable["u1"] = []domain.TimetableEntry{class("c1", "11:30")}
	f.notifs.err = errors.New("throttled")

	n, err := f.svc.Generate(context.Background(), now)
	assert.Zero(t, n)
	assert.ErrorContains(t, err, "throttled")
}

func TestParseClock(t *testing.T) {
	h, m, err := parseClock("09:05")
	require.NoError(t, err)
	assert.Equal(t, 9, h)
	assert.Equal(t, 5, m)

	for _, bad := range []string{"", "9", "24:00", "12:60", "ab:cd"} {
		_, _, err := parseClock(bad)
		assert.Error(t, err, bad)
	}
}
