package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/attendance-notifier/internal/application/delivery"
	"github.com/attendance-notifier/internal/application/notification"
	"github.com/attendance-notifier/internal/domain"
	jwtinfra "github.com/attendance-notifier/internal/infrastructure/jwt"
	"github.com/attendance-notifier/internal/transport/http/middleware"
	"github.com/stretchr/testify/mock"
)

type mockNotificationSvc struct{ mock.Mock }

func (m *mockNotificationSvc) Schedule(ctx context.Context, req domain.ScheduleRequest) (*domain.ScheduledNotification, error) {
	args := m.Called(ctx, req)
	n, _ := args.Get(0).(*domain.ScheduledNotification)
	return n, args.Error(1)
}

func (m *mockNotificationSvc) ScheduleBatch(ctx context.Context, userID string, reqs []domain.ScheduleRequest) (*notification.BatchResult, error) {
	args := m.Called(ctx, userID, reqs)
	r, _ := args.Get(0).(*notification.BatchResult)
	return r, args.Error(1)
}

func (m *mockNotificationSvc) Cancel(ctx context.Context, notificationID, userID string) (*domain.ScheduledNotification, error) {
	args := m.Called(ctx, notificationID, userID)
	n, _ := args.Get(0).(*domain.ScheduledNotification)
	return n, args.Error(1)
}

func (m *mockNotificationSvc) Update(ctx context.Context, notificationID, userID string, req domain.UpdateNotificationRequest) (*domain.ScheduledNotification, error) {
	args := m.Called(ctx, notificationID, userID, req)
	n, _ := args.Get(0).(*domain.ScheduledNotification)
	return n, args.Error(1)
}

func (m *mockNotificationSvc) Get(ctx context.Context, notificationID, userID string) (*domain.ScheduledNotification, error) {
	args := m.Called(ctx, notificationID, userID)
	n, _ := args.Get(0).(*domain.ScheduledNotification)
	return n, args.Error(1)
}

func (m *mockNotificationSvc) ListForUser(ctx context.Context, userID string, f domain.NotificationFilter) ([]domain.ScheduledNotification, string, error) {
	args := m.Called(ctx, userID, f)
	items, _ := args.Get(0).([]domain.ScheduledNotification)
	return items, args.String(1), args.Error(2)
}

func (m *mockNotificationSvc) Logs(ctx context.Context, userID string, f domain.LogFilter) ([]domain.DeliveryLog, string, error) {
	args := m.Called(ctx, userID, f)
	logs, _ := args.Get(0).([]domain.DeliveryLog)
	return logs, args.String(1), args.Error(2)
}

func (m *mockNotificationSvc) Stats(ctx context.Context, userID string, days int) (*domain.DeliveryStats, error) {
	args := m.Called(ctx, userID, days)
	s, _ := args.Get(0).(*domain.DeliveryStats)
	return s, args.Error(1)
}

func (m *mockNotificationSvc) SendNow(ctx context.Context, userID string, req domain.SendNowRequest) (*domain.PushTicket, error) {
	args := m.Called(ctx, userID, req)
	t, _ := args.Get(0).(*domain.PushTicket)
	return t, args.Error(1)
}

type mockUserSvc struct{ mock.Mock }

func (m *mockUserSvc) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *mockUserSvc) RegisterPushToken(ctx context.Context, userID string, req domain.PushTokenRequest) (*domain.User, error) {
	args := m.Called(ctx, userID, req)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *mockUserSvc) UpdateSettings(ctx context.Context, userID string, req domain.UpdateSettingsRequest) (*domain.User, error) {
	args := m.Called(ctx, userID, req)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

type mockPipeline struct{ mock.Mock }

func (m *mockPipeline) ProcessDue(ctx context.Context) (delivery.Report, error) {
	args := m.Called(ctx)
	return args.Get(0).(delivery.Report), args.Error(1)
}

func (m *mockPipeline) Cleanup(ctx context.Context, days int) (delivery.CleanupReport, error) {
	args := m.Called(ctx, days)
	return args.Get(0).(delivery.CleanupReport), args.Error(1)
}

type mockReminders struct{ mock.Mock }

func (m *mockReminders) Generate(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

// authed builds a request carrying claims for userID, as the Auth middleware would.
func authed(method, target, body, userID string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(middleware.WithClaims(req.Context(), &jwtinfra.Claims{UserID: userID, Role: domain.RoleUser}))
}
