package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/attendance-notifier/internal/application/notification"
	"github.com/attendance-notifier/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func notificationRouter(svc *mockNotificationSvc) http.Handler {
	h := NewNotificationHandler(svc)
	r := chi.NewRouter()
	r.Post("/notifications", h.Schedule)
	r.Post("/notifications/batch", h.ScheduleBatch)
	r.Get("/notifications", h.List)
	r.Get("/notifications/logs", h.Logs)
	r.Get("/notifications/stats", h.Stats)
	r.Post("/notifications/test", h.SendTest)
	r.Get("/notifications/{id}", h.Get)
	r.Put("/notifications/{id}", h.Update)
	r.Delete("/notifications/{id}", h.Cancel)
	return r
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v))
}

func TestSchedule_CreatesForCaller(t *testing.T) {
	svc := new(mockNotificationSvc)
	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	svc.On("Schedule", mock.Anything, mock.MatchedBy(func(req domain.ScheduleRequest) bool {
		return req.UserID == "u1" && req.Title == "Quiz" && req.ScheduledFor.Equal(at)
	})).Return(&domain.ScheduledNotification{NotificationID: "n1", UserID: "u1", Status: domain.StatusPending}, nil)

	body := `{"title":"Quiz","body":"Chapter 4 quiz tomorrow","scheduled_for":"2026-10-15T09:00:00Z"}`
	rr := serve(notificationRouter(svc), authed(http.MethodPost, "/notifications", body, "u1"))

	assert.Equal(t, http.StatusCreated, rr.Code)
	var got domain.ScheduledNotification
	decodeBody(t, rr, &got)
	assert.Equal(t, "n1", got.NotificationID)
	svc.AssertExpectations(t)
}

func TestSchedule_UserIDInBodyIsIgnored(t *testing.T) {
	svc := new(mockNotificationSvc)
	svc.On("Schedule", mock.Anything, mock.MatchedBy(func(req domain.ScheduleRequest) bool {
		return req.UserID == "u1"
	})).Return(&domain.ScheduledNotification{NotificationID: "n1"}, nil)

	body := `{"user_id":"someone-else","title":"t","body":"b","scheduled_for":"2026-10-15T09:00:00Z"}`
	rr := serve(notificationRouter(svc), authed(http.MethodPost, "/notifications", body, "u1"))

	assert.Equal(t, http.StatusCreated, rr.Code)
	svc.AssertExpectations(t)
}

func TestSchedule_BadBody(t *testing.T) {
	svc := new(mockNotificationSvc)
	rr := serve(notificationRouter(svc), authed(http.MethodPost, "/notifications", `{"title":`, "u1"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything)
}

func TestSchedule_ValidationError(t *testing.T) {
	svc := new(mockNotificationSvc)
	svc.On("Schedule", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("field 'title' failed 'max': %w", domain.ErrBadRequest))

	rr := serve(notificationRouter(svc), authed(http.MethodPost, "/notifications", `{"title":"x"}`, "u1"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "field 'title' failed 'max'")
}

func TestSchedule_Unauthenticated(t *testing.T) {
	svc := new(mockNotificationSvc)
	req := httptest.NewRequest(http.MethodPost, "/notifications", nil)

	rr := serve(notificationRouter(svc), req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestScheduleBatch_PartialIsMultiStatus(t *testing.T) {
	svc := new(mockNotificationSvc)
	svc.On("ScheduleBatch", mock.Anything, "u1", mock.MatchedBy(func(reqs []domain.ScheduleRequest) bool {
		return len(reqs) == 2
	})).Return(&notification.BatchResult{
		Created: []*domain.ScheduledNotification{{NotificationID: "n1"}},
		Failed:  []notification.BatchError{{Index: 1, Error: "bad request"}},
	}, nil)

	body := `{"notifications":[{"title":"a","body":"b","scheduled_for":"2026-10-15T09:00:00Z"},{"title":""}]}`
	rr := serve(notificationRouter(svc), authed(http.MethodPost, "/notifications/batch", body, "u1"))

	assert.Equal(t, http.StatusMultiStatus, rr.Code)
	var got notification.BatchResult
	decodeBody(t, rr, &got)
	require.Len(t, got.Failed, 1)
	assert.Equal(t, 1, got.Failed[0].Index)
}

func TestList_PassesFiltersAndCursor(t *testing.T) {
	svc := new(mockNotificationSvc)
	want := domain.NotificationFilter{Status: domain.StatusPending, Type: domain.TypeReminder, Limit: 10, Cursor: "abc"}
	svc.On("ListForUser", mock.Anything, "u1", want).
		Return([]domain.ScheduledNotification{{NotificationID: "n1"}}, "next-page", nil)

	rr := serve(notificationRouter(svc), authed(http.MethodGet, "/notifications?status=pending&type=reminder&limit=10&cursor=abc", "", "u1"))

	require.Equal(t, http.StatusOK, rr.Code)
	var page PageEnvelope[domain.ScheduledNotification]
	decodeBody(t, rr, &page)
	assert.Equal(t, 1, page.Count)
	assert.Equal(t, "next-page", page.NextCursor)
}

func TestList_EmptyIsArray(t *testing.T) {
	svc := new(mockNotificationSvc)
	svc.On("ListForUser", mock.Anything, "u1", domain.NotificationFilter{}).Return(nil, "", nil)

	rr := serve(notificationRouter(svc), authed(http.MethodGet, "/notifications", "", "u1"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":[],"count":0}`, rr.Body.String())
}

func TestList_RejectsUnknownFilter(t *testing.T) {
	svc := new(mockNotificationSvc)
	for _, q := range []string{"status=done", "type=promo", "limit=0", "limit=abc"} {
		rr := serve(notificationRouter(svc), authed(http.MethodGet, "/notifications?"+q, "", "u1"))
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
	svc.AssertNotCalled(t, "ListForUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestGet_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("notification n1: %w", domain.ErrNotFound), http.StatusNotFound},
		{domain.ErrForbidden, http.StatusForbidden},
		{errors.New("dynamodb: throttled"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		svc := new(mockNotificationSvc)
		svc.On("Get", mock.Anything, "n1", "u1").Return(nil, tc.err)

		rr := serve(notificationRouter(svc), authed(http.MethodGet, "/notifications/n1", "", "u1"))

		assert.Equal(t, tc.code, rr.Code, tc.err.Error())
		assert.NotContains(t, rr.Body.String(), "throttled")
	}
}

func TestUpdate_PassesFields(t *testing.T) {
	svc := new(mockNotificationSvc)
	svc.On("Update", mock.Anything, "n1", "u1", mock.MatchedBy(func(req domain.UpdateNotificationRequest) bool {
		return req.Title != nil && *req.Title == "New title" && req.Body == nil
	})).Return(&domain.ScheduledNotification{NotificationID: "n1", Title: "New title"}, nil)

	rr := serve(notificationRouter(svc), authed(http.MethodPut, "/notifications/n1", `{"title":"New title"}`, "u1"))

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestCancel_TerminalIsConflict(t *testing.T) {
	svc := new(mockNotificationSvc)
	svc.On("Cancel", mock.Anything, "n1", "u1").Return(nil, fmt.Errorf("notification is sent: %w", domain.ErrConflict))

	rr := serve(notificationRouter(svc), authed(http.MethodDelete, "/notifications/n1", "", "u1"))

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestCancel_OK(t *testing.T) {
	svc := new(mockNotificationSvc)
	svc.On("Cancel", mock.Anything, "n1", "u1").
		Return(&domain.ScheduledNotification{NotificationID: "n1", Status: domain.StatusCancelled}, nil)

	rr := serve(notificationRouter(svc), authed(http.MethodDelete, "/notifications/n1", "", "u1"))

	require.Equal(t, http.StatusOK, rr.Code)
	var got domain.ScheduledNotification
	decodeBody(t, rr, &got)
	assert.Equal(t, domain.StatusCancelled, got.Status)
}

func TestLogs_ParsesRange(t *testing.T) {
	svc := new(mockNotificationSvc)
	since := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	svc.On("Logs", mock.Anything, "u1", mock.MatchedBy(func(f domain.LogFilter) bool {
		return f.Outcome == domain.OutcomeError && f.Since != nil && f.Since.Equal(since) && f.Until == nil && f.Limit == 5
	})).Return([]domain.DeliveryLog{{LogID: "l1"}}, "", nil)

	rr := serve(notificationRouter(svc), authed(http.MethodGet, "/notifications/logs?outcome=error&since=2026-10-01T00:00:00Z&limit=5", "", "u1"))

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestLogs_BadParams(t *testing.T) {
	svc := new(mockNotificationSvc)
	for _, q := range []string{"outcome=maybe", "since=yesterday", "until=2026-13-01", "type=promo"} {
		rr := serve(notificationRouter(svc), authed(http.MethodGet, "/notifications/logs?"+q, "", "u1"))
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}

func TestStats_Days(t *testing.T) {
	svc := new(mockNotificationSvc)
	svc.On("Stats", mock.Anything, "u1", 7).Return(&domain.DeliveryStats{Total: 4, Successful: 3, Failed: 1, SuccessRate: 75}, nil)
	svc.On("Stats", mock.Anything, "u1", 0).Return(&domain.DeliveryStats{}, nil)

	rr := serve(notificationRouter(svc), authed(http.MethodGet, "/notifications/stats?days=7", "", "u1"))
	require.Equal(t, http.StatusOK, rr.Code)
	var got domain.DeliveryStats
	decodeBody(t, rr, &got)
	assert.Equal(t, 75, got.SuccessRate)

	rr = serve(notificationRouter(svc), authed(http.MethodGet, "/notifications/stats", "", "u1"))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(notificationRouter(svc), authed(http.MethodGet, "/notifications/stats?days=-1", "", "u1"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSendTest_TicketOutcome(t *testing.T) {
	svc := new(mockNotificationSvc)
	svc.On("SendNow", mock.Anything, "u1", domain.SendNowRequest{Title: "Hi", Body: "ok"}).
		Return(&domain.PushTicket{Outcome: domain.OutcomeOK, ReceiptID: "r1"}, nil)
	svc.On("SendNow", mock.Anything, "u1", domain.SendNowRequest{Title: "Hi", Body: "gone"}).
		Return(&domain.PushTicket{Outcome: domain.OutcomeError, Message: "DeviceNotRegistered"}, nil)

	rr := serve(notificationRouter(svc), authed(http.MethodPost, "/notifications/test", `{"title":"Hi","body":"ok"}`, "u1"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok","id":"r1"}`, rr.Body.String())

	rr = serve(notificationRouter(svc), authed(http.MethodPost, "/notifications/test", `{"title":"Hi","body":"gone"}`, "u1"))
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestSendTest_InvalidToken(t *testing.T) {
	svc := new(mockNotificationSvc)
	svc.On("SendNow", mock.Anything, "u1", mock.Anything).
		Return(nil, fmt.Errorf("%w: %w", domain.ErrBadRequest, domain.ErrInvalidToken))

	rr := serve(notificationRouter(svc), authed(http.MethodPost, "/notifications/test", `{"title":"Hi","body":"b"}`, "u1"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
