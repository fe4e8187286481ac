package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/attendance-notifier/internal/application/notification"
	"github.com/attendance-notifier/internal/domain"
	"github.com/go-chi/chi/v5"
)

// NotificationHandler handles the caller's scheduled notifications.
type NotificationHandler struct {
	svc notification.Service
}

func NewNotificationHandler(svc notification.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

type batchRequest struct {
	Notifications []domain.ScheduleRequest `json:"notifications"`
}

func (h *NotificationHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req domain.ScheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.UserID = uid
	n, err := h.svc.Schedule(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *NotificationHandler) ScheduleBatch(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req batchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.ScheduleBatch(r.Context(), uid, req.Notifications)
	if err != nil {
		httpError(w, err)
		return
	}
	status := http.StatusCreated
	if len(res.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, res)
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := domain.NotificationFilter{
		Status: domain.NotificationStatus(q.Get("status")),
		Type:   domain.NotificationType(q.Get("type")),
		Cursor: q.Get("cursor"),
	}
	if !validStatus(f.Status) || !validType(f.Type) {
		writeError(w, http.StatusBadRequest, "unknown status or type filter")
		return
	}
	limit, ok := parseLimit(w, q.Get("limit"))
	if !ok {
		return
	}
	f.Limit = limit

	items, next, err := h.svc.ListForUser(r.Context(), uid, f)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(items, next))
}

func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	n, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"), uid)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *NotificationHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req domain.UpdateNotificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), uid, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *NotificationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	n, err := h.svc.Cancel(r.Context(), chi.URLParam(r, "id"), uid)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// Logs lists delivery history for the caller's push token.
func (h *NotificationHandler) Logs(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := domain.LogFilter{
		Outcome: domain.TicketOutcome(q.Get("outcome")),
		Type:    domain.NotificationType(q.Get("type")),
		Cursor:  q.Get("cursor"),
	}
	if f.Outcome != "" && f.Outcome != domain.OutcomeOK && f.Outcome != domain.OutcomeError {
		writeError(w, http.StatusBadRequest, "outcome must be ok or error")
		return
	}
	if !validType(f.Type) {
		writeError(w, http.StatusBadRequest, "unknown type filter")
		return
	}
	var err error
	if f.Since, err = parseTime(q.Get("since")); err != nil {
		writeError(w, http.StatusBadRequest, "since must be RFC 3339")
		return
	}
	if f.Until, err = parseTime(q.Get("until")); err != nil {
		writeError(w, http.StatusBadRequest, "until must be RFC 3339")
		return
	}
	if f.Limit, ok = parseLimit(w, q.Get("limit")); !ok {
		return
	}

	logs, next, err := h.svc.Logs(r.Context(), uid, f)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(logs, next))
}

func (h *NotificationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}
	stats, err := h.svc.Stats(r.Context(), uid, days)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// SendTest pushes a message to the caller right away, bypassing the schedule.
func (h *NotificationHandler) SendTest(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req domain.SendNowRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ticket, err := h.svc.SendNow(r.Context(), uid, req)
	if err != nil {
		httpError(w, err)
		return
	}
	status := http.StatusOK
	if ticket.Outcome == domain.OutcomeError {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, ticket)
}

func parseLimit(w http.ResponseWriter, v string) (int32, bool) {
	if v == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return int32(n), true
}

func parseTime(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func validStatus(s domain.NotificationStatus) bool {
	switch s {
	case "", domain.StatusPending, domain.StatusSent, domain.StatusFailed, domain.StatusCancelled:
		return true
	}
	return false
}

func validType(t domain.NotificationType) bool {
	switch t {
	case "", domain.TypeReminder, domain.TypeSummary, domain.TypeAchievement, domain.TypeSystem:
		return true
	}
	return false
}
