package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/attendance-notifier/internal/application/delivery"
)

// Pipeline is the part of delivery.Pipeline the admin job endpoints trigger.
type Pipeline interface {
	ProcessDue(ctx context.Context) (delivery.Report, error)
	Cleanup(ctx context.Context, retentionDays int) (delivery.CleanupReport, error)
}

type ReminderGenerator interface {
	Generate(ctx context.Context, now time.Time) (int, error)
}

// JobHandler lets operators run the periodic jobs on demand.
type JobHandler struct {
	pipeline         Pipeline
	reminders        ReminderGenerator
	defaultRetention int
	now              func() time.Time
}

func NewJobHandler(p Pipeline, reminders ReminderGenerator, defaultRetention int) *JobHandler {
	if defaultRetention <= 0 {
		defaultRetention = delivery.DefaultRetentionDays
	}
	return &JobHandler{pipeline: p, reminders: reminders, defaultRetention: defaultRetention, now: time.Now}
}

type jobResponse[T any] struct {
	Report T      `json:"report"`
	Error  string `json:"error,omitempty"`
}

// ProcessDue runs one sweep. A partial failure still returns the report, with status 207.
func (h *JobHandler) ProcessDue(w http.ResponseWriter, r *http.Request) {
	report, err := h.pipeline.ProcessDue(r.Context())
	writeJobResult(w, report, err, report.Selected > 0)
}

func (h *JobHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	days := h.defaultRetention
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}
	report, err := h.pipeline.Cleanup(r.Context(), days)
	writeJobResult(w, report, err, report.Deleted > 0)
}

func (h *JobHandler) Reminders(w http.ResponseWriter, r *http.Request) {
	if h.reminders == nil {
		writeError(w, http.StatusNotImplemented, "reminder generation is not configured")
		return
	}
	n, err := h.reminders.Generate(r.Context(), h.now())
	writeJobResult(w, map[string]int{"scheduled": n}, err, n > 0)
}

func writeJobResult[T any](w http.ResponseWriter, report T, err error, progressed bool) {
	if err == nil {
		writeJSON(w, http.StatusOK, jobResponse[T]{Report: report})
		return
	}
	if !progressed {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusMultiStatus, jobResponse[T]{Report: report, Error: err.Error()})
}
