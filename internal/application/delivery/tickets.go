package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/attendance-notifier/internal/domain"
	"github.com/attendance-notifier/internal/pkg/id"
	"github.com/attendance-notifier/internal/pkg/metrics"
	"github.com/rs/zerolog"
)

// Outcome is what a single ticket did to its record.
type Outcome int

const (
	OutcomeSkipped Outcome = iota // record was no longer pending
	OutcomeSent
	OutcomeRetried
	OutcomeFailed
)

// TicketProcessor applies transport tickets to records and writes the audit trail.
type TicketProcessor struct {
	store   NotificationStore
	logs    LogWriter
	policy  RetryPolicy
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewTicketProcessor(store NotificationStore, logs LogWriter, policy RetryPolicy, m *metrics.Metrics, logger zerolog.Logger) *TicketProcessor {
	return &TicketProcessor{store: store, logs: logs, policy: policy, metrics: m, logger: logger}
}

// Apply moves d.Record according to t and then appends one audit entry.
// The audit write never affects the returned outcome or error.
func (p *TicketProcessor) Apply(ctx context.Context, d Delivery, t domain.PushTicket, now time.Time) (Outcome, error) {
	outcome, err := p.transition(ctx, d.Record, t, now)
	p.audit(ctx, d.Message, t, now)

	if errors.Is(err, domain.ErrAlreadyHandled) {
		p.logger.Debug().Str("notification_id", d.Record.NotificationID).Msg("ticket ignored, notification already handled")
		return OutcomeSkipped, nil
	}
	if err != nil {
		return outcome, err
	}
	switch outcome {
	case OutcomeSent:
		p.metrics.NotificationsSent.Inc()
	case OutcomeRetried:
		p.metrics.NotificationsRetried.Inc()
	case OutcomeFailed:
		p.metrics.NotificationsFailed.WithLabelValues("retries_exhausted").Inc()
	}
	return outcome, nil
}

func (p *TicketProcessor) transition(ctx context.Context, n domain.ScheduledNotification, t domain.PushTicket, now time.Time) (Outcome, error) {
	if t.Outcome == domain.OutcomeOK {
		if err := p.store.MarkSent(ctx, n.NotificationID, t.ReceiptID, now); err != nil {
			return OutcomeSent, p.storageErr("mark_sent", n.NotificationID, err)
		}
		return OutcomeSent, nil
	}

	reason := t.Message
	if reason == "" {
		reason = "unknown error"
	}
	dec := p.policy.Next(n, now)
	if !dec.Retry {
		if err := p.store.MarkFailed(ctx, n.NotificationID, reason, now); err != nil {
			return OutcomeFailed, p.storageErr("mark_failed", n.NotificationID, err)
		}
		return OutcomeFailed, nil
	}
	if err := p.store.ScheduleRetry(ctx, n.NotificationID, n.RetryCount, dec.RetryCount, dec.NextRetryAt, reason, now); err != nil {
		return OutcomeRetried, p.storageErr("schedule_retry", n.NotificationID, err)
	}
	return OutcomeRetried, nil
}

func (p *TicketProcessor) storageErr(op, notificationID string, err error) error {
	if errors.Is(err, domain.ErrAlreadyHandled) {
		return err
	}
	p.metrics.StorageFailures.WithLabelValues(op).Inc()
	return fmt.Errorf("%s %s: %w", op, notificationID, err)
}

func (p *TicketProcessor) audit(ctx context.Context, m domain.PushMessage, t domain.PushTicket, now time.Time) {
	entry := domain.NewDeliveryLog(id.New(), m, t, now)
	if err := p.logs.Put(ctx, &entry); err != nil {
		p.metrics.AuditWriteFailures.Inc()
		p.logger.Warn().Err(err).Str("notification_id", m.NotificationID).Msg("delivery log write failed")
	}
}
