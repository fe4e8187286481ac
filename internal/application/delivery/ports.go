package delivery

import (
	"context"
	"time"

	"github.com/attendance-notifier/internal/domain"
)

// Transport sends one batch to a push gateway. Tickets come back in input order,
// one per message. An error means the whole batch failed.
// BatchLimit is the most messages one Send accepts; zero means unbounded.
type Transport interface {
	Send(ctx context.Context, msgs []domain.PushMessage) ([]domain.PushTicket, error)
	ValidToken(token string) bool
	BatchLimit() int
}

// NotificationStore is the record store as seen by the pipeline. Every Mark*/ScheduleRetry
// call must be a single conditional update on status = pending and return
// domain.ErrAlreadyHandled when the guard fails.
type NotificationStore interface {
	ListDue(ctx context.Context, now time.Time, limit int32) ([]domain.ScheduledNotification, error)
	ListRetryDue(ctx context.Context, now time.Time, limit int32) ([]domain.ScheduledNotification, error)
	MarkSent(ctx context.Context, notificationID, receiptID string, at time.Time) error
	MarkFailed(ctx context.Context, notificationID, reason string, at time.Time) error
	ScheduleRetry(ctx context.Context, notificationID string, fromRetryCount, retryCount int, nextRetryAt time.Time, reason string, at time.Time) error
	ListTerminalBefore(ctx context.Context, status domain.NotificationStatus, cutoff time.Time, limit int32, cursor string) ([]domain.ScheduledNotification, string, error)
	DeleteMany(ctx context.Context, ids []string) (int, error)
}

type LogWriter interface {
	Put(ctx context.Context, l *domain.DeliveryLog) error
}

// UserDirectory resolves recipients. Unknown ids are simply absent from the result.
type UserDirectory interface {
	GetMany(ctx context.Context, userIDs []string) (map[string]*domain.User, error)
}

// Locker keeps two sweeps from running at once. ok is false when another holder has the lock.
type Locker interface {
	TryLock(ctx context.Context) (unlock func(), ok bool, err error)
}

// Archiver stores purged records before they are deleted.
type Archiver interface {
	Store(ctx context.Context, status domain.NotificationStatus, at time.Time, records []domain.ScheduledNotification) (string, error)
}
