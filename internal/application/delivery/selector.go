package delivery

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/attendance-notifier/internal/domain"
)

// Selector loads the records eligible for a delivery attempt at a given instant.
type Selector struct {
	store     NotificationStore
	duePage   int32
	retryPage int32
}

func NewSelector(store NotificationStore, duePage, retryPage int32) *Selector {
	return &Selector{store: store, duePage: duePage, retryPage: retryPage}
}

// Select merges the due lane and the retry lane, drops duplicates and anything
// either gate still blocks, and returns the rest ordered by scheduled_for.
func (s *Selector) Select(ctx context.Context, now time.Time) ([]domain.ScheduledNotification, error) {
	due, err := s.store.ListDue(ctx, now, s.duePage)
	if err != nil {
		return nil, fmt.Errorf("list due notifications: %w", err)
	}
	retry, err := s.store.ListRetryDue(ctx, now, s.retryPage)
	if err != nil {
		return nil, fmt.Errorf("list retry-due notifications: %w", err)
	}

	seen := make(map[string]struct{}, len(due)+len(retry))
	out := make([]domain.ScheduledNotification, 0, len(due)+len(retry))
	for _, lane := range [][]domain.ScheduledNotification{due, retry} {
		for _, n := range lane {
			if _, dup := seen[n.NotificationID]; dup {
				continue
			}
			seen[n.NotificationID] = struct{}{}
			if Eligible(n, now) {
				out = append(out, n)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ScheduledFor.Before(out[j].ScheduledFor)
	})
	return out, nil
}

// Eligible reports whether n may be attempted at now. scheduled_for and
// next_retry_at are independent gates; both must have passed.
func Eligible(n domain.ScheduledNotification, now time.Time) bool {
	if n.Status != domain.StatusPending {
		return false
	}
	if n.ScheduledFor.After(now) {
		return false
	}
	if n.NextRetryAt != nil && n.NextRetryAt.After(now) {
		return false
	}
	return true
}
