package delivery

import (
	"time"

	"github.com/attendance-notifier/internal/domain"
)

// DefaultBackoff is the linear backoff step between attempts.
const DefaultBackoff = 5 * time.Minute

// RetryPolicy decides what happens to a record after a failed attempt.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// RetryDecision is the outcome of RetryPolicy.Next. When Retry is false the record fails permanently.
type RetryDecision struct {
	Retry       bool
	RetryCount  int
	NextRetryAt time.Time
}

// Next increments the counter first and then multiplies, so the first retry waits one step.
// The record fails once the incremented counter reaches its max retries.
func (p RetryPolicy) Next(n domain.ScheduledNotification, now time.Time) RetryDecision {
	limit := n.MaxRetries
	if limit <= 0 {
		limit = p.MaxRetries
	}
	if limit <= 0 {
		limit = domain.DefaultMaxRetries
	}
	step := p.Backoff
	if step <= 0 {
		step = DefaultBackoff
	}

	next := n.RetryCount + 1
	if next >= limit {
		return RetryDecision{RetryCount: n.RetryCount}
	}
	return RetryDecision{
		Retry:       true,
		RetryCount:  next,
		NextRetryAt: now.Add(time.Duration(next) * step),
	}
}
