package delivery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/attendance-notifier/internal/domain"
)

// memStore is an in-memory NotificationStore with the same conditional
// semantics as the DynamoDB repo.
type memStore struct {
	mu      sync.Mutex
	records map[string]*domain.ScheduledNotification

	failOn    map[string]error // notification id -> error returned by any transition
	listErr   error
	deleteErr error
}

func newMemStore(records ...domain.ScheduledNotification) *memStore {
	s := &memStore{records: map[string]*domain.ScheduledNotification{}, failOn: map[string]error{}}
	for i := range records {
		r := records[i]
		s.records[r.NotificationID] = &r
	}
	return s
}

func (s *memStore) get(id string) domain.ScheduledNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.records[id]
}

func (s *memStore) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[id]
	return ok
}

func (s *memStore) ListDue(_ context.Context, now time.Time, limit int32) ([]domain.ScheduledNotification, error) {
	return s.list(limit, func(n *domain.ScheduledNotification) bool {
		return n.Status == domain.StatusPending && !n.ScheduledFor.After(now) &&
			(n.NextRetryAt == nil || !n.NextRetryAt.After(now))
	}, func(n *domain.ScheduledNotification) time.Time { return n.ScheduledFor })
}

func (s *memStore) ListRetryDue(_ context.Context, now time.Time, limit int32) ([]domain.ScheduledNotification, error) {
	return s.list(limit, func(n *domain.ScheduledNotification) bool {
		return n.Status == domain.StatusPending && n.RetryCount > 0 && n.NextRetryAt != nil && !n.NextRetryAt.After(now)
	}, func(n *domain.ScheduledNotification) time.Time { return *n.NextRetryAt })
}

func (s *memStore) list(limit int32, keep func(*domain.ScheduledNotification) bool, key func(*domain.ScheduledNotification) time.Time) ([]domain.ScheduledNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.ScheduledNotification
	for _, n := range s.records {
		if keep(n) {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return key(&out[i]).Before(key(&out[j])) })
	if int32(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) transition(id string, extra func(*domain.ScheduledNotification) bool, apply func(*domain.ScheduledNotification)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[id]; err != nil {
		return err
	}
	n, ok := s.records[id]
	if !ok || n.Status != domain.StatusPending || (extra != nil && !extra(n)) {
		return domain.ErrAlreadyHandled
	}
	apply(n)
	return nil
}

func (s *memStore) MarkSent(_ context.Context, id, receiptID string, at time.Time) error {
	return s.transition(id, nil, func(n *domain.ScheduledNotification) {
		n.Status = domain.StatusSent
		n.ReceiptID = receiptID
		n.ProcessedAt = &at
	})
}

func (s *memStore) MarkFailed(_ context.Context, id, reason string, at time.Time) error {
	return s.transition(id, nil, func(n *domain.ScheduledNotification) {
		n.Status = domain.StatusFailed
		n.LastError = reason
		n.ProcessedAt = &at
	})
}

func (s *memStore) ScheduleRetry(_ context.Context, id string, from, to int, next time.Time, reason string, _ time.Time) error {
	return s.transition(id, func(n *domain.ScheduledNotification) bool { return n.RetryCount == from }, func(n *domain.ScheduledNotification) {
		n.RetryCount = to
		n.NextRetryAt = &next
		n.LastError = reason
	})
}

func (s *memStore) ListTerminalBefore(_ context.Context, status domain.NotificationStatus, cutoff time.Time, limit int32, cursor string) ([]domain.ScheduledNotification, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ScheduledNotification
	for _, n := range s.records {
		if n.Status == status && n.ProcessedAt != nil && n.ProcessedAt.Before(cutoff) && n.NotificationID > cursor {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NotificationID < out[j].NotificationID })
	if int32(len(out)) > limit {
		out = out[:limit]
		return out, out[len(out)-1].NotificationID, nil
	}
	return out, "", nil
}

func (s *memStore) DeleteMany(_ context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	n := 0
	for _, id := range ids {
		if _, ok := s.records[id]; ok {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

type memLogs struct {
	mu   sync.Mutex
	logs []domain.DeliveryLog
	err  error
}

func (l *memLogs) Put(_ context.Context, e *domain.DeliveryLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.logs = append(l.logs, *e)
	return nil
}

func (l *memLogs) all() []domain.DeliveryLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.DeliveryLog(nil), l.logs...)
}

type memUsers map[string]*domain.User

func (u memUsers) GetMany(_ context.Context, ids []string) (map[string]*domain.User, error) {
	out := map[string]*domain.User{}
	for _, id := range ids {
		if usr, ok := u[id]; ok {
			out[id] = usr
		}
	}
	return out, nil
}

// fakeTransport records every batch and answers with respond, or fails every call with err.
type fakeTransport struct {
	mu      sync.Mutex
	batches [][]domain.PushMessage
	respond func(m domain.PushMessage) domain.PushTicket
	err     error
	limit   int
}

func (t *fakeTransport) Send(_ context.Context, msgs []domain.PushMessage) ([]domain.PushTicket, error) {
	t.mu.Lock()
	t.batches = append(t.batches, msgs)
	t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	if t.limit > 0 && len(msgs) > t.limit {
		return nil, fmt.Errorf("batch of %d exceeds limit %d", len(msgs), t.limit)
	}
	out := make([]domain.PushTicket, len(msgs))
	for i, m := range msgs {
		if t.respond != nil {
			out[i] = t.respond(m)
		} else {
			out[i] = domain.OKTicket("receipt-" + m.NotificationID)
		}
	}
	return out, nil
}

func (t *fakeTransport) ValidToken(token string) bool {
	return len(token) > 6 && token[:6] == "Expo::"
}

func (t *fakeTransport) BatchLimit() int {
	return t.limit
}

func (t *fakeTransport) sent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, b := range t.batches {
		n += len(b)
	}
	return n
}

var errBoom = errors.New("boom")

func userWithToken(id, token string) *domain.User {
	return &domain.User{UserID: id, PushToken: &token, NotificationsEnabled: true}
}

func pending(id, userID string, scheduledFor time.Time) domain.ScheduledNotification {
	return domain.ScheduledNotification{
		NotificationID: id,
		UserID:         userID,
		Title:          "title " + id,
		Body:           "body " + id,
		ScheduledFor:   scheduledFor,
		Type:           domain.TypeReminder,
		Priority:       domain.PriorityNormal,
		Status:         domain.StatusPending,
		MaxRetries:     domain.DefaultMaxRetries,
	}
}
