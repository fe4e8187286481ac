package notification

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/attendance-notifier/internal/domain"
	"github.com/attendance-notifier/internal/pkg/id"
	"github.com/attendance-notifier/internal/pkg/validate"
	"github.com/rs/zerolog"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldTitle        = "title"
	fieldBody         = "body"
	fieldData         = "data"
	fieldScheduledFor = "scheduled_for"
	fieldPriority     = "priority"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxBatch        = 100
	defaultStatDays = 30
)

type Service interface {
	Schedule(ctx context.Context, req domain.ScheduleRequest) (*domain.ScheduledNotification, error)
	ScheduleBatch(ctx context.Context, userID string, reqs []domain.ScheduleRequest) (*BatchResult, error)
	Cancel(ctx context.Context, notificationID, userID string) (*domain.ScheduledNotification, error)
	Update(ctx context.Context, notificationID, userID string, req domain.UpdateNotificationRequest) (*domain.ScheduledNotification, error)
	Get(ctx context.Context, notificationID, userID string) (*domain.ScheduledNotification, error)
	ListForUser(ctx context.Context, userID string, f domain.NotificationFilter) ([]domain.ScheduledNotification, string, error)
	Logs(ctx context.Context, userID string, f domain.LogFilter) ([]domain.DeliveryLog, string, error)
	Stats(ctx context.Context, userID string, days int) (*domain.DeliveryStats, error)
	SendNow(ctx context.Context, userID string, req domain.SendNowRequest) (*domain.PushTicket, error)
}

// BatchError reports why the request at Index was not scheduled.
type BatchError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type BatchResult struct {
	Created []*domain.ScheduledNotification `json:"created"`
	Failed  []BatchError                    `json:"failed,omitempty"`
}

type notificationStore interface {
	Create(ctx context.Context, n *domain.ScheduledNotification) error
	Get(ctx context.Context, notificationID string) (*domain.ScheduledNotification, error)
	ListByUser(ctx context.Context, userID string, f domain.NotificationFilter) ([]domain.ScheduledNotification, string, error)
	Cancel(ctx context.Context, notificationID string, at time.Time) (*domain.ScheduledNotification, error)
	UpdatePending(ctx context.Context, notificationID string, updates map[string]interface{}) (*domain.ScheduledNotification, error)
}

type logStore interface {
	Put(ctx context.Context, l *domain.DeliveryLog) error
	ListByToken(ctx context.Context, token string, f domain.LogFilter) ([]domain.DeliveryLog, string, error)
	ListAllByToken(ctx context.Context, token string, f domain.LogFilter) ([]domain.DeliveryLog, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type pusher interface {
	Send(ctx context.Context, msgs []domain.PushMessage) ([]domain.PushTicket, error)
	ValidToken(token string) bool
}

type service struct {
	repo       notificationStore
	logs       logStore
	users      userStore
	transport  pusher
	maxRetries int
	logger     zerolog.Logger
	now        func() time.Time
}

type ServiceDeps struct {
	NotificationRepo notificationStore
	LogRepo          logStore
	UserRepo         userStore
	Transport        pusher
	MaxRetries       int
	Logger           zerolog.Logger
	Now              func() time.Time
}

func NewService(deps ServiceDeps) Service {
	if deps.MaxRetries <= 0 {
		deps.MaxRetries = domain.DefaultMaxRetries
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &service{
		repo:       deps.NotificationRepo,
		logs:       deps.LogRepo,
		users:      deps.UserRepo,
		transport:  deps.Transport,
		maxRetries: deps.MaxRetries,
		logger:     deps.Logger,
		now:        deps.Now,
	}
}

// Schedule creates a pending notification. A past scheduled_for is delivered on the next sweep.
func (s *service) Schedule(ctx context.Context, req domain.ScheduleRequest) (*domain.ScheduledNotification, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("user_id is required: %w", domain.ErrBadRequest)
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if req.ScheduledFor.IsZero() {
		return nil, fmt.Errorf("scheduled_for is required: %w", domain.ErrBadRequest)
	}
	if req.Type == "" {
		req.Type = domain.TypeSystem
	}
	if req.Priority == "" {
		req.Priority = domain.PriorityNormal
	}
	now := s.now().UTC()
	n := &domain.ScheduledNotification{
		NotificationID: id.New(),
		UserID:         req.UserID,
		Title:          req.Title,
		Body:           req.Body,
		Data:           req.Data,
		ScheduledFor:   req.ScheduledFor.UTC(),
		Type:           req.Type,
		Priority:       req.Priority,
		Status:         domain.StatusPending,
		MaxRetries:     s.maxRetries,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	s.logger.Debug().
		Str("notification_id", n.NotificationID).
		Str("user_id", n.UserID).
		Time("scheduled_for", n.ScheduledFor).
		Msg("notification scheduled")
	return n, nil
}

// ScheduleBatch schedules each request independently; one bad entry does not stop the rest.
func (s *service) ScheduleBatch(ctx context.Context, userID string, reqs []domain.ScheduleRequest) (*BatchResult, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("notifications list is empty: %w", domain.ErrBadRequest)
	}
	if len(reqs) > maxBatch {
		return nil, fmt.Errorf("at most %d notifications per batch: %w", maxBatch, domain.ErrBadRequest)
	}
	res := &BatchResult{Created: make([]*domain.ScheduledNotification, 0, len(reqs))}
	for i, req := range reqs {
		req.UserID = userID
		n, err := s.Schedule(ctx, req)
		if err != nil {
			if !errors.Is(err, domain.ErrBadRequest) && !errors.Is(err, domain.ErrConflict) {
				return res, err
			}
			res.Failed = append(res.Failed, BatchError{Index: i, Error: err.Error()})
			continue
		}
		res.Created = append(res.Created, n)
	}
	return res, nil
}

// Cancel moves a pending notification to cancelled. Terminal notifications are a conflict.
func (s *service) Cancel(ctx context.Context, notificationID, userID string) (*domain.ScheduledNotification, error) {
	n, err := s.owned(ctx, notificationID, userID)
	if err != nil {
		return nil, err
	}
	if n.Status.Terminal() {
		return nil, fmt.Errorf("notification is %s: %w", n.Status, domain.ErrConflict)
	}
	out, err := s.repo.Cancel(ctx, notificationID, s.now().UTC())
	if errors.Is(err, domain.ErrAlreadyHandled) {
		return nil, fmt.Errorf("notification was processed concurrently: %w", domain.ErrConflict)
	}
	return out, err
}

func (s *service) Update(ctx context.Context, notificationID, userID string, req domain.UpdateNotificationRequest) (*domain.ScheduledNotification, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	n, err := s.owned(ctx, notificationID, userID)
	if err != nil {
		return nil, err
	}
	if n.Status.Terminal() {
		return nil, fmt.Errorf("notification is %s: %w", n.Status, domain.ErrConflict)
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates[fieldTitle] = *req.Title
	}
	if req.Body != nil {
		updates[fieldBody] = *req.Body
	}
	if req.Data != nil {
		updates[fieldData] = req.Data
	}
	if req.ScheduledFor != nil {
		updates[fieldScheduledFor] = req.ScheduledFor.UTC().Unix()
	}
	if req.Priority != nil {
		updates[fieldPriority] = *req.Priority
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("no fields to update: %w", domain.ErrBadRequest)
	}

	out, err := s.repo.UpdatePending(ctx, notificationID, updates)
	if errors.Is(err, domain.ErrAlreadyHandled) {
		return nil, fmt.Errorf("notification was processed concurrently: %w", domain.ErrConflict)
	}
	return out, err
}

func (s *service) Get(ctx context.Context, notificationID, userID string) (*domain.ScheduledNotification, error) {
	return s.owned(ctx, notificationID, userID)
}

func (s *service) ListForUser(ctx context.Context, userID string, f domain.NotificationFilter) ([]domain.ScheduledNotification, string, error) {
	f.Limit = clampLimit(f.Limit)
	return s.repo.ListByUser(ctx, userID, f)
}

// Logs returns the delivery history of the user's current push token.
func (s *service) Logs(ctx context.Context, userID string, f domain.LogFilter) ([]domain.DeliveryLog, string, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	if u.PushToken == nil || *u.PushToken == "" {
		return []domain.DeliveryLog{}, "", nil
	}
	f.Limit = clampLimit(f.Limit)
	return s.logs.ListByToken(ctx, *u.PushToken, f)
}

// Stats aggregates the last days of delivery logs for the user's push token.
func (s *service) Stats(ctx context.Context, userID string, days int) (*domain.DeliveryStats, error) {
	if days <= 0 {
		days = defaultStatDays
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.PushToken == nil || *u.PushToken == "" {
		return &domain.DeliveryStats{ByType: []domain.TypeStats{}}, nil
	}
	since := s.now().UTC().AddDate(0, 0, -days)
	logs, err := s.logs.ListAllByToken(ctx, *u.PushToken, domain.LogFilter{Since: &since})
	if err != nil {
		return nil, err
	}
	return computeStats(logs), nil
}

// SendNow delivers one message immediately, bypassing the schedule.
func (s *service) SendNow(ctx context.Context, userID string, req domain.SendNowRequest) (*domain.PushTicket, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.PushToken == nil || !s.transport.ValidToken(*u.PushToken) {
		return nil, fmt.Errorf("%w: %w", domain.ErrBadRequest, domain.ErrInvalidToken)
	}
	msg := domain.PushMessage{
		To:       *u.PushToken,
		Title:    req.Title,
		Body:     req.Body,
		Data:     req.Data,
		Priority: domain.PriorityHigh,
		Type:     domain.TypeSystem,
	}
	tickets, err := s.transport.Send(ctx, []domain.PushMessage{msg})
	if err != nil {
		return nil, fmt.Errorf("push send: %w", err)
	}
	if len(tickets) != 1 {
		return nil, fmt.Errorf("push send: expected 1 ticket, got %d", len(tickets))
	}
	ticket := tickets[0]
	entry := domain.NewDeliveryLog(id.New(), msg, ticket, s.now().UTC())
	if err := s.logs.Put(ctx, &entry); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("delivery log write failed")
	}
	return &ticket, nil
}

func (s *service) owned(ctx context.Context, notificationID, userID string) (*domain.ScheduledNotification, error) {
	n, err := s.repo.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, fmt.Errorf("forbidden: %w", domain.ErrForbidden)
	}
	return n, nil
}

func clampLimit(l int32) int32 {
	if l <= 0 {
		return defaultPageSize
	}
	if l > maxPageSize {
		return maxPageSize
	}
	return l
}

func computeStats(logs []domain.DeliveryLog) *domain.DeliveryStats {
	stats := &domain.DeliveryStats{}
	byType := map[domain.NotificationType]*domain.TypeStats{}
	for _, l := range logs {
		typ := l.Type
		if typ == "" {
			typ = domain.TypeSystem
		}
		ts, ok := byType[typ]
		if !ok {
			ts = &domain.TypeStats{Type: typ}
			byType[typ] = ts
		}
		stats.Total++
		ts.Total++
		if l.Outcome == domain.OutcomeOK {
			stats.Successful++
			ts.Successful++
		} else {
			stats.Failed++
			ts.Failed++
		}
	}
	if stats.Total > 0 {
		stats.SuccessRate = int(math.Round(float64(stats.Successful) / float64(stats.Total) * 100))
	}
	stats.ByType = make([]domain.TypeStats, 0, len(byType))
	for _, ts := range byType {
		ts.SuccessRate = math.Round(float64(ts.Successful)/float64(ts.Total)*1000) / 10
		stats.ByType = append(stats.ByType, *ts)
	}
	sort.Slice(stats.ByType, func(i, j int) bool { return stats.ByType[i].Type < stats.ByType[j].Type })
	return stats
}
