package user

import (
	"context"
	"fmt"
	"time"

	"github.com/attendance-notifier/internal/domain"
	"github.com/attendance-notifier/internal/pkg/validate"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldPushToken            = "push_token"
	fieldNotificationsEnabled = "notifications_enabled"
	fieldReminderMinutes      = "reminder_minutes"
	fieldUpdatedAt            = "updated_at"
)

type Service interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	RegisterPushToken(ctx context.Context, userID string, req domain.PushTokenRequest) (*domain.User, error)
	UpdateSettings(ctx context.Context, userID string, req domain.UpdateSettingsRequest) (*domain.User, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type tokenValidator interface {
	ValidToken(token string) bool
}

type service struct {
	repo   userStore
	tokens tokenValidator
	now    func() time.Time
}

type ServiceDeps struct {
	UserRepo  userStore
	Transport tokenValidator
	Now       func() time.Time
}

func NewService(deps ServiceDeps) Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &service{repo: deps.UserRepo, tokens: deps.Transport, now: deps.Now}
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.Get(ctx, userID)
}

// RegisterPushToken stores the device's push token. Tokens the active transport
// cannot deliver to are rejected up front instead of failing every later delivery.
func (s *service) RegisterPushToken(ctx context.Context, userID string, req domain.PushTokenRequest) (*domain.User, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if s.tokens != nil && !s.tokens.ValidToken(req.Token) {
		return nil, fmt.Errorf("%w: %w", domain.ErrBadRequest, domain.ErrInvalidToken)
	}
	return s.update(ctx, userID, map[string]interface{}{fieldPushToken: req.Token})
}

func (s *service) UpdateSettings(ctx context.Context, userID string, req domain.UpdateSettingsRequest) (*domain.User, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if req.NotificationsEnabled != nil {
		updates[fieldNotificationsEnabled] = *req.NotificationsEnabled
	}
	if req.ReminderMinutes != nil {
		updates[fieldReminderMinutes] = *req.ReminderMinutes
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("no fields to update: %w", domain.ErrBadRequest)
	}
	return s.update(ctx, userID, updates)
}

func (s *service) update(ctx context.Context, userID string, updates map[string]interface{}) (*domain.User, error) {
	updates[fieldUpdatedAt] = s.now().UTC()
	if err := s.repo.Update(ctx, userID, updates); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID)
}
