package user

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/attendance-notifier/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}

type expoTokens struct{}

func (expoTokens) ValidToken(token string) bool {
	return strings.HasPrefix(token, "ExponentPushToken[")
}

// --- helpers ---

var fixedNow = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func newService(us *mockUserStore) Service {
	return NewService(ServiceDeps{
		UserRepo:  us,
		Transport: expoTokens{},
		Now:       func() time.Time { return fixedNow },
	})
}

// --- tests ---

func TestRegisterPushToken_Stores(t *testing.T) {
	us := &mockUserStore{}
	us.On("Update", mock.Anything, "u1", map[string]interface{}{
		fieldPushToken: "ExponentPushToken[abc]",
		fieldUpdatedAt: fixedNow,
	}).Return(nil)
	tok := "ExponentPushToken[abc]"
	us.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", PushToken: &tok}, nil)

	u, err := newService(us).RegisterPushToken(context.Background(), "u1", domain.PushTokenRequest{Token: tok})
	require.NoError(t, err)
	assert.Equal(t, tok, *u.PushToken)
	us.AssertExpectations(t)
}

func TestRegisterPushToken_RejectsForeignFormat(t *testing.T) {
	us := &mockUserStore{}
	_, err := newService(us).RegisterPushToken(context.Background(), "u1", domain.PushTokenRequest{Token: "fcm:abc"})
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	us.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterPushToken_Empty(t *testing.T) {
	_, err := newService(&mockUserStore{}).RegisterPushToken(context.Background(), "u1", domain.PushTokenRequest{})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestUpdateSettings_PartialUpdate(t *testing.T) {
	us := &mockUserStore{}
	minutes := 10
	us.On("Update", mock.Anything, "u1", map[string]interface{}{
		fieldReminderMinutes: 10,
		fieldUpdatedAt:       fixedNow,
	}).Return(nil)
	us.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", ReminderMinutes: 10}, nil)

	u, err := newService(us).UpdateSettings(context.Background(), "u1", domain.UpdateSettingsRequest{ReminderMinutes: &minutes})
	require.NoError(t, err)
	assert.Equal(t, 10, u.ReminderMinutes)
	us.AssertExpectations(t)
}

func TestUpdateSettings_OutOfRange(t *testing.T) {
	minutes := 500
	_, err := newService(&mockUserStore{}).UpdateSettings(context.Background(), "u1", domain.UpdateSettingsRequest{ReminderMinutes: &minutes})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestUpdateSettings_Empty(t *testing.T) {
	_, err := newService(&mockUserStore{}).UpdateSettings(context.Background(), "u1", domain.UpdateSettingsRequest{})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestUpdateSettings_MissingUser(t *testing.T) {
	us := &mockUserStore{}
	us.On("Update", mock.Anything, "ghost", mock.Anything).Return(domain.ErrNotFound)
	off := false
	_, err := newService(us).UpdateSettings(context.Background(), "ghost", domain.UpdateSettingsRequest{NotificationsEnabled: &off})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
