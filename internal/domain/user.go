package domain

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	DefaultReminderMinutes = 5
)

type User struct {
	UserID               string    `json:"id" dynamodbav:"user_id"`
	Email                string    `json:"email" dynamodbav:"email"`
	Name                 string    `json:"name" dynamodbav:"name"`
	Role                 string    `json:"role" dynamodbav:"role"`
	PushToken            *string   `json:"push_token,omitempty" dynamodbav:"push_token,omitempty"`
	NotificationsEnabled bool      `json:"notifications_enabled" dynamodbav:"notifications_enabled"`
	ReminderMinutes      int       `json:"reminder_minutes" dynamodbav:"reminder_minutes"`
	CreatedAt            time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt            time.Time `json:"updated" dynamodbav:"updated_at"`
}

// DeliveryToken returns the token notifications should go to, or "" when the user cannot receive pushes.
func (u *User) DeliveryToken() string {
	if u == nil || !u.NotificationsEnabled || u.PushToken == nil {
		return ""
	}
	return *u.PushToken
}

type PushTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type UpdateSettingsRequest struct {
	NotificationsEnabled *bool `json:"notifications_enabled"`
	ReminderMinutes      *int  `json:"reminder_minutes" validate:"omitempty,min=1,max=120"`
}
