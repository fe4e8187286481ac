package domain

import "time"

type NotificationType string

const (
	TypeReminder    NotificationType = "reminder"
	TypeSummary     NotificationType = "summary"
	TypeAchievement NotificationType = "achievement"
	TypeSystem      NotificationType = "system"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

type NotificationStatus string

const (
	StatusPending   NotificationStatus = "pending"
	StatusSent      NotificationStatus = "sent"
	StatusFailed    NotificationStatus = "failed"
	StatusCancelled NotificationStatus = "cancelled"
)

// Terminal reports whether no further automatic transition can occur from s.
func (s NotificationStatus) Terminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusCancelled
}

// TerminalStatuses lists every status the cleanup sweeper may purge.
var TerminalStatuses = []NotificationStatus{StatusSent, StatusFailed, StatusCancelled}

const (
	DefaultMaxRetries = 3
	MaxTitleLength    = 100
	MaxBodyLength     = 500
)

// ScheduledNotification is one message to deliver to one user.
// Times used in key conditions are stored as unix seconds so range queries order numerically.
type ScheduledNotification struct {
	NotificationID string             `json:"id" dynamodbav:"notification_id"`
	UserID         string             `json:"user_id" dynamodbav:"user_id"`
	Title          string             `json:"title" dynamodbav:"title"`
	Body           string             `json:"body" dynamodbav:"body"`
	Data           map[string]any     `json:"data,omitempty" dynamodbav:"data,omitempty"`
	ScheduledFor   time.Time          `json:"scheduled_for" dynamodbav:"scheduled_for,unixtime"`
	Type           NotificationType   `json:"type" dynamodbav:"type"`
	Priority       Priority           `json:"priority" dynamodbav:"priority"`
	Status         NotificationStatus `json:"status" dynamodbav:"status"`
	ProcessedAt    *time.Time         `json:"processed_at,omitempty" dynamodbav:"processed_at,omitempty,unixtime"`
	ReceiptID      string             `json:"receipt_id,omitempty" dynamodbav:"receipt_id,omitempty"`
	LastError      string             `json:"last_error,omitempty" dynamodbav:"last_error,omitempty"`
	RetryCount     int                `json:"retry_count" dynamodbav:"retry_count"`
	MaxRetries     int                `json:"max_retries" dynamodbav:"max_retries"`
	NextRetryAt    *time.Time         `json:"next_retry_at,omitempty" dynamodbav:"next_retry_at,omitempty,unixtime"`
	CreatedAt      time.Time          `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time          `json:"updated" dynamodbav:"updated_at"`
}

// DeliveryLog is the append-only audit entry written for every transport attempt.
type DeliveryLog struct {
	LogID          string           `json:"id" dynamodbav:"log_id"`
	NotificationID string           `json:"notification_id,omitempty" dynamodbav:"notification_id,omitempty"`
	PushToken      string           `json:"-" dynamodbav:"push_token"`
	Title          string           `json:"title" dynamodbav:"title"`
	Body           string           `json:"body" dynamodbav:"body"`
	Data           map[string]any   `json:"data,omitempty" dynamodbav:"data,omitempty"`
	Type           NotificationType `json:"type,omitempty" dynamodbav:"type,omitempty"`
	Priority       Priority         `json:"priority,omitempty" dynamodbav:"priority,omitempty"`
	Outcome        TicketOutcome    `json:"status" dynamodbav:"outcome"`
	ReceiptID      string           `json:"receipt_id,omitempty" dynamodbav:"receipt_id,omitempty"`
	ErrorMessage   string           `json:"error,omitempty" dynamodbav:"error_message,omitempty"`
	SentAt         time.Time        `json:"sent_at" dynamodbav:"sent_at,unixtime"`
	ExpiresAt      int64            `json:"-" dynamodbav:"expires_at,omitempty"` // TTL (Unix seconds)
}

type ScheduleRequest struct {
	UserID       string           `json:"-"`
	Title        string           `json:"title" validate:"required,max=100"`
	Body         string           `json:"body" validate:"required,max=500"`
	Data         map[string]any   `json:"data"`
	ScheduledFor time.Time        `json:"scheduled_for" validate:"required"`
	Type         NotificationType `json:"type" validate:"omitempty,oneof=reminder summary achievement system"`
	Priority     Priority         `json:"priority" validate:"omitempty,oneof=low normal high"`
}

type UpdateNotificationRequest struct {
	Title        *string        `json:"title" validate:"omitempty,max=100"`
	Body         *string        `json:"body" validate:"omitempty,max=500"`
	Data         map[string]any `json:"data"`
	ScheduledFor *time.Time     `json:"scheduled_for"`
	Priority     *Priority      `json:"priority" validate:"omitempty,oneof=low normal high"`
}

type SendNowRequest struct {
	Title string         `json:"title" validate:"required,max=100"`
	Body  string         `json:"body" validate:"required,max=500"`
	Data  map[string]any `json:"data"`
}
