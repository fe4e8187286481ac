package dynamo

// DynamoDB attribute names used in key conditions and update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldNotificationID = "notification_id"
	fieldUserID         = "user_id"
	fieldStatus         = "status"
	fieldScheduledFor   = "scheduled_for"
	fieldProcessedAt    = "processed_at"
	fieldNextRetryAt    = "next_retry_at"
	fieldRetryCount     = "retry_count"
	fieldReceiptID      = "receipt_id"
	fieldLastError      = "last_error"
	fieldUpdatedAt      = "updated_at"
	fieldType           = "type"

	fieldLogID     = "log_id"
	fieldPushToken = "push_token"
	fieldSentAt    = "sent_at"
	fieldOutcome   = "outcome"

	fieldNotificationsEnabled = "notifications_enabled"
	fieldReminderMinutes      = "reminder_minutes"

	fieldEntryID   = "entry_id"
	fieldDayOfWeek = "day_of_week"
	fieldIsActive  = "is_active"
	fieldRecordID  = "record_id"
	fieldDate      = "date"
)

// GSI names created by Bootstrap.
const (
	indexStatusScheduledFor = "status-scheduled_for-index"
	indexStatusNextRetryAt  = "status-next_retry_at-index"
	indexStatusProcessedAt  = "status-processed_at-index"
	indexUserScheduledFor   = "user_id-scheduled_for-index"
	indexTokenSentAt        = "push_token-sent_at-index"
	indexUserID             = "user_id-index"
	indexUserDate           = "user_id-date-index"
)

// Service limits for batch operations.
const (
	maxBatchWrite = 25
	maxBatchGet   = 100
)
