package domain

import "time"

// TimetableEntry is one weekly class slot. DayOfWeek follows time.Weekday (0 = Sunday).
type TimetableEntry struct {
	EntryID     string    `json:"id" dynamodbav:"entry_id"`
	UserID      string    `json:"user_id" dynamodbav:"user_id"`
	Subject     string    `json:"subject" dynamodbav:"subject"`
	SubjectCode string    `json:"subject_code" dynamodbav:"subject_code"`
	Instructor  string    `json:"instructor,omitempty" dynamodbav:"instructor,omitempty"`
	Room        string    `json:"room,omitempty" dynamodbav:"room,omitempty"`
	DayOfWeek   int       `json:"day_of_week" dynamodbav:"day_of_week"`
	StartTime   string    `json:"start_time" dynamodbav:"start_time"` // "HH:MM"
	EndTime     string    `json:"end_time" dynamodbav:"end_time"`     // "HH:MM"
	IsActive    bool      `json:"is_active" dynamodbav:"is_active"`
	CreatedAt   time.Time `json:"created" dynamodbav:"created_at"`
}

type AttendanceStatus string

const (
	AttendancePresent   AttendanceStatus = "present"
	AttendanceAbsent    AttendanceStatus = "absent"
	AttendanceLate      AttendanceStatus = "late"
	AttendanceCancelled AttendanceStatus = "cancelled"
)

const DateLayout = "2006-01-02"

type AttendanceRecord struct {
	RecordID string           `json:"id" dynamodbav:"record_id"`
	UserID   string           `json:"user_id" dynamodbav:"user_id"`
	EntryID  string           `json:"entry_id" dynamodbav:"entry_id"`
	Date     string           `json:"date" dynamodbav:"date"` // DateLayout
	Status   AttendanceStatus `json:"status" dynamodbav:"status"`
	MarkedAt time.Time        `json:"marked_at" dynamodbav:"marked_at"`
}
