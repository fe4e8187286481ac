package domain

import "time"

type TicketOutcome string

const (
	OutcomeOK    TicketOutcome = "ok"
	OutcomeError TicketOutcome = "error"
)

// PushMessage is one entry of a batch handed to a push transport.
// NotificationID lets tickets be matched back to their record after the call.
type PushMessage struct {
	NotificationID string
	To             string
	Title          string
	Body           string
	Data           map[string]any
	Priority       Priority
	Type           NotificationType
}

// PushTicket is the transport's per-message delivery result.
type PushTicket struct {
	Outcome   TicketOutcome `json:"status"`
	ReceiptID string        `json:"id,omitempty"`
	Message   string        `json:"message,omitempty"`
}

func OKTicket(receiptID string) PushTicket {
	return PushTicket{Outcome: OutcomeOK, ReceiptID: receiptID}
}

func ErrorTicket(msg string) PushTicket {
	return PushTicket{Outcome: OutcomeError, Message: msg}
}

// NewDeliveryLog builds the audit entry for one transport attempt.
func NewDeliveryLog(logID string, m PushMessage, t PushTicket, at time.Time) DeliveryLog {
	return DeliveryLog{
		LogID:          logID,
		NotificationID: m.NotificationID,
		PushToken:      m.To,
		Title:          m.Title,
		Body:           m.Body,
		Data:           m.Data,
		Type:           m.Type,
		Priority:       m.Priority,
		Outcome:        t.Outcome,
		ReceiptID:      t.ReceiptID,
		ErrorMessage:   t.Message,
		SentAt:         at,
	}
}
