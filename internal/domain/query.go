package domain

import "time"

// NotificationFilter narrows a per-user listing. Cursor is opaque and comes from a previous page.
type NotificationFilter struct {
	Status NotificationStatus
	Type   NotificationType
	Limit  int32
	Cursor string
}

type LogFilter struct {
	Outcome TicketOutcome
	Type    NotificationType
	Since   *time.Time
	Until   *time.Time
	Limit   int32
	Cursor  string
}

type TypeStats struct {
	Type        NotificationType `json:"type"`
	Total       int              `json:"total"`
	Successful  int              `json:"successful"`
	Failed      int              `json:"failed"`
	SuccessRate float64          `json:"success_rate"`
}

type DeliveryStats struct {
	Total       int         `json:"total"`
	Successful  int         `json:"successful"`
	Failed      int         `json:"failed"`
	SuccessRate int         `json:"success_rate"`
	ByType      []TypeStats `json:"by_type"`
}
