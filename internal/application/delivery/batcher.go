package delivery

import (
	"github.com/attendance-notifier/internal/domain"
)

// DefaultBatchSize matches the Expo per-request ceiling.
const DefaultBatchSize = 100

// Delivery pairs a record with the message built for it, so tickets can be
// matched back after the transport call.
type Delivery struct {
	Record  domain.ScheduledNotification
	Message domain.PushMessage
}

// Batcher turns due records into transport-sized chunks.
type Batcher struct {
	size  int
	valid func(token string) bool
}

// BatchSizeFor caps the configured chunk size at the transport's limit.
func BatchSizeFor(configured, limit int) int {
	if configured <= 0 {
		configured = DefaultBatchSize
	}
	if limit > 0 && configured > limit {
		return limit
	}
	return configured
}

func NewBatcher(size int, valid func(token string) bool) *Batcher {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Batcher{size: size, valid: valid}
}

// Build resolves each record's token through users. Records without a usable
// token are returned in rejected. The rest are grouped by token (tokens in order
// of first appearance, records in arrival order) and chunked.
func (b *Batcher) Build(records []domain.ScheduledNotification, users map[string]*domain.User) (chunks [][]Delivery, rejected []domain.ScheduledNotification) {
	var order []string
	byToken := make(map[string][]Delivery)
	for _, r := range records {
		token := users[r.UserID].DeliveryToken()
		if token == "" || (b.valid != nil && !b.valid(token)) {
			rejected = append(rejected, r)
			continue
		}
		if _, ok := byToken[token]; !ok {
			order = append(order, token)
		}
		byToken[token] = append(byToken[token], Delivery{Record: r, Message: messageFor(r, token)})
	}

	var flat []Delivery
	for _, token := range order {
		flat = append(flat, byToken[token]...)
	}
	for len(flat) > b.size {
		chunks = append(chunks, flat[:b.size:b.size])
		flat = flat[b.size:]
	}
	if len(flat) > 0 {
		chunks = append(chunks, flat)
	}
	return chunks, rejected
}

func messageFor(r domain.ScheduledNotification, token string) domain.PushMessage {
	return domain.PushMessage{
		NotificationID: r.NotificationID,
		To:             token,
		Title:          r.Title,
		Body:           r.Body,
		Data:           r.Data,
		Priority:       r.Priority,
		Type:           r.Type,
	}
}

func messages(chunk []Delivery) []domain.PushMessage {
	out := make([]domain.PushMessage, len(chunk))
	for i, d := range chunk {
		out[i] = d.Message
	}
	return out
}
