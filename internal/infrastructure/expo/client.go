package expo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/attendance-notifier/internal/domain"
)

// MaxBatchSize is the largest number of messages Expo accepts in one request.
const MaxBatchSize = 100

var tokenPattern = regexp.MustCompile(`^Expo(nent)?PushToken\[[^\]]+\]$`)

// Client is a thin wrapper over the Expo push send API.
type Client struct {
	endpoint    string
	accessToken string
	http        *http.Client
}

// New creates an Expo push client. accessToken is optional and only required
// when the Expo project enforces push security.
func New(endpoint, accessToken string, timeout time.Duration) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("expo push url is required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" {
		return nil, fmt.Errorf("expo push url must include scheme")
	}
	return &Client{
		endpoint:    parsed.String(),
		accessToken: accessToken,
		http:        &http.Client{Timeout: timeout},
	}, nil
}

// ValidToken reports whether token looks like an Expo push token.
func (c *Client) ValidToken(token string) bool {
	return tokenPattern.MatchString(token)
}

func (c *Client) BatchLimit() int {
	return MaxBatchSize
}

// Send posts one batch and returns one ticket per message in input order.
// A non-2xx status, a decode failure or a ticket count mismatch fails the whole batch.
func (c *Client) Send(ctx context.Context, msgs []domain.PushMessage) ([]domain.PushTicket, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	if len(msgs) > MaxBatchSize {
		return nil, fmt.Errorf("expo batch of %d exceeds limit %d", len(msgs), MaxBatchSize)
	}
	body, err := json.Marshal(toWire(msgs))
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.decorate(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("expo push http status %s: %s", resp.Status, bytes.TrimSpace(snippet))
	}

	var payload sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode expo response: %w", err)
	}
	if len(payload.Errors) > 0 && len(payload.Data) == 0 {
		return nil, fmt.Errorf("expo push rejected: %s", payload.Errors[0].Message)
	}
	if len(payload.Data) != len(msgs) {
		return nil, fmt.Errorf("expo returned %d tickets for %d messages", len(payload.Data), len(msgs))
	}

	tickets := make([]domain.PushTicket, len(payload.Data))
	for i, t := range payload.Data {
		if t.Status == "ok" {
			tickets[i] = domain.OKTicket(t.ID)
			continue
		}
		msg := t.Message
		if msg == "" {
			msg = "unknown error"
		}
		if t.Details.Error != "" {
			msg = t.Details.Error + ": " + msg
		}
		tickets[i] = domain.ErrorTicket(msg)
	}
	return tickets, nil
}

func (c *Client) decorate(req *http.Request) {
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
}

type message struct {
	To         string         `json:"to"`
	Title      string         `json:"title"`
	Body       string         `json:"body"`
	Data       map[string]any `json:"data,omitempty"`
	Sound      string         `json:"sound"`
	Badge      int            `json:"badge"`
	Priority   string         `json:"priority"`
	CategoryID string         `json:"categoryId,omitempty"`
}

func toWire(msgs []domain.PushMessage) []message {
	out := make([]message, len(msgs))
	for i, m := range msgs {
		priority := "normal"
		if m.Priority == domain.PriorityHigh {
			priority = "high"
		}
		var category string
		if m.Type == domain.TypeReminder {
			category = "attendance-reminder"
		}
		out[i] = message{
			To:         m.To,
			Title:      m.Title,
			Body:       m.Body,
			Data:       m.Data,
			Sound:      "default",
			Badge:      1,
			Priority:   priority,
			CategoryID: category,
		}
	}
	return out
}

type sendResponse struct {
	Data   []ticket   `json:"data"`
	Errors []apiError `json:"errors"`
}

type ticket struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	Message string `json:"message"`
	Details struct {
		Error string `json:"error"`
	} `json:"details"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
