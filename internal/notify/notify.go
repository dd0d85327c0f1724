// Package notify carries best-effort notifications out of the core flows.
// Delivery failures are logged and dropped; they never roll back or block
// an attendance mark or a billing run.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"siakad/internal/queue"
)

// Event is one notification to deliver.
type Event struct {
	Kind      string    `json:"kind"` // "attendance" or "billing"
	StudentID string    `json:"student_id,omitempty"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

// Publish enqueues an event, swallowing failures with a log line.
func Publish(ctx context.Context, q queue.Queue, evt Event) {
	body, err := json.Marshal(evt)
	if err != nil {
		log.Printf("notify encode failed: %v", err)
		return
	}
	if err := q.Publish(ctx, queue.Message{Type: "notify", Body: body}); err != nil {
		log.Printf("notify publish failed: %v", err)
	}
}

// Client posts notifications to an external webhook.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set, Send is a logged no-op for dev.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send delivers one event to the webhook.
func (c *Client) Send(ctx context.Context, evt Event) error {
	if c.Skip {
		log.Printf("notify (skipped): %s %s", evt.Kind, evt.Message)
		return nil
	}

	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
