package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"siakad/internal/queue"
)

func TestClientSend(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, false)
	err := c.Send(context.Background(), Event{Kind: "attendance", StudentID: "s1", Message: "Budi checked in", At: time.Now()})
	assert.NoError(t, err)
	assert.Equal(t, "s1", got.StudentID)
}

func TestClientSendFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, false)
	err := c.Send(context.Background(), Event{Kind: "billing", Message: "SPP Maret 2025"})
	assert.Error(t, err)
}

func TestClientSkip(t *testing.T) {
	c := New("http://unreachable.invalid", true)
	assert.NoError(t, c.Send(context.Background(), Event{Kind: "attendance"}))
}

func TestPublishRoundTrip(t *testing.T) {
	q := queue.NewInMemory(4)
	evt := Event{Kind: "attendance", StudentID: "s1", Message: "checked in", At: time.Now().UTC()}

	Publish(context.Background(), q, evt)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := q.Consume(ctx)
	assert.NoError(t, err)

	msg := <-msgs
	assert.Equal(t, "notify", msg.Type)
	var decoded Event
	assert.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, evt.StudentID, decoded.StudentID)
}
