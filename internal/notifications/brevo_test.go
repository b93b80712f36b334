package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cms-backend/internal/inquiries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBrevoClientDisabledWithoutConfig(t *testing.T) {
	assert.Nil(t, NewBrevoClient("", "noreply@example.com", "", "staff@example.com", false))
	assert.Nil(t, NewBrevoClient("key", "", "", "staff@example.com", false))
	assert.Nil(t, NewBrevoClient("key", "noreply@example.com", "", " ", false))
	assert.NotNil(t, NewBrevoClient("key", "noreply@example.com", "", "staff@example.com", false))
}

func TestSendInquiryNotification(t *testing.T) {
	var got transactionalEmail
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"<abc@brevo>"}`))
	}))
	defer srv.Close()

	c := NewBrevoClient("secret", "noreply@example.com", "Site", "staff@example.com", true)
	c.endpoint = srv.URL

	item := inquiries.Inquiry{
		ID:        "inq-1",
		Name:      "Ada <script>",
		Email:     "ada@example.com",
		Message:   "Need a quote",
		Priority:  inquiries.PriorityMedium,
		CreatedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	id, err := c.SendInquiryNotification(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, "<abc@brevo>", id)

	assert.Equal(t, "secret", apiKey)
	require.Len(t, got.To, 1)
	assert.Equal(t, "staff@example.com", got.To[0].Email)
	require.NotNil(t, got.ReplyTo)
	assert.Equal(t, "ada@example.com", got.ReplyTo.Email)
	assert.Equal(t, "drop", got.Headers["X-Sib-Sandbox"])
	assert.Contains(t, got.HTMLContent, "Need a quote")
	assert.Contains(t, got.HTMLContent, "Ada &lt;script&gt;")
	assert.NotContains(t, got.HTMLContent, "Company:")
	assert.Equal(t, []string{"contact-inquiry", "priority-medium"}, got.Tags)
	assert.Equal(t, "Site", got.Sender.Name)
}

func TestSendInquiryNotificationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewBrevoClient("bad", "noreply@example.com", "", "staff@example.com", false)
	c.endpoint = srv.URL

	_, err := c.SendInquiryNotification(context.Background(), inquiries.Inquiry{ID: "inq-2", Name: "Bo", Email: "bo@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=401")
	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, http.StatusUnauthorized, sendErr.Status)

	var nilClient *BrevoClient
	_, err = nilClient.SendInquiryNotification(context.Background(), inquiries.Inquiry{})
	assert.ErrorIs(t, err, ErrNoClient)
}

func TestSendRejectsIncompleteMessages(t *testing.T) {
	c := NewBrevoClient("key", "noreply@example.com", "", "staff@example.com", false)

	_, err := c.Send(context.Background(), Message{Subject: "s", HTML: "<p>x</p>"})
	assert.Error(t, err)
	_, err = c.Send(context.Background(), Message{To: []Recipient{{Email: " "}}, Subject: "s", HTML: "<p>x</p>"})
	assert.Error(t, err)
	_, err = c.Send(context.Background(), Message{To: []Recipient{{Email: "a@b.com"}}, HTML: "<p>x</p>"})
	assert.Error(t, err)
}
