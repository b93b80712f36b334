package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cms-backend/internal/inquiries"
)

const brevoTransactionalURL = "https://api.brevo.com/v3/smtp/email"

var ErrNoClient = errors.New("brevo client is nil")

// Recipient is an address in a transactional message.
type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Message is one transactional email. Tags show up in the Brevo logs and
// make notification traffic easy to filter.
type Message struct {
	To      []Recipient
	ReplyTo *Recipient
	Subject string
	HTML    string
	Tags    []string
}

func (m Message) validate() error {
	if len(m.To) == 0 {
		return errors.New("message has no recipients")
	}
	for _, to := range m.To {
		if strings.TrimSpace(to.Email) == "" {
			return errors.New("recipient without email")
		}
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("message has no subject")
	}
	if strings.TrimSpace(m.HTML) == "" {
		return errors.New("message has no html body")
	}
	return nil
}

// SendError carries a non-2xx answer from Brevo.
type SendError struct {
	Status int
	Body   string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("brevo send failed: status=%d body=%s", e.Status, e.Body)
}

type BrevoClient struct {
	apiKey     string
	sender     Recipient
	staff      Recipient
	sandbox    bool
	endpoint   string
	httpClient *http.Client
}

// NewBrevoClient returns nil when the api key, sender or staff recipient is
// missing, which turns notifications off.
func NewBrevoClient(apiKey, senderEmail, senderName, staffEmail string, sandbox bool) *BrevoClient {
	apiKey = strings.TrimSpace(apiKey)
	senderEmail = strings.TrimSpace(senderEmail)
	staffEmail = strings.TrimSpace(staffEmail)
	if apiKey == "" || senderEmail == "" || staffEmail == "" {
		return nil
	}
	if strings.TrimSpace(senderName) == "" {
		senderName = senderEmail
	}
	return &BrevoClient{
		apiKey:     apiKey,
		sender:     Recipient{Email: senderEmail, Name: senderName},
		staff:      Recipient{Email: staffEmail},
		sandbox:    sandbox,
		endpoint:   brevoTransactionalURL,
		httpClient: &http.Client{Timeout: 8 * time.Second},
	}
}

// SendInquiryNotification tells staff about a new contact inquiry. Replies go
// straight to the visitor.
func (c *BrevoClient) SendInquiryNotification(ctx context.Context, item inquiries.Inquiry) (string, error) {
	if c == nil {
		return "", ErrNoClient
	}
	body, err := buildInquiryNotificationHTML(item)
	if err != nil {
		return "", fmt.Errorf("render inquiry notification: %w", err)
	}
	tags := []string{"contact-inquiry"}
	if item.Priority != "" {
		tags = append(tags, "priority-"+item.Priority)
	}
	return c.Send(ctx, Message{
		To:      []Recipient{c.staff},
		ReplyTo: &Recipient{Email: item.Email, Name: item.Name},
		Subject: fmt.Sprintf("New contact inquiry from %s", item.Name),
		HTML:    body,
		Tags:    tags,
	})
}

// Send posts msg to the transactional endpoint and returns the Brevo
// message id.
func (c *BrevoClient) Send(ctx context.Context, msg Message) (string, error) {
	if c == nil {
		return "", ErrNoClient
	}
	if err := msg.validate(); err != nil {
		return "", err
	}

	payload := transactionalEmail{
		Sender:      c.sender,
		To:          msg.To,
		ReplyTo:     msg.ReplyTo,
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
		Tags:        msg.Tags,
	}
	if c.sandbox {
		payload.Headers = map[string]string{"X-Sib-Sandbox": "drop"}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("brevo encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("brevo request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("brevo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &SendError{Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var out struct {
		MessageID string `json:"messageId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("brevo decode: %w", err)
	}
	if out.MessageID == "" {
		return "", errors.New("brevo response missing messageId")
	}
	return out.MessageID, nil
}

type transactionalEmail struct {
	Sender      Recipient         `json:"sender"`
	To          []Recipient       `json:"to"`
	ReplyTo     *Recipient        `json:"replyTo,omitempty"`
	Subject     string            `json:"subject"`
	HTMLContent string            `json:"htmlContent"`
	Tags        []string          `json:"tags,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}
