// Package mail delivers newsletters through the SendGrid v3 API.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsletterAgent/internal/config"
	"NewsletterAgent/internal/domain"
	"NewsletterAgent/internal/ports"
)

// SendGrid posts one message per run with a personalization per recipient,
// so recipients never see each other.
type SendGrid struct {
	endpoint  string
	apiKey    string
	fromEmail string
	fromName  string
	client    *http.Client
	now       func() time.Time
}

var _ ports.Mailer = (*SendGrid)(nil)

// NewSendGrid builds a mailer from the sendgrid and newsletter sections.
func NewSendGrid(cfg config.SendGridConfig, newsletter config.NewsletterConfig, client *http.Client) *SendGrid {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SendGrid{
		endpoint:  cfg.Endpoint,
		apiKey:    cfg.APIKey,
		fromEmail: newsletter.SenderEmail,
		fromName:  newsletter.SenderName,
		client:    client,
		now:       time.Now,
	}
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type personalization struct {
	To []address `json:"to"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type message struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

// Send delivers html to every recipient. Failures wrap domain.ErrSend,
// cancellation is returned as is.
func (s *SendGrid) Send(ctx context.Context, subject, html string, recipients []string) (domain.DeliveryReceipt, error) {
	var receipt domain.DeliveryReceipt

	if s.apiKey == "" || s.endpoint == "" || s.fromEmail == "" {
		return receipt, fmt.Errorf("sendgrid misconfigured: missing api key, endpoint or sender: %w", domain.ErrSend)
	}

	msg := message{
		From:    address{Email: s.fromEmail, Name: s.fromName},
		Subject: subject,
		Content: []content{{Type: "text/html", Value: html}},
	}
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			msg.Personalizations = append(msg.Personalizations, personalization{To: []address{{Email: r}}})
		}
	}
	if len(msg.Personalizations) == 0 {
		return receipt, fmt.Errorf("no valid recipients: %w", domain.ErrSend)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return receipt, fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return receipt, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return receipt, ctxErr
		}
		return receipt, fmt.Errorf("%w: post message: %w", domain.ErrSend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return receipt, fmt.Errorf("%w: sendgrid %s: %s", domain.ErrSend, resp.Status, strings.TrimSpace(string(payload)))
	}

	receipt.MessageID = resp.Header.Get("X-Message-Id")
	receipt.Recipients = len(msg.Personalizations)
	receipt.AcceptedAt = s.now().UTC()
	return receipt, nil
}
