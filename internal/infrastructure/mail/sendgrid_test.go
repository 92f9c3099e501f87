package mail

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"NewsletterAgent/internal/config"
	"NewsletterAgent/internal/domain"
)

func newMailer(url string, client *http.Client) *SendGrid {
	return NewSendGrid(
		config.SendGridConfig{Endpoint: url, APIKey: "sg-key"},
		config.NewsletterConfig{SenderEmail: "digest@example.com", SenderName: "Agent Weekly"},
		client,
	)
}

func TestSendGridSend(t *testing.T) {
	t.Parallel()

	var got message
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sg-key" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("X-Message-Id", "abc123")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	receipt, err := newMailer(server.URL, server.Client()).Send(context.Background(), "Weekly", "<p>hi</p>", []string{"a@example.com", " ", "b@example.com"})
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}

	if receipt.MessageID != "abc123" || receipt.Recipients != 2 || receipt.AcceptedAt.IsZero() {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if len(got.Personalizations) != 2 || got.Personalizations[1].To[0].Email != "b@example.com" {
		t.Fatalf("unexpected personalizations %+v", got.Personalizations)
	}
	if got.From.Email != "digest@example.com" || got.Subject != "Weekly" {
		t.Fatalf("unexpected message %+v", got)
	}
	if len(got.Content) != 1 || got.Content[0].Type != "text/html" || got.Content[0].Value != "<p>hi</p>" {
		t.Fatalf("unexpected content %+v", got.Content)
	}
}

func TestSendGridRejection(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"errors":[{"message":"bad sender"}]}`, http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newMailer(server.URL, server.Client()).Send(context.Background(), "s", "h", []string{"a@example.com"})
	if !errors.Is(err, domain.ErrSend) {
		t.Fatalf("expected send error, got %v", err)
	}
}

func TestSendGridMisconfigured(t *testing.T) {
	t.Parallel()

	_, err := NewSendGrid(config.SendGridConfig{}, config.NewsletterConfig{}, nil).Send(context.Background(), "s", "h", []string{"a@example.com"})
	if !errors.Is(err, domain.ErrSend) {
		t.Fatalf("expected send error, got %v", err)
	}

	_, err = newMailer("http://127.0.0.1:1", nil).Send(context.Background(), "s", "h", nil)
	if !errors.Is(err, domain.ErrSend) {
		t.Fatalf("expected send error for empty recipients, got %v", err)
	}
}

func TestSendGridCancelled(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newMailer(server.URL, server.Client()).Send(ctx, "s", "h", []string{"a@example.com"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if errors.Is(err, domain.ErrSend) {
		t.Fatalf("cancellation must not be reported as send error")
	}
}
