package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookSenderPostsChatMessage(t *testing.T) {
	var got struct {
		ChatID int64  `json:"chat_id"`
		Text   string `json:"text"`
	}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, "secret")
	if err := s.Send(context.Background(), 580866264, "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.ChatID != 580866264 || got.Text != "hello" {
		t.Fatalf("unexpected body %+v", got)
	}
	if auth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", auth)
	}
}

func TestWebhookSenderFailsOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := NewWebhookSender(srv.URL, "").Send(context.Background(), 1, "x"); err == nil {
		t.Fatal("expected error on 502")
	}
	if err := NewWebhookSender("", "").Send(context.Background(), 1, "x"); err == nil {
		t.Fatal("expected error without url")
	}
}

func TestTelegramSenderRequiresToken(t *testing.T) {
	if _, err := NewTelegramSender("  "); err == nil {
		t.Fatal("expected error for empty token")
	}
}
