package bookingapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /appointments/7", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":7,"client_id":3,"service_id":2,"scheduled_time":"2024-06-01T09:00:00Z","status":"confirmed"}`))
	})
	mux.HandleFunc("GET /clients/3", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":3,"telegram_id":1001,"name":"Ivan","timezone":"Asia/Yekaterinburg"}`))
	})
	mux.HandleFunc("GET /services/2", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"database unavailable"}`))
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGetAppointmentAndClient(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL+"/", time.Second)
	ctx := context.Background()

	appt, err := c.GetAppointment(ctx, 7)
	if err != nil {
		t.Fatalf("GetAppointment: %v", err)
	}
	want := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	if appt.ClientID != 3 || appt.ServiceID != 2 || !appt.ScheduledTime.Equal(want) || appt.Status != "confirmed" {
		t.Fatalf("unexpected appointment %+v", appt)
	}

	client, err := c.GetClient(ctx, 3)
	if err != nil {
		t.Fatalf("GetClient: %v", err)
	}
	if client.TelegramID == nil || *client.TelegramID != 1001 || client.Timezone != "Asia/Yekaterinburg" {
		t.Fatalf("unexpected client %+v", client)
	}

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestGetMapsStatusCodes(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, time.Second)
	ctx := context.Background()

	if _, err := c.GetClient(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, err := c.GetService(ctx, 2)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected non-NotFound error, got %v", err)
	}
}

func TestGetWithoutBaseURL(t *testing.T) {
	if _, err := New("", 0).GetAppointment(context.Background(), 1); err == nil {
		t.Fatal("expected error without base url")
	}
}
