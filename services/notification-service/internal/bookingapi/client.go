// Package bookingapi reads appointment context from the booking service over HTTP.
package bookingapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var ErrNotFound = errors.New("not found")

type Appointment struct {
	ID            int64     `json:"id"`
	ClientID      int64     `json:"client_id"`
	ServiceID     int64     `json:"service_id"`
	CarModel      string    `json:"car_model"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Status        string    `json:"status"`
}

type Client struct {
	ID         int64  `json:"id"`
	TelegramID *int64 `json:"telegram_id"`
	Name       string `json:"name"`
	Timezone   string `json:"timezone"`
}

type Service struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type HTTPClient struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *HTTPClient) GetAppointment(ctx context.Context, id int64) (Appointment, error) {
	var out Appointment
	err := c.get(ctx, "/appointments/"+strconv.FormatInt(id, 10), &out)
	return out, err
}

func (c *HTTPClient) GetClient(ctx context.Context, id int64) (Client, error) {
	var out Client
	err := c.get(ctx, "/clients/"+strconv.FormatInt(id, 10), &out)
	return out, err
}

func (c *HTTPClient) GetService(ctx context.Context, id int64) (Service, error) {
	var out Service
	err := c.get(ctx, "/services/"+strconv.FormatInt(id, 10), &out)
	return out, err
}

// Ping checks that the booking service answers its liveness probe.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("booking api healthz returned %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	if c.baseURL == "" {
		return errors.New("booking api url not configured")
	}
	u, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("GET %s: %w", path, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
		if body.Error != "" {
			return fmt.Errorf("GET %s: %d %s", path, resp.StatusCode, body.Error)
		}
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
