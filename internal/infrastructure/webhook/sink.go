package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"exportsweep/internal/config"
	"exportsweep/internal/ports"
)

// Sink forwards serialized run events to an external HTTP endpoint, so
// other systems can react to export progress and completion.
type Sink struct {
	endpoint   string
	authToken  string
	httpClient *http.Client
}

var _ ports.EventSink = (*Sink)(nil)

// NewSink builds a sink from configuration.
func NewSink(cfg config.WebhookConfig) *Sink {
	return &Sink{
		endpoint:  cfg.Endpoint,
		authToken: cfg.AuthToken,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// SendEvent posts the JSON payload to the configured endpoint.
func (s *Sink) SendEvent(ctx context.Context, payload []byte) error {
	if s == nil {
		return fmt.Errorf("webhook sink is nil")
	}
	if s.endpoint == "" {
		return fmt.Errorf("webhook sink misconfigured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook error %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	return nil
}
