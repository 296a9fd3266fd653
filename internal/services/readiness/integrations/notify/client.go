// Package notify delivers structured readiness notifications to the owner's
// outbound channel as JSON.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/louisbranch/shipwatch/internal/services/readiness/domain"
)

// Verification summarizes a resolved or pending recommendation.
type Verification struct {
	Status string `json:"status"`
	Action string `json:"action,omitempty"`
}

// Message is the structured content handed to the outbound channel. Copy
// beyond the rendered labels is produced downstream.
type Message struct {
	ID                 string                 `json:"id"`
	Project            string                 `json:"project"`
	Headline           string                 `json:"headline"`
	StageLabel         string                 `json:"stage_label"`
	Stage              domain.GTMStage        `json:"stage"`
	PreviousStage      domain.GTMStage        `json:"previous_stage,omitempty"`
	DeployStatus       domain.DeployStatus    `json:"deploy_status"`
	DeploymentURL      string                 `json:"deployment_url,omitempty"`
	ScreenshotURL      string                 `json:"screenshot_url,omitempty"`
	OperationalBlocker *domain.Shortcoming    `json:"operational_blocker,omitempty"`
	GTMBlocker         *domain.Shortcoming    `json:"gtm_blocker,omitempty"`
	FailedChecks       []domain.CheckName     `json:"failed_checks,omitempty"`
	Recommendation     *domain.Recommendation `json:"recommendation,omitempty"`
	Verification       *Verification          `json:"verification,omitempty"`
	NotificationKey    string                 `json:"notification_key"`
	EvaluatedAt        time.Time              `json:"evaluated_at"`
}

// Config configures the outbound webhook.
type Config struct {
	WebhookURL string
	Token      string
	HTTPClient *http.Client
}

// Client posts messages to the configured webhook.
type Client struct {
	cfg Config
}

// NewClient builds a notifier client.
func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Client{cfg: cfg}
}

// Notify delivers one message. Any non-2xx response is a delivery failure.
func (c *Client) Notify(ctx context.Context, msg Message) error {
	webhookURL := strings.TrimSpace(c.cfg.WebhookURL)
	if webhookURL == "" {
		return fmt.Errorf("notify webhook url is required")
	}
	if strings.TrimSpace(msg.Project) == "" {
		return fmt.Errorf("message project is required")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if msg.ID != "" {
		req.Header.Set("Idempotency-Key", msg.ID)
	}
	if token := strings.TrimSpace(c.cfg.Token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		payload, err := io.ReadAll(io.LimitReader(res.Body, 4096))
		if err != nil {
			return fmt.Errorf("read notify error body: %w", err)
		}
		return fmt.Errorf("notify request status %d: %s", res.StatusCode, strings.TrimSpace(string(payload)))
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
	return nil
}
