// Package screenshot captures a page through an external screenshot service.
package screenshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/louisbranch/shipwatch/internal/services/readiness/domain"
)

// Config configures the screenshot service endpoint.
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Clock      func() time.Time
}

// Client calls GET {BaseURL}?url={page}.
type Client struct {
	cfg Config
}

// NewClient builds a screenshot client.
func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	return &Client{cfg: cfg}
}

// Capture screenshots pageURL. A service-reported capture failure is a
// result, not an error: the returned screenshot carries the error text.
func (c *Client) Capture(ctx context.Context, pageURL string) (domain.Screenshot, error) {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return domain.Screenshot{}, fmt.Errorf("page url is required")
	}
	if c.cfg.BaseURL == "" {
		return domain.Screenshot{}, fmt.Errorf("screenshot service url is required")
	}
	endpoint, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return domain.Screenshot{}, fmt.Errorf("parse screenshot service url: %w", err)
	}
	query := endpoint.Query()
	query.Set("url", pageURL)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return domain.Screenshot{}, fmt.Errorf("build screenshot request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if key := strings.TrimSpace(c.cfg.APIKey); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return domain.Screenshot{}, fmt.Errorf("screenshot request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, err := io.ReadAll(io.LimitReader(res.Body, 4096))
		if err != nil {
			return domain.Screenshot{}, fmt.Errorf("read screenshot error body: %w", err)
		}
		return domain.Screenshot{}, fmt.Errorf("screenshot request status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		ImageURL   string    `json:"imageUrl"`
		CapturedAt time.Time `json:"capturedAt"`
		Error      string    `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return domain.Screenshot{}, fmt.Errorf("decode screenshot response: %w", err)
	}

	shot := domain.Screenshot{PageURL: pageURL}
	if errText := strings.TrimSpace(payload.Error); errText != "" {
		shot.Error = errText
		return shot, nil
	}
	shot.ImageURL = strings.TrimSpace(payload.ImageURL)
	if shot.ImageURL == "" {
		shot.Error = "screenshot service returned no image"
		return shot, nil
	}
	shot.CapturedAt = payload.CapturedAt.UTC()
	if payload.CapturedAt.IsZero() {
		shot.CapturedAt = c.cfg.Clock().UTC()
	}
	return shot, nil
}
