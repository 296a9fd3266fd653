// Package vercel reads projects, production deployments, build events and
// configured environment variable names from the Vercel REST API.
package vercel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/louisbranch/shipwatch/internal/services/readiness/domain"
)

const (
	defaultBaseURL = "https://api.vercel.com"
	maxLogLines    = 200
)

// Config configures the Vercel REST endpoint and credentials.
type Config struct {
	BaseURL    string
	Token      string
	TeamID     string
	HTTPClient *http.Client
}

// Client is a read-only Vercel REST client.
type Client struct {
	cfg Config
}

// NewClient builds a client, defaulting the base URL and HTTP client.
func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Client{cfg: cfg}
}

// ListProjects returns the projects visible to the token.
func (c *Client) ListProjects(ctx context.Context) ([]domain.DeployProject, error) {
	query := url.Values{}
	query.Set("limit", "100")
	var payload struct {
		Projects []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			Link *struct {
				Type string `json:"type"`
				Org  string `json:"org"`
				Repo string `json:"repo"`
			} `json:"link"`
		} `json:"projects"`
	}
	if err := c.getJSON(ctx, "/v9/projects", query, &payload); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	projects := make([]domain.DeployProject, 0, len(payload.Projects))
	for _, item := range payload.Projects {
		project := domain.DeployProject{ID: item.ID, Name: item.Name}
		if item.Link != nil && item.Link.Type == "github" {
			project.RepoOwner = item.Link.Org
			project.RepoName = item.Link.Repo
		}
		projects = append(projects, project)
	}
	return projects, nil
}

// LatestDeployment returns the newest production deployment, or a
// deployment with status none when the project has never deployed.
func (c *Client) LatestDeployment(ctx context.Context, projectID string) (domain.Deployment, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return domain.Deployment{}, fmt.Errorf("project id is required")
	}
	query := url.Values{}
	query.Set("projectId", projectID)
	query.Set("target", "production")
	query.Set("limit", "1")
	var payload struct {
		Deployments []struct {
			UID        string `json:"uid"`
			URL        string `json:"url"`
			State      string `json:"state"`
			ReadyState string `json:"readyState"`
		} `json:"deployments"`
	}
	if err := c.getJSON(ctx, "/v6/deployments", query, &payload); err != nil {
		return domain.Deployment{}, fmt.Errorf("latest deployment: %w", err)
	}
	if len(payload.Deployments) == 0 {
		return domain.NoDeployment(), nil
	}
	item := payload.Deployments[0]
	state := item.State
	if state == "" {
		state = item.ReadyState
	}
	deployment := domain.Deployment{ID: item.UID, Status: MapState(state)}
	if u := strings.TrimSpace(item.URL); u != "" {
		if !strings.Contains(u, "://") {
			u = "https://" + u
		}
		deployment.URL = u
	}
	return deployment, nil
}

// MapState normalizes a Vercel deployment state.
func MapState(state string) domain.DeployStatus {
	switch strings.ToUpper(strings.TrimSpace(state)) {
	case "READY":
		return domain.DeployReady
	case "ERROR", "CANCELED":
		return domain.DeployError
	case "BUILDING", "INITIALIZING":
		return domain.DeployBuilding
	case "QUEUED":
		return domain.DeployQueued
	default:
		return domain.DeployNone
	}
}

// DeploymentLog returns the tail of the deployment build events as text.
func (c *Client) DeploymentLog(ctx context.Context, deploymentID string) (string, error) {
	deploymentID = strings.TrimSpace(deploymentID)
	if deploymentID == "" {
		return "", fmt.Errorf("deployment id is required")
	}
	query := url.Values{}
	query.Set("builds", "1")
	var events []struct {
		Type    string `json:"type"`
		Text    string `json:"text"`
		Payload struct {
			Text string `json:"text"`
		} `json:"payload"`
	}
	if err := c.getJSON(ctx, "/v3/deployments/"+url.PathEscape(deploymentID)+"/events", query, &events); err != nil {
		return "", fmt.Errorf("deployment events: %w", err)
	}
	var lines []string
	for _, event := range events {
		text := event.Text
		if text == "" {
			text = event.Payload.Text
		}
		for _, line := range strings.Split(text, "\n") {
			if line = strings.TrimRight(line, " \r\t"); line != "" {
				lines = append(lines, line)
			}
		}
	}
	if len(lines) > maxLogLines {
		lines = lines[len(lines)-maxLogLines:]
	}
	return strings.Join(lines, "\n"), nil
}

// ConfiguredSecrets returns the env variable names configured for production.
func (c *Client) ConfiguredSecrets(ctx context.Context, projectID string) ([]string, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, fmt.Errorf("project id is required")
	}
	var payload struct {
		Envs []struct {
			Key    string   `json:"key"`
			Target []string `json:"target"`
		} `json:"envs"`
	}
	if err := c.getJSON(ctx, "/v9/projects/"+url.PathEscape(projectID)+"/env", nil, &payload); err != nil {
		return nil, fmt.Errorf("project env: %w", err)
	}
	seen := map[string]bool{}
	var names []string
	for _, env := range payload.Envs {
		key := strings.TrimSpace(env.Key)
		if key == "" || seen[key] || !targetsProduction(env.Target) {
			continue
		}
		seen[key] = true
		names = append(names, key)
	}
	sort.Strings(names)
	return names, nil
}

func targetsProduction(targets []string) bool {
	if len(targets) == 0 {
		return true
	}
	for _, target := range targets {
		if target == "production" {
			return true
		}
	}
	return false
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if query == nil {
		query = url.Values{}
	}
	if teamID := strings.TrimSpace(c.cfg.TeamID); teamID != "" {
		query.Set("teamId", teamID)
	}
	endpoint := c.cfg.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token := strings.TrimSpace(c.cfg.Token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, err := io.ReadAll(io.LimitReader(res.Body, 4096))
		if err != nil {
			return fmt.Errorf("read error body: %w", err)
		}
		return fmt.Errorf("vercel request status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
