// Package github reads repository metadata, commits, files and trees through
// the go-github REST client.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v72/github"

	"github.com/louisbranch/shipwatch/internal/services/readiness/domain"
)

const (
	maxFileBytes   = 1 << 20
	maxTreeEntries = 5000
)

// Config configures the GitHub REST endpoint and credentials. BaseURL
// points at a GitHub Enterprise or test API root; empty means api.github.com.
type Config struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// Client is a read-only view over the GitHub REST API.
type Client struct {
	api *gh.Client
}

// NewClient builds a client. An unparsable BaseURL is a configuration error.
func NewClient(cfg Config) (*Client, error) {
	api := gh.NewClient(cfg.HTTPClient)
	if token := strings.TrimSpace(cfg.Token); token != "" {
		api = api.WithAuthToken(token)
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		parsed, err := url.Parse(strings.TrimRight(base, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("github base url %q must be absolute", base)
		}
		api.BaseURL = parsed
	}
	return &Client{api: api}, nil
}

// Repository returns repository metadata.
func (c *Client) Repository(ctx context.Context, owner, name string) (domain.RepoInfo, error) {
	owner, name, err := repoIdentity(owner, name)
	if err != nil {
		return domain.RepoInfo{}, err
	}
	repo, _, err := c.api.Repositories.Get(ctx, owner, name)
	if err != nil {
		return domain.RepoInfo{}, fmt.Errorf("repository %s/%s: %w", owner, name, err)
	}
	return domain.RepoInfo{
		Description:   strings.TrimSpace(repo.GetDescription()),
		DefaultBranch: repo.GetDefaultBranch(),
		Homepage:      strings.TrimSpace(repo.GetHomepage()),
	}, nil
}

// RecentCommits returns up to limit commits, newest first.
func (c *Client) RecentCommits(ctx context.Context, owner, name string, limit int) ([]domain.Commit, error) {
	owner, name, err := repoIdentity(owner, name)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	items, _, err := c.api.Repositories.ListCommits(ctx, owner, name, &gh.CommitsListOptions{
		ListOptions: gh.ListOptions{PerPage: limit},
	})
	if err != nil {
		return nil, fmt.Errorf("commits %s/%s: %w", owner, name, err)
	}
	commits := make([]domain.Commit, 0, min(len(items), limit))
	for _, item := range items {
		author := item.GetCommit().GetAuthor()
		commits = append(commits, domain.Commit{
			SHA:         item.GetSHA(),
			Message:     strings.TrimSpace(item.GetCommit().GetMessage()),
			Author:      author.GetName(),
			CommittedAt: author.GetDate().Time.UTC(),
		})
		if len(commits) == limit {
			break
		}
	}
	return commits, nil
}

// FileContent returns the decoded content of a file, capped at 1 MiB.
// found is false on 404 or when filePath names a directory.
func (c *Client) FileContent(ctx context.Context, owner, name, filePath string) (string, bool, error) {
	owner, name, err := repoIdentity(owner, name)
	if err != nil {
		return "", false, err
	}
	filePath = strings.Trim(strings.TrimSpace(filePath), "/")
	if filePath == "" {
		return "", false, fmt.Errorf("file path is required")
	}

	file, _, resp, err := c.api.Repositories.GetContents(ctx, owner, name, filePath, nil)
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("file %s: %w", filePath, err)
	}
	if file == nil {
		return "", false, nil
	}
	content, err := file.GetContent()
	if err != nil {
		return "", false, fmt.Errorf("decode file %s: %w", filePath, err)
	}
	if len(content) > maxFileBytes {
		content = content[:maxFileBytes]
	}
	return content, true, nil
}

// Tree lists blob paths at ref, recursively.
func (c *Client) Tree(ctx context.Context, owner, name, ref string) ([]string, error) {
	owner, name, err := repoIdentity(owner, name)
	if err != nil {
		return nil, err
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		ref = "HEAD"
	}
	tree, _, err := c.api.Git.GetTree(ctx, owner, name, ref, true)
	if err != nil {
		return nil, fmt.Errorf("tree %s/%s: %w", owner, name, err)
	}
	paths := make([]string, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		paths = append(paths, entry.GetPath())
		if len(paths) == maxTreeEntries {
			break
		}
	}
	return paths, nil
}

func repoIdentity(owner, name string) (string, string, error) {
	owner = strings.TrimSpace(owner)
	name = strings.TrimSpace(name)
	if owner == "" || name == "" {
		return "", "", fmt.Errorf("repository owner and name are required")
	}
	return owner, name, nil
}
