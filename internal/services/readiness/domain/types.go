package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Project identifies one independently deployed project in the portfolio.
type Project struct {
	Name            string `json:"name"`
	RepoOwner       string `json:"repo_owner,omitempty"`
	RepoName        string `json:"repo_name,omitempty"`
	DeployProjectID string `json:"deploy_project_id,omitempty"`
	ProductionURL   string `json:"production_url,omitempty"`
	// Launched records owner confirmation that the project is live.
	Launched bool `json:"launched,omitempty"`
}

// RepoFullName returns owner/name for the project repository.
func (p Project) RepoFullName() string {
	owner := strings.TrimSpace(p.RepoOwner)
	name := strings.TrimSpace(p.RepoName)
	if owner == "" || name == "" {
		return ""
	}
	return owner + "/" + name
}

// Validate reports whether the project carries enough identity to evaluate.
func (p Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("project name is required")
	}
	if p.RepoFullName() == "" && strings.TrimSpace(p.DeployProjectID) == "" {
		return fmt.Errorf("project %q needs a repository or a deploy project id", p.Name)
	}
	return nil
}

// Commit is one recent source-control commit.
type Commit struct {
	SHA         string    `json:"sha"`
	Message     string    `json:"message"`
	Author      string    `json:"author"`
	CommittedAt time.Time `json:"committed_at"`
}

// RepoInfo is the repository metadata used by readiness checks.
type RepoInfo struct {
	Description   string
	DefaultBranch string
	Homepage      string
}

// DeployProject is one project listed by the deployment host.
type DeployProject struct {
	ID        string
	Name      string
	RepoOwner string
	RepoName  string
}

// DeployStatus is the normalized state of the latest production deployment.
type DeployStatus string

const (
	DeployReady    DeployStatus = "ready"
	DeployError    DeployStatus = "error"
	DeployBuilding DeployStatus = "building"
	DeployQueued   DeployStatus = "queued"
	DeployNone     DeployStatus = "none"
)

// ErrorCategory classifies a failed deployment log.
type ErrorCategory string

const (
	ErrorCategoryAuth    ErrorCategory = "auth"
	ErrorCategoryConfig  ErrorCategory = "config"
	ErrorCategoryRuntime ErrorCategory = "runtime"
	ErrorCategoryBuild   ErrorCategory = "build"
	ErrorCategoryUnknown ErrorCategory = "unknown"
)

// Deployment is the latest production deployment as seen by the deploy host.
type Deployment struct {
	ID            string        `json:"id"`
	Status        DeployStatus  `json:"status"`
	URL           string        `json:"url"`
	ErrorLog      string        `json:"error_log,omitempty"`
	ErrorCategory ErrorCategory `json:"error_category,omitempty"`
}

// NoDeployment is the fallback used when the deploy host cannot be read.
func NoDeployment() Deployment {
	return Deployment{Status: DeployNone}
}

// Screenshot is the screenshot service result for a deployment URL.
type Screenshot struct {
	PageURL    string    `json:"page_url"`
	ImageURL   string    `json:"image_url,omitempty"`
	CapturedAt time.Time `json:"captured_at,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Severity ranks how much a shortcoming matters.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// Shortcoming is the single most important unmet check in one category.
type Shortcoming struct {
	Issue    string     `json:"issue"`
	Severity Severity   `json:"severity"`
	Evidence []Evidence `json:"evidence,omitempty"`
	Impact   string     `json:"impact"`
}

// Validate enforces that critical shortcomings carry evidence.
func (s Shortcoming) Validate() error {
	if strings.TrimSpace(s.Issue) == "" {
		return errors.New("shortcoming issue is required")
	}
	switch s.Severity {
	case SeverityMinor, SeverityMajor:
	case SeverityCritical:
		if len(s.Evidence) == 0 {
			return fmt.Errorf("critical shortcoming %q has no evidence", s.Issue)
		}
	default:
		return fmt.Errorf("unknown severity %q", s.Severity)
	}
	return nil
}

// ProjectSnapshot is one evaluation's immutable picture of a project.
//
// Snapshots are built fresh for every evaluation and never persisted whole;
// only the notification key and a thin summary survive. A snapshot with
// Unavailable sources rests on fallback facts and must not drive a
// notification.
type ProjectSnapshot struct {
	Project            Project           `json:"project"`
	Description        string            `json:"description,omitempty"`
	Commits            []Commit          `json:"commits,omitempty"`
	KeyFiles           map[string]string `json:"-"`
	ReferencedSecrets  []string          `json:"referenced_secrets,omitempty"`
	ConfiguredSecrets  []string          `json:"configured_secrets,omitempty"`
	SecretsUnknown     bool              `json:"secrets_unknown,omitempty"`
	Deployment         Deployment        `json:"deployment"`
	Checks             CheckSet          `json:"checks"`
	Stage              GTMStage          `json:"stage"`
	Screenshot         *Screenshot       `json:"screenshot,omitempty"`
	OperationalBlocker *Shortcoming      `json:"operational_blocker,omitempty"`
	GTMBlocker         *Shortcoming      `json:"gtm_blocker,omitempty"`
	NotificationKey    string            `json:"notification_key"`
	Unavailable        []string          `json:"unavailable,omitempty"`
	SnapshotAt         time.Time         `json:"snapshot_at"`
}

// LatestCommitSHA returns the newest commit sha, or empty when unknown.
func (s ProjectSnapshot) LatestCommitSHA() string {
	if len(s.Commits) == 0 {
		return ""
	}
	return s.Commits[0].SHA
}

// MissingSecrets returns referenced secret names that are not configured.
// Nothing is missing while the configured set is unknown.
func (s ProjectSnapshot) MissingSecrets() []string {
	if s.SecretsUnknown {
		return nil
	}
	return missingSecrets(s.ReferencedSecrets, s.ConfiguredSecrets)
}

// MissingCriticalSecrets returns the missing secrets that block a deploy.
func (s ProjectSnapshot) MissingCriticalSecrets() []string {
	return criticalOnly(s.MissingSecrets())
}
