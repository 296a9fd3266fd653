// Package gather collects the external signals for one project. Every fetch
// runs under its own timeout and falls back to an "unknown" value on failure,
// so a gather never fails as a whole. Failed fetches are named in the
// observation so callers can tell fallbacks from facts.
package gather

import (
	"context"
	"log"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/shipwatch/internal/services/readiness/domain"
	"golang.org/x/sync/errgroup"
)

const (
	defaultFetchTimeout = 10 * time.Second
	defaultCommitLimit  = 10
	defaultMaxKeyFiles  = 8
)

// SourceControl reads repository content.
type SourceControl interface {
	Repository(ctx context.Context, owner, name string) (domain.RepoInfo, error)
	RecentCommits(ctx context.Context, owner, name string, limit int) ([]domain.Commit, error)
	// FileContent returns found=false when the file does not exist.
	FileContent(ctx context.Context, owner, name, filePath string) (string, bool, error)
	Tree(ctx context.Context, owner, name, ref string) ([]string, error)
}

// DeployHost reads deployment state.
type DeployHost interface {
	ListProjects(ctx context.Context) ([]domain.DeployProject, error)
	LatestDeployment(ctx context.Context, projectID string) (domain.Deployment, error)
	DeploymentLog(ctx context.Context, deploymentID string) (string, error)
	ConfiguredSecrets(ctx context.Context, projectID string) ([]string, error)
}

// Screenshotter captures a page.
type Screenshotter interface {
	Capture(ctx context.Context, pageURL string) (domain.Screenshot, error)
}

// Config tunes gathering.
type Config struct {
	// FetchTimeout bounds each external call.
	FetchTimeout time.Duration
	CommitLimit  int
	MaxKeyFiles  int
}

// Gatherer collects observations. Any collaborator may be nil, in which
// case its facts stay unknown.
type Gatherer struct {
	source SourceControl
	deploy DeployHost
	shots  Screenshotter
	cfg    Config
}

// New builds a gatherer with defaults applied to cfg.
func New(source SourceControl, deploy DeployHost, shots Screenshotter, cfg Config) *Gatherer {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.CommitLimit <= 0 {
		cfg.CommitLimit = defaultCommitLimit
	}
	if cfg.MaxKeyFiles <= 0 {
		cfg.MaxKeyFiles = defaultMaxKeyFiles
	}
	return &Gatherer{source: source, deploy: deploy, shots: shots, cfg: cfg}
}

// gathering is one Gather call. It records which fetches fell back.
type gathering struct {
	*Gatherer
	project domain.Project

	mu     sync.Mutex
	failed []string
}

// Gather collects one project's observation. Fetches that fail are listed in
// Observation.Unavailable.
func (g *Gatherer) Gather(ctx context.Context, project domain.Project) domain.Observation {
	run := &gathering{Gatherer: g, project: project}
	obs := domain.Observation{Project: project}
	owner, repo := project.RepoOwner, project.RepoName
	hasRepo := g.source != nil && project.RepoFullName() != ""
	hasDeploy := g.deploy != nil && strings.TrimSpace(project.DeployProjectID) != ""

	var (
		info       *domain.RepoInfo
		commits    []domain.Commit
		tree       []string
		deployment *domain.Deployment
		configured []string
	)
	secretsKnown := false

	first := new(errgroup.Group)
	if hasRepo {
		first.Go(func() error {
			run.fetch(ctx, "repository", func(ctx context.Context) error {
				value, err := g.source.Repository(ctx, owner, repo)
				if err == nil {
					info = &value
				}
				return err
			})
			return nil
		})
		first.Go(func() error {
			run.fetch(ctx, "commits", func(ctx context.Context) error {
				value, err := g.source.RecentCommits(ctx, owner, repo, g.cfg.CommitLimit)
				commits = value
				return err
			})
			return nil
		})
		first.Go(func() error {
			run.fetch(ctx, "tree", func(ctx context.Context) error {
				value, err := g.source.Tree(ctx, owner, repo, "HEAD")
				if err == nil && value == nil {
					value = []string{}
				}
				tree = value
				return err
			})
			return nil
		})
	}
	if hasDeploy {
		first.Go(func() error {
			deployment = run.latestDeployment(ctx)
			return nil
		})
		first.Go(func() error {
			err := run.fetch(ctx, "configured secrets", func(ctx context.Context) error {
				value, err := g.deploy.ConfiguredSecrets(ctx, project.DeployProjectID)
				configured = value
				return err
			})
			secretsKnown = err == nil
			return nil
		})
	}
	_ = first.Wait()

	obs.Facts.Repo = info
	obs.Facts.Tree = tree
	obs.Facts.Deployment = deployment
	obs.Commits = commits
	obs.ConfiguredSecrets = configured
	obs.SecretsUnknown = !secretsKnown

	var (
		readme     *string
		readmePath string
		landing    *string
		landingAt  string
		keyFiles   map[string]string
		shot       *domain.Screenshot
	)
	second := new(errgroup.Group)
	if hasRepo {
		second.Go(func() error {
			readme, readmePath = run.readme(ctx, tree)
			return nil
		})
		if tree != nil {
			if candidate := LandingPath(tree); candidate != "" {
				landingAt = candidate
				second.Go(func() error {
					landing = run.file(ctx, candidate)
					if landing == nil {
						landingAt = ""
					}
					return nil
				})
			}
			second.Go(func() error {
				keyFiles = run.keyFiles(ctx, tree)
				return nil
			})
		}
	}
	if pageURL := screenshotURL(project, deployment); g.shots != nil && pageURL != "" {
		second.Go(func() error {
			run.fetch(ctx, "screenshot", func(ctx context.Context) error {
				value, err := g.shots.Capture(ctx, pageURL)
				if err == nil {
					shot = &value
				}
				return err
			})
			return nil
		})
	}
	_ = second.Wait()

	obs.Facts.Readme = readme
	obs.Facts.ReadmePath = readmePath
	obs.Facts.LandingPath = landingAt
	obs.Facts.Landing = landing
	obs.Facts.Screenshot = shot
	obs.KeyFiles = keyFiles
	obs.ReferencedSecrets = ReferencedSecrets(keyFiles)
	obs.Unavailable = run.unavailable()
	return obs
}

// fetch runs fn under the per-fetch timeout. A failure is logged and recorded;
// callers keep whatever fallback value they had.
func (r *gathering) fetch(ctx context.Context, what string, fn func(context.Context) error) error {
	err := r.Gatherer.fetch(ctx, r.project, what, fn)
	if err != nil {
		r.mu.Lock()
		r.failed = append(r.failed, what)
		r.mu.Unlock()
	}
	return err
}

func (r *gathering) unavailable() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.failed) == 0 {
		return nil
	}
	out := append([]string(nil), r.failed...)
	sort.Strings(out)
	return out
}

// fetch runs fn under the per-fetch timeout and logs failures.
func (g *Gatherer) fetch(ctx context.Context, project domain.Project, what string, fn func(context.Context) error) error {
	fetchCtx, cancel := context.WithTimeout(ctx, g.cfg.FetchTimeout)
	defer cancel()
	err := fn(fetchCtx)
	if err != nil {
		log.Printf("gather %s: %s: %v", project.Name, what, err)
	}
	return err
}

func (r *gathering) latestDeployment(ctx context.Context) *domain.Deployment {
	dep := domain.NoDeployment()
	r.fetch(ctx, "latest deployment", func(ctx context.Context) error {
		value, err := r.deploy.LatestDeployment(ctx, r.project.DeployProjectID)
		if err != nil {
			return err
		}
		dep = value
		return nil
	})
	if dep.Status == domain.DeployError && dep.ID != "" {
		r.fetch(ctx, "deployment log", func(ctx context.Context) error {
			logText, err := r.deploy.DeploymentLog(ctx, dep.ID)
			dep.ErrorLog = logText
			return err
		})
	}
	return &dep
}

func (r *gathering) readme(ctx context.Context, tree []string) (*string, string) {
	candidate := "README.md"
	if tree != nil {
		candidate = ReadmePath(tree)
		if candidate == "" {
			empty := ""
			return &empty, ""
		}
	}
	return r.file(ctx, candidate), candidate
}

// file returns the content, an empty string when absent, or nil on failure.
func (r *gathering) file(ctx context.Context, filePath string) *string {
	var content *string
	r.fetch(ctx, "file "+filePath, func(ctx context.Context) error {
		value, found, err := r.source.FileContent(ctx, r.project.RepoOwner, r.project.RepoName, filePath)
		if err != nil {
			return err
		}
		if !found {
			value = ""
		}
		content = &value
		return nil
	})
	return content
}

func (r *gathering) keyFiles(ctx context.Context, tree []string) map[string]string {
	candidates := KeyFilePaths(tree, r.cfg.MaxKeyFiles)
	if len(candidates) == 0 {
		return nil
	}
	contents := make([]*string, len(candidates))
	group := new(errgroup.Group)
	for i, candidate := range candidates {
		group.Go(func() error {
			contents[i] = r.file(ctx, candidate)
			return nil
		})
	}
	_ = group.Wait()

	files := make(map[string]string, len(candidates))
	for i, candidate := range candidates {
		if contents[i] != nil && *contents[i] != "" {
			files[candidate] = *contents[i]
		}
	}
	return files
}

func screenshotURL(project domain.Project, dep *domain.Deployment) string {
	if u := strings.TrimSpace(project.ProductionURL); u != "" {
		return u
	}
	if dep != nil && dep.Status == domain.DeployReady {
		return strings.TrimSpace(dep.URL)
	}
	return ""
}

// ResolveProjects merges the catalog with the deploy host listing. Catalog
// entries win; listed projects missing from the catalog are appended. A
// listing failure falls back to the catalog alone.
func (g *Gatherer) ResolveProjects(ctx context.Context, catalog []domain.Project) []domain.Project {
	projects := append([]domain.Project(nil), catalog...)
	if g.deploy == nil {
		return projects
	}

	var listed []domain.DeployProject
	g.fetch(ctx, domain.Project{Name: "portfolio"}, "list projects", func(ctx context.Context) error {
		value, err := g.deploy.ListProjects(ctx)
		listed = value
		return err
	})

	byName := make(map[string]int, len(projects))
	byRepo := make(map[string]int, len(projects))
	for i, p := range projects {
		byName[strings.ToLower(p.Name)] = i
		if full := strings.ToLower(p.RepoFullName()); full != "" {
			byRepo[full] = i
		}
	}
	for _, dp := range listed {
		full := strings.ToLower(domain.Project{RepoOwner: dp.RepoOwner, RepoName: dp.RepoName}.RepoFullName())
		idx, ok := byRepo[full]
		if !ok || full == "" {
			idx, ok = byName[strings.ToLower(dp.Name)]
		}
		if ok {
			if projects[idx].DeployProjectID == "" {
				projects[idx].DeployProjectID = dp.ID
			}
			continue
		}
		projects = append(projects, domain.Project{
			Name:            dp.Name,
			RepoOwner:       dp.RepoOwner,
			RepoName:        dp.RepoName,
			DeployProjectID: dp.ID,
		})
		byName[strings.ToLower(dp.Name)] = len(projects) - 1
	}
	sort.SliceStable(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
	return projects
}

// ReadmePath returns the root readme in tree, preferring README.md.
func ReadmePath(tree []string) string {
	var fallback string
	for _, p := range tree {
		if strings.Contains(p, "/") {
			continue
		}
		lower := strings.ToLower(p)
		if lower == "readme.md" {
			return p
		}
		if fallback == "" && strings.HasPrefix(lower, "readme") {
			fallback = p
		}
	}
	return fallback
}

// landingCandidates are entry files checked in order.
var landingCandidates = []string{
	"app/page.tsx",
	"app/page.jsx",
	"app/page.js",
	"src/app/page.tsx",
	"src/app/page.jsx",
	"pages/index.tsx",
	"pages/index.jsx",
	"pages/index.js",
	"src/pages/index.tsx",
	"src/pages/index.astro",
	"src/routes/+page.svelte",
	"index.html",
	"public/index.html",
	"src/App.tsx",
	"src/App.jsx",
}

// LandingPath returns the first landing entry file present in tree.
func LandingPath(tree []string) string {
	present := make(map[string]bool, len(tree))
	for _, p := range tree {
		present[p] = true
	}
	for _, candidate := range landingCandidates {
		if present[candidate] {
			return candidate
		}
	}
	return ""
}

var envExampleNames = map[string]bool{
	".env.example":       true,
	".env.sample":        true,
	".env.template":      true,
	".env.local.example": true,
}

var keySourceNames = map[string]bool{
	"config.ts": true, "config.js": true, "env.ts": true, "env.js": true,
	"env.mjs": true, "db.ts": true, "database.ts": true, "supabase.ts": true,
	"prisma.ts": true, "auth.ts": true, "stripe.ts": true, "openai.ts": true,
	"config.go": true, "main.go": true, "settings.py": true, "config.py": true,
}

// KeyFilePaths picks env templates first, then well-known config sources,
// up to limit paths.
func KeyFilePaths(tree []string, limit int) []string {
	var envFiles, sources []string
	for _, p := range tree {
		base := strings.ToLower(path.Base(p))
		switch {
		case envExampleNames[base]:
			envFiles = append(envFiles, p)
		case keySourceNames[base], strings.HasPrefix(base, "next.config."):
			if strings.Contains(p, "node_modules/") || strings.Contains(p, "vendor/") {
				continue
			}
			sources = append(sources, p)
		}
	}
	sort.Strings(envFiles)
	sort.Strings(sources)
	paths := append(envFiles, sources...)
	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}
	return paths
}
