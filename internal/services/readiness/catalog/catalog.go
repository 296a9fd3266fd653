// Package catalog loads the portfolio of projects shipwatch evaluates.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/louisbranch/shipwatch/internal/services/readiness/domain"
)

// Catalog is the parsed portfolio file.
type Catalog struct {
	Owner    string  `toml:"owner,omitempty"`
	Locale   string  `toml:"locale,omitempty"`
	Projects []Entry `toml:"project"`
}

// Entry is one [[project]] table.
type Entry struct {
	Name            string `toml:"name"`
	Repo            string `toml:"repo,omitempty"`
	DeployProjectID string `toml:"deploy_project_id,omitempty"`
	ProductionURL   string `toml:"production_url,omitempty"`
	Launched        bool   `toml:"launched,omitempty"`
	// Seed values for the project profile until the content analyzer writes one.
	FilesToDelete []string `toml:"files_to_delete,omitempty"`
	KnownBlockers []string `toml:"known_blockers,omitempty"`
}

// Project converts the entry into its domain identity. A bare repo name is
// owned by defaultOwner.
func (e Entry) Project(defaultOwner string) domain.Project {
	project := domain.Project{
		Name:            strings.TrimSpace(e.Name),
		DeployProjectID: strings.TrimSpace(e.DeployProjectID),
		ProductionURL:   strings.TrimSpace(e.ProductionURL),
		Launched:        e.Launched,
	}
	repo := strings.TrimSpace(e.Repo)
	if owner, name, ok := strings.Cut(repo, "/"); ok {
		project.RepoOwner, project.RepoName = strings.TrimSpace(owner), strings.TrimSpace(name)
	} else if repo != "" {
		project.RepoOwner, project.RepoName = strings.TrimSpace(defaultOwner), repo
	}
	return project
}

// HasProfileSeed reports whether the entry carries profile data.
func (e Entry) HasProfileSeed() bool {
	return len(e.FilesToDelete) > 0 || len(e.KnownBlockers) > 0
}

// Load reads and validates a catalog file.
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("reading catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog TOML.
func Parse(data []byte) (Catalog, error) {
	var c Catalog
	if err := toml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parsing catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate rejects duplicate names and projects without an identity.
func (c Catalog) Validate() error {
	seen := make(map[string]struct{}, len(c.Projects))
	for i, entry := range c.Projects {
		project := entry.Project(c.Owner)
		if err := project.Validate(); err != nil {
			return fmt.Errorf("project %d: %w", i+1, err)
		}
		if strings.Contains(entry.Repo, "/") && project.RepoFullName() == "" {
			return fmt.Errorf("project %q: repo must be owner/name", project.Name)
		}
		key := strings.ToLower(project.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("project %q is listed twice", project.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// DomainProjects returns every project sorted by name.
func (c Catalog) DomainProjects() []domain.Project {
	projects := make([]domain.Project, 0, len(c.Projects))
	for _, entry := range c.Projects {
		projects = append(projects, entry.Project(c.Owner))
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
	return projects
}

// Lookup finds an entry by project name, case-insensitively.
func (c Catalog) Lookup(name string) (Entry, bool) {
	name = strings.TrimSpace(name)
	for _, entry := range c.Projects {
		if strings.EqualFold(strings.TrimSpace(entry.Name), name) {
			return entry, true
		}
	}
	return Entry{}, false
}

// ByRepo finds the project whose repository is owner/name.
func (c Catalog) ByRepo(fullName string) (domain.Project, bool) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return domain.Project{}, false
	}
	for _, entry := range c.Projects {
		project := entry.Project(c.Owner)
		if strings.EqualFold(project.RepoFullName(), fullName) {
			return project, true
		}
	}
	return domain.Project{}, false
}
