package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/shipwatch/internal/services/readiness/domain"
	"github.com/louisbranch/shipwatch/internal/services/readiness/integrations/notify"
	"github.com/louisbranch/shipwatch/internal/services/readiness/storage"
	sqlitestore "github.com/louisbranch/shipwatch/internal/services/readiness/storage/sqlite"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeGatherer struct {
	mu    sync.Mutex
	obs   map[string]domain.Observation
	calls int
}

func (g *fakeGatherer) set(obs domain.Observation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.obs == nil {
		g.obs = map[string]domain.Observation{}
	}
	g.obs[obs.Project.Name] = obs
}

func (g *fakeGatherer) Gather(_ context.Context, project domain.Project) domain.Observation {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	obs, ok := g.obs[project.Name]
	if !ok {
		return domain.Observation{Project: project}
	}
	obs.Project = project
	return obs
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
	err      error
}

func (n *fakeNotifier) Notify(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.messages = append(n.messages, msg)
	return nil
}

func (n *fakeNotifier) sent() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Message(nil), n.messages...)
}

// brokenKV fails every operation, standing in for an unreachable store.
type brokenKV struct{}

func (brokenKV) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("store unreachable")
}

func (brokenKV) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("store unreachable")
}

func (brokenKV) Delete(context.Context, string) error {
	return errors.New("store unreachable")
}

type harness struct {
	service  *Service
	store    storage.Store
	gatherer *fakeGatherer
	notifier *fakeNotifier
	clock    *fakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	store, err := sqlitestore.OpenWithClock(filepath.Join(t.TempDir(), "shipwatch.db"), clock.Now)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})

	h := &harness{store: store, gatherer: &fakeGatherer{}, notifier: &fakeNotifier{}, clock: clock}
	ids := 0
	service, err := NewService(Deps{
		Gatherer: h.gatherer,
		Notifier: h.notifier,
		Store:    store,
		Clock:    clock.Now,
		NewID: func() string {
			ids++
			return fmt.Sprintf("msg-%d", ids)
		},
		Budget:        5 * time.Second,
		NotifyTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	h.service = service
	return h
}

func notesProject() domain.Project {
	return domain.Project{Name: "notes", RepoOwner: "me", RepoName: "notes", DeployProjectID: "prj_1"}
}

// failingDeploy is a production deploy broken by an unset DATABASE_URL.
func failingDeploy() domain.Observation {
	readme := "# Notes\nSign up today"
	return domain.Observation{
		Facts: domain.Facts{
			Repo:       &domain.RepoInfo{Description: "Notes app"},
			Readme:     &readme,
			ReadmePath: "README.md",
			Tree:       []string{"README.md", "src/db.ts"},
			Deployment: &domain.Deployment{ID: "dpl_1", Status: domain.DeployError, ErrorLog: "Error: DATABASE_URL is not defined"},
		},
		Commits:           []domain.Commit{{SHA: "c1"}},
		ReferencedSecrets: []string{"DATABASE_URL"},
	}
}

// healthyDeploy is the same project after the secret was configured.
func healthyDeploy() domain.Observation {
	readme := "# Notes\nSign up today\n![demo](docs/demo.gif)"
	return domain.Observation{
		Facts: domain.Facts{
			Repo:       &domain.RepoInfo{Description: "Notes app"},
			Readme:     &readme,
			ReadmePath: "README.md",
			Tree:       []string{"README.md", "docs/demo.gif", "src/db.ts"},
			Deployment: &domain.Deployment{ID: "dpl_2", Status: domain.DeployReady, URL: "https://notes.vercel.app"},
			Screenshot: &domain.Screenshot{PageURL: "https://notes.vercel.app", ImageURL: "https://shots/notes.png"},
		},
		Commits:           []domain.Commit{{SHA: "c2"}, {SHA: "c1"}},
		ReferencedSecrets: []string{"DATABASE_URL"},
		ConfiguredSecrets: []string{"DATABASE_URL"},
	}
}
