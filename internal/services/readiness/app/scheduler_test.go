package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/shipwatch/internal/services/readiness/domain"
)

type fakeDecider struct {
	mu        sync.Mutex
	active    int
	maxActive int
	seen      []string
	fail      map[string]error
	skip      map[string]SkipReason
}

func (d *fakeDecider) DecideAndNotify(_ context.Context, project domain.Project) (Decision, error) {
	d.mu.Lock()
	d.active++
	if d.active > d.maxActive {
		d.maxActive = d.active
	}
	d.seen = append(d.seen, project.Name)
	d.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.active--
	if err := d.fail[project.Name]; err != nil {
		return Decision{Project: project.Name}, err
	}
	if reason, ok := d.skip[project.Name]; ok {
		return Decision{Project: project.Name, Reason: reason}, nil
	}
	return Decision{Project: project.Name, Notified: true}, nil
}

func portfolio(n int) ProjectSource {
	return func(context.Context) []domain.Project {
		projects := make([]domain.Project, n)
		for i := range projects {
			projects[i] = domain.Project{Name: fmt.Sprintf("p%d", i), DeployProjectID: fmt.Sprintf("prj_%d", i)}
		}
		return projects
	}
}

func TestSchedulerRunsInBatchesWithPauses(t *testing.T) {
	decider := &fakeDecider{
		fail: map[string]error{"p1": errors.New("delivery failed")},
		skip: map[string]SkipReason{"p3": SkipUnchanged},
	}
	purged := 0
	scheduler := NewScheduler(decider, portfolio(5), SchedulerConfig{BatchSize: 2, BatchPause: time.Second}, func(context.Context) { purged++ })
	var pauses []time.Duration
	scheduler.sleep = func(_ context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}

	summary, err := scheduler.RunOnce(context.Background())
	if err == nil {
		t.Fatal("expected joined delivery error")
	}
	if summary.Evaluated != 5 || summary.Notified != 3 || summary.Failed != 1 || summary.Skipped[SkipUnchanged] != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(pauses) != 2 {
		t.Fatalf("pauses = %v, want 2 between 3 batches", pauses)
	}
	if decider.maxActive > 2 {
		t.Fatalf("max concurrent = %d, want at most batch size", decider.maxActive)
	}
	if purged != 0 {
		t.Fatal("RunOnce must not run the after-pass hook")
	}
}

func TestSchedulerStopsWhenContextEnds(t *testing.T) {
	decider := &fakeDecider{}
	scheduler := NewScheduler(decider, portfolio(4), SchedulerConfig{BatchSize: 1, BatchPause: time.Hour}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	summary, err := scheduler.RunOnce(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if summary.Evaluated != 1 {
		t.Fatalf("evaluated = %d, want only the first batch", summary.Evaluated)
	}
}

func TestSchedulerRunTicksUntilCanceled(t *testing.T) {
	decider := &fakeDecider{}
	passes := make(chan struct{}, 10)
	scheduler := NewScheduler(decider, portfolio(1), SchedulerConfig{PollInterval: 10 * time.Millisecond}, func(context.Context) {
		passes <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-passes:
		case <-time.After(2 * time.Second):
			t.Fatal("scheduler did not tick")
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestSchedulerConfigDefaults(t *testing.T) {
	cfg := SchedulerConfig{BatchPause: -time.Second}.normalized()
	if cfg.BatchSize != defaultBatchSize || cfg.PollInterval != defaultPollInterval || cfg.BatchPause != 0 {
		t.Fatalf("normalized = %+v", cfg)
	}
}
