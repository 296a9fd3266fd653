package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/louisbranch/shipwatch/internal/services/readiness/domain"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBatchSize    = 3
	defaultBatchPause   = 2 * time.Second
	defaultPollInterval = 15 * time.Minute
)

// ProjectSource lists the projects to evaluate on each tick.
type ProjectSource func(ctx context.Context) []domain.Project

// Decider is the part of Service the scheduler drives.
type Decider interface {
	DecideAndNotify(ctx context.Context, project domain.Project) (Decision, error)
}

// SchedulerConfig tunes the polling loop.
type SchedulerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	BatchPause   time.Duration
	// RunBudget bounds one full pass over the portfolio; zero means unbounded.
	RunBudget time.Duration
}

func (c SchedulerConfig) normalized() SchedulerConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.BatchPause < 0 {
		c.BatchPause = 0
	}
	return c
}

// Summary counts what one pass did.
type Summary struct {
	Evaluated int
	Notified  int
	Skipped   map[SkipReason]int
	Failed    int
}

// Scheduler evaluates the whole portfolio in small concurrent batches.
type Scheduler struct {
	decider  Decider
	projects ProjectSource
	cfg      SchedulerConfig
	// afterPass runs once per tick, e.g. to purge expired store entries.
	afterPass func(ctx context.Context)
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewScheduler builds a scheduler.
func NewScheduler(decider Decider, projects ProjectSource, cfg SchedulerConfig, afterPass func(context.Context)) *Scheduler {
	return &Scheduler{
		decider:   decider,
		projects:  projects,
		cfg:       cfg.normalized(),
		afterPass: afterPass,
		sleep:     sleepContext,
	}
}

// RunOnce evaluates every project once. Delivery failures are joined into
// the returned error; other outcomes only show up in the summary.
func (s *Scheduler) RunOnce(ctx context.Context) (Summary, error) {
	summary := Summary{Skipped: map[SkipReason]int{}}
	if s == nil || s.decider == nil || s.projects == nil {
		return summary, fmt.Errorf("scheduler is not configured")
	}
	if s.cfg.RunBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunBudget)
		defer cancel()
	}

	projects := s.projects(ctx)
	var (
		mu       sync.Mutex
		failures []error
	)
	for start := 0; start < len(projects); start += s.cfg.BatchSize {
		if start > 0 {
			if err := s.sleep(ctx, s.cfg.BatchPause); err != nil {
				return summary, errors.Join(append(failures, err)...)
			}
		}
		end := min(start+s.cfg.BatchSize, len(projects))

		var g errgroup.Group
		for _, project := range projects[start:end] {
			g.Go(func() error {
				decision, err := s.decider.DecideAndNotify(ctx, project)
				mu.Lock()
				defer mu.Unlock()
				summary.Evaluated++
				switch {
				case err != nil:
					summary.Failed++
					failures = append(failures, fmt.Errorf("%s: %w", project.Name, err))
					log.Printf("scheduler: project=%s failed: %v", project.Name, err)
				case decision.Notified:
					summary.Notified++
				default:
					summary.Skipped[decision.Reason]++
				}
				return nil
			})
		}
		_ = g.Wait()
	}
	return summary, errors.Join(failures...)
}

// Run ticks until ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	s.tick(ctx)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	summary, err := s.RunOnce(ctx)
	if err != nil {
		log.Printf("scheduler: pass finished with errors: %v", err)
	}
	log.Printf("scheduler: evaluated=%d notified=%d failed=%d skipped=%v", summary.Evaluated, summary.Notified, summary.Failed, summary.Skipped)
	if s.afterPass != nil {
		s.afterPass(ctx)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
