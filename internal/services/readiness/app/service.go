// Package app runs readiness evaluations: the service core, the batched
// scheduler, the push webhook and the process runtime that wires them.
package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/louisbranch/shipwatch/internal/platform/errors"
	"github.com/louisbranch/shipwatch/internal/platform/otel"
	"github.com/louisbranch/shipwatch/internal/platform/timeouts"
	"github.com/louisbranch/shipwatch/internal/services/readiness/domain"
	"github.com/louisbranch/shipwatch/internal/services/readiness/integrations/notify"
	"github.com/louisbranch/shipwatch/internal/services/readiness/push"
	"github.com/louisbranch/shipwatch/internal/services/readiness/render"
	"github.com/louisbranch/shipwatch/internal/services/readiness/state"
	"github.com/louisbranch/shipwatch/internal/services/readiness/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Gatherer collects one project's observation. Implementations never fail;
// unreachable sources become unknown facts.
type Gatherer interface {
	Gather(ctx context.Context, project domain.Project) domain.Observation
}

// Notifier delivers one structured notification.
type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) error
}

// SkipReason explains why DecideAndNotify sent nothing.
type SkipReason string

const (
	SkipLockHeld         SkipReason = "lock_held"
	SkipUnchanged        SkipReason = "unchanged"
	SkipStateUnavailable SkipReason = "state_unavailable"
)

// Decision is the outcome of DecideAndNotify.
type Decision struct {
	Project         string                 `json:"project" yaml:"project"`
	Notified        bool                   `json:"notified" yaml:"notified"`
	Reason          SkipReason             `json:"reason,omitempty" yaml:"reason,omitempty"`
	Stage           domain.GTMStage        `json:"stage,omitempty" yaml:"stage,omitempty"`
	NotificationKey string                 `json:"notification_key,omitempty" yaml:"notification_key,omitempty"`
	Verification    state.ResolutionStatus `json:"verification,omitempty" yaml:"verification,omitempty"`
	MessageID       string                 `json:"message_id,omitempty" yaml:"message_id,omitempty"`
}

// Deps holds the collaborators of a Service.
type Deps struct {
	Gatherer  Gatherer
	Notifier  Notifier
	Store     storage.KV
	Filter    *push.Filter
	Localizer render.Localizer
	Clock     func() time.Time
	NewID     func() string

	// Budget bounds one evaluation, gathering included.
	Budget time.Duration
	// NotifyTimeout bounds one delivery.
	NotifyTimeout time.Duration
	// LockTTL bounds how long a crashed evaluation blocks the next one.
	LockTTL         time.Duration
	VerificationTTL time.Duration
}

// Service exposes the three readiness operations. It keeps no state between
// calls; every record lives in the KV store.
type Service struct {
	gatherer      Gatherer
	notifier      Notifier
	filter        *push.Filter
	localizer     render.Localizer
	clock         func() time.Time
	newID         func() string
	budget        time.Duration
	notifyTimeout time.Duration
	lockTTL       time.Duration

	gate     *state.Gate
	tracker  *state.Tracker
	locker   *state.Locker
	profiles *state.Profiles
}

// NewService validates deps and applies defaults.
func NewService(deps Deps) (*Service, error) {
	if deps.Gatherer == nil {
		return nil, fmt.Errorf("gatherer is required")
	}
	if deps.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Filter == nil {
		deps.Filter = push.NewFilter()
	}
	if deps.Localizer == nil {
		deps.Localizer = render.NewLocalizer("en")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Budget <= 0 {
		deps.Budget = timeouts.EvaluationBudget
	}
	if deps.NotifyTimeout <= 0 {
		deps.NotifyTimeout = timeouts.Notify
	}
	if deps.LockTTL <= 0 {
		deps.LockTTL = deps.Budget + deps.NotifyTimeout
	}

	return &Service{
		gatherer:      deps.Gatherer,
		notifier:      deps.Notifier,
		filter:        deps.Filter,
		localizer:     deps.Localizer,
		clock:         deps.Clock,
		newID:         deps.NewID,
		budget:        deps.Budget,
		notifyTimeout: deps.NotifyTimeout,
		lockTTL:       deps.LockTTL,
		gate:          state.NewGate(deps.Store, deps.Clock),
		tracker:       state.NewTracker(deps.Store, deps.Clock, deps.VerificationTTL),
		locker:        state.NewLocker(deps.Store),
		profiles:      state.NewProfiles(deps.Store, deps.Clock),
	}, nil
}

// Evaluate gathers and assesses project. It never writes state.
func (s *Service) Evaluate(ctx context.Context, project domain.Project) (domain.ProjectSnapshot, error) {
	if err := project.Validate(); err != nil {
		return domain.ProjectSnapshot{}, apperrors.Wrap(apperrors.CodeConfigInvalid, "evaluate", err)
	}
	ctx, span := otel.Tracer().Start(ctx, "readiness.evaluate")
	defer span.End()
	span.SetAttributes(attribute.String("project", project.Name))

	ctx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	obs := s.gatherer.Gather(ctx, project)
	snapshot := domain.Assess(obs, s.clock())
	span.SetAttributes(
		attribute.String("stage", string(snapshot.Stage)),
		attribute.String("deploy_status", string(snapshot.Deployment.Status)),
	)
	return snapshot, nil
}

// DecideAndNotify evaluates project and notifies when its fingerprint moved
// since the last notification. A snapshot built on fallback facts skips with
// SkipStateUnavailable and leaves all state untouched. Only delivery failures
// are returned as errors.
func (s *Service) DecideAndNotify(ctx context.Context, project domain.Project) (Decision, error) {
	decision := Decision{Project: project.Name}
	if err := project.Validate(); err != nil {
		return decision, apperrors.Wrap(apperrors.CodeConfigInvalid, "decide", err)
	}
	ctx, span := otel.Tracer().Start(ctx, "readiness.decide_and_notify")
	defer span.End()
	span.SetAttributes(attribute.String("project", project.Name))

	lockKey := state.EvaluatingKey(project.Name)
	lease, held, err := s.locker.Acquire(ctx, lockKey, s.lockTTL)
	if err != nil {
		log.Printf("readiness: acquire lock project=%s: %v", project.Name, err)
		return skip(span, decision, SkipStateUnavailable), nil
	}
	if !held {
		return skip(span, decision, SkipLockHeld), nil
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), lease); err != nil {
			log.Printf("readiness: release lock project=%s: %v", project.Name, err)
		}
	}()

	snapshot, err := s.Evaluate(ctx, project)
	if err != nil {
		return decision, err
	}
	decision.Stage = snapshot.Stage
	decision.NotificationKey = snapshot.NotificationKey
	if len(snapshot.Unavailable) > 0 {
		log.Printf("readiness: skip decision project=%s unavailable=%s", project.Name, strings.Join(snapshot.Unavailable, ","))
		span.SetAttributes(attribute.StringSlice("unavailable", snapshot.Unavailable))
		return skip(span, decision, SkipStateUnavailable), nil
	}

	last, hadLast, err := s.gate.Last(ctx, project.Name)
	if err != nil {
		log.Printf("readiness: read dedup record project=%s: %v", project.Name, err)
		return skip(span, decision, SkipStateUnavailable), nil
	}
	resolution, err := s.tracker.Resolve(ctx, snapshot)
	if err != nil {
		log.Printf("readiness: resolve verification project=%s: %v", project.Name, err)
		return skip(span, decision, SkipStateUnavailable), nil
	}
	decision.Verification = resolution.Status

	changed := !hadLast || last.Key != snapshot.NotificationKey
	if !changed && !resolution.Verified() {
		return skip(span, decision, SkipUnchanged), nil
	}

	recommendation := domain.Recommend(snapshot)
	msg := s.message(snapshot, last, hadLast, resolution, recommendation)
	decision.MessageID = msg.ID

	notifyCtx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	err = s.notifier.Notify(notifyCtx, msg)
	cancel()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		return decision, apperrors.WrapWithMetadata(apperrors.CodeDeliveryFailed, "notify", map[string]string{"project": project.Name}, err)
	}
	decision.Notified = true
	span.SetAttributes(attribute.Bool("notified", true))

	if err := s.gate.Record(ctx, snapshot); err != nil {
		log.Printf("readiness: record dedup key project=%s: %v", project.Name, err)
	}
	if !recommendation.IsNone() {
		if err := s.tracker.Open(ctx, snapshot, recommendation); err != nil {
			log.Printf("readiness: open verification project=%s: %v", project.Name, err)
		}
	}
	return decision, nil
}

// RecordPush classifies pushed commits against the project profile. A
// missing or unreadable profile counts as empty.
func (s *Service) RecordPush(ctx context.Context, project domain.Project, commits []push.Commit) (push.Result, error) {
	if strings.TrimSpace(project.Name) == "" {
		return push.Result{}, apperrors.New(apperrors.CodeConfigInvalid, "project name is required")
	}
	ctx, span := otel.Tracer().Start(ctx, "readiness.record_push")
	defer span.End()
	span.SetAttributes(attribute.String("project", project.Name), attribute.Int("commits", len(commits)))

	profile, err := s.profiles.Load(ctx, project.Name)
	if err != nil {
		log.Printf("readiness: load profile project=%s: %v", project.Name, err)
		profile = state.ProjectProfile{}
	}
	result := s.filter.Evaluate(profile.PushProfile(), commits)
	span.SetAttributes(attribute.Bool("meaningful", result.Meaningful))
	return result, nil
}

// Unlock drops an idempotency lock by key, for operators clearing a lock
// left by a crashed run.
func (s *Service) Unlock(ctx context.Context, key string) error {
	return s.locker.ForceRelease(ctx, key)
}

func skip(span trace.Span, decision Decision, reason SkipReason) Decision {
	decision.Reason = reason
	span.SetAttributes(attribute.String("skip_reason", string(reason)))
	return decision
}

func (s *Service) message(snapshot domain.ProjectSnapshot, last state.DedupRecord, hadLast bool, resolution state.Resolution, rec domain.Recommendation) notify.Message {
	var previous domain.GTMStage
	if hadLast {
		previous = last.Stage
	}
	blocker := snapshot.OperationalBlocker
	if blocker == nil {
		blocker = snapshot.GTMBlocker
	}
	labels := render.Render(s.localizer, render.Input{
		Project:       snapshot.Project.Name,
		Stage:         snapshot.Stage,
		PreviousStage: previous,
		DeployStatus:  snapshot.Deployment.Status,
		Blocker:       blocker,
		Verified:      resolution.Verified(),
	})

	msg := notify.Message{
		ID:                 s.newID(),
		Project:            snapshot.Project.Name,
		Headline:           labels.Headline,
		StageLabel:         labels.StageLabel,
		Stage:              snapshot.Stage,
		PreviousStage:      previous,
		DeployStatus:       snapshot.Deployment.Status,
		DeploymentURL:      snapshot.Deployment.URL,
		OperationalBlocker: snapshot.OperationalBlocker,
		GTMBlocker:         snapshot.GTMBlocker,
		FailedChecks:       snapshot.Checks.Failed(),
		NotificationKey:    snapshot.NotificationKey,
		EvaluatedAt:        snapshot.SnapshotAt,
	}
	if snapshot.Screenshot != nil {
		msg.ScreenshotURL = snapshot.Screenshot.ImageURL
	}
	if !rec.IsNone() {
		recCopy := rec
		msg.Recommendation = &recCopy
	}
	if resolution.Record != nil && resolution.Status != state.ResolutionPending {
		msg.Verification = &notify.Verification{
			Status: string(resolution.Status),
			Action: resolution.Record.RecommendedAction,
		}
	}
	return msg
}
