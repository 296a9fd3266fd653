package app

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/louisbranch/shipwatch/internal/platform/errors"
	"github.com/louisbranch/shipwatch/internal/services/readiness/domain"
	"github.com/louisbranch/shipwatch/internal/services/readiness/push"
	"github.com/louisbranch/shipwatch/internal/services/readiness/state"
)

func TestDecideAndNotifyFailedDeployThenUnchangedThenFixed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	project := notesProject()

	// First run on a broken deploy notifies.
	h.gatherer.set(failingDeploy())
	decision, err := h.service.DecideAndNotify(ctx, project)
	if err != nil {
		t.Fatalf("first decide: %v", err)
	}
	if !decision.Notified || decision.Stage != domain.StageBuilding {
		t.Fatalf("first decision = %+v", decision)
	}
	sent := h.notifier.sent()
	if len(sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(sent))
	}
	first := sent[0]
	if first.OperationalBlocker == nil || first.OperationalBlocker.Severity != domain.SeverityCritical {
		t.Fatalf("operational blocker = %+v", first.OperationalBlocker)
	}
	if first.GTMBlocker != nil {
		t.Fatalf("gtm blocker = %+v, want none while building", first.GTMBlocker)
	}
	if first.Recommendation == nil || first.Recommendation.ExpectedOutcome != domain.OutcomeErrorFixed {
		t.Fatalf("recommendation = %+v", first.Recommendation)
	}
	if first.ID != "msg-1" || first.NotificationKey != decision.NotificationKey {
		t.Fatalf("message identity = %q/%q", first.ID, first.NotificationKey)
	}

	tracker := state.NewTracker(h.store, h.clock.Now, 0)
	if _, pending, err := tracker.Pending(ctx, project.Name); err != nil || !pending {
		t.Fatalf("pending verification = %v, %v; want open", pending, err)
	}

	// Re-evaluating the same state stays quiet.
	h.clock.Advance(time.Minute)
	decision, err = h.service.DecideAndNotify(ctx, project)
	if err != nil {
		t.Fatalf("second decide: %v", err)
	}
	if decision.Notified || decision.Reason != SkipUnchanged {
		t.Fatalf("second decision = %+v, want unchanged", decision)
	}
	if decision.Verification != state.ResolutionPending {
		t.Fatalf("verification = %q, want pending", decision.Verification)
	}
	if len(h.notifier.sent()) != 1 {
		t.Fatal("unchanged state must not notify")
	}

	// The secret gets configured and the deploy goes green.
	h.clock.Advance(time.Hour)
	h.gatherer.set(healthyDeploy())
	decision, err = h.service.DecideAndNotify(ctx, project)
	if err != nil {
		t.Fatalf("third decide: %v", err)
	}
	if !decision.Notified || decision.Stage != domain.StageReadyToLaunch {
		t.Fatalf("third decision = %+v", decision)
	}
	if decision.Verification != state.ResolutionVerified {
		t.Fatalf("verification = %q, want verified", decision.Verification)
	}
	sent = h.notifier.sent()
	last := sent[len(sent)-1]
	if last.NotificationKey == first.NotificationKey {
		t.Fatal("fingerprint should change after the fix")
	}
	if last.PreviousStage != domain.StageBuilding {
		t.Fatalf("previous stage = %q", last.PreviousStage)
	}
	if last.Verification == nil || last.Verification.Status != string(state.ResolutionVerified) {
		t.Fatalf("verification = %+v", last.Verification)
	}
	if last.Headline != "notes: the recommended fix worked" {
		t.Fatalf("headline = %q", last.Headline)
	}
}

func TestDecideAndNotifySkipsWhenLockHeld(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.gatherer.set(failingDeploy())

	locker := state.NewLocker(h.store)
	_, held, err := locker.Acquire(ctx, state.EvaluatingKey("notes"), time.Minute)
	if err != nil || !held {
		t.Fatalf("acquire = %v, %v", held, err)
	}

	decision, err := h.service.DecideAndNotify(ctx, notesProject())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if decision.Notified || decision.Reason != SkipLockHeld {
		t.Fatalf("decision = %+v, want lock_held", decision)
	}
	if h.gatherer.calls != 0 {
		t.Fatal("lock contention must skip gathering")
	}

	if err := h.service.Unlock(ctx, state.EvaluatingKey("notes")); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	decision, err = h.service.DecideAndNotify(ctx, notesProject())
	if err != nil || !decision.Notified {
		t.Fatalf("decision after unlock = %+v, %v", decision, err)
	}

	// The evaluating lock is released on exit.
	_, held, err = locker.Acquire(ctx, state.EvaluatingKey("notes"), time.Minute)
	if err != nil || !held {
		t.Fatalf("lock after decide = %v, %v; want released", held, err)
	}
}

func TestDecideAndNotifySurfacesDeliveryFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.gatherer.set(failingDeploy())
	h.notifier.err = errors.New("webhook status 502")

	decision, err := h.service.DecideAndNotify(ctx, notesProject())
	if err == nil {
		t.Fatal("expected delivery error")
	}
	if apperrors.CodeOf(err) != apperrors.CodeDeliveryFailed {
		t.Fatalf("code = %q, want delivery failed", apperrors.CodeOf(err))
	}
	if decision.Notified {
		t.Fatal("failed delivery is not a notification")
	}

	// The gate was not advanced, so the next run retries.
	h.notifier.err = nil
	decision, err = h.service.DecideAndNotify(ctx, notesProject())
	if err != nil || !decision.Notified {
		t.Fatalf("retry decision = %+v, %v", decision, err)
	}
}

func TestDecideAndNotifyReportsUnavailableState(t *testing.T) {
	h := newHarness(t)
	service, err := NewService(Deps{Gatherer: h.gatherer, Notifier: h.notifier, Store: brokenKV{}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	decision, err := service.DecideAndNotify(context.Background(), notesProject())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if decision.Reason != SkipStateUnavailable {
		t.Fatalf("reason = %q, want state_unavailable", decision.Reason)
	}
	if len(h.notifier.sent()) != 0 {
		t.Fatal("no notification without state")
	}
}

func TestDecideAndNotifySkipsFallbackFacts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	project := notesProject()

	h.gatherer.set(failingDeploy())
	first, err := h.service.DecideAndNotify(ctx, project)
	if err != nil || !first.Notified {
		t.Fatalf("first decision = %+v, %v", first, err)
	}

	// The deploy host goes dark: no deployment and no secret listing.
	outage := failingDeploy()
	outage.Facts.Deployment = nil
	outage.SecretsUnknown = true
	outage.Unavailable = []string{"latest deployment", "configured secrets"}
	h.gatherer.set(outage)
	h.clock.Advance(time.Minute)

	decision, err := h.service.DecideAndNotify(ctx, project)
	if err != nil {
		t.Fatalf("decide during outage: %v", err)
	}
	if decision.Notified || decision.Reason != SkipStateUnavailable {
		t.Fatalf("outage decision = %+v, want state_unavailable", decision)
	}
	if len(h.notifier.sent()) != 1 {
		t.Fatal("fallback facts must not notify")
	}
	last, found, err := state.NewGate(h.store, h.clock.Now).Last(ctx, project.Name)
	if err != nil || !found {
		t.Fatalf("dedup record = %v, %v", found, err)
	}
	if last.Key != first.NotificationKey {
		t.Fatalf("dedup key = %q, want %q untouched", last.Key, first.NotificationKey)
	}

	// Recovery to the same facts stays quiet.
	h.gatherer.set(failingDeploy())
	decision, err = h.service.DecideAndNotify(ctx, project)
	if err != nil || decision.Notified || decision.Reason != SkipUnchanged {
		t.Fatalf("recovered decision = %+v, %v; want unchanged", decision, err)
	}
}

func TestEvaluateDoesNotWriteState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.gatherer.set(failingDeploy())

	snapshot, err := h.service.Evaluate(ctx, notesProject())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if snapshot.Deployment.ErrorCategory != domain.ErrorCategoryConfig {
		t.Fatalf("error category = %q, want config", snapshot.Deployment.ErrorCategory)
	}

	if _, found, err := state.NewGate(h.store, h.clock.Now).Last(ctx, "notes"); err != nil || found {
		t.Fatalf("dedup record found = %v, %v; want none", found, err)
	}
	if _, err := h.service.Evaluate(ctx, domain.Project{}); err == nil {
		t.Fatal("expected error for project without identity")
	}
}

func TestRecordPushUsesProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	profiles := state.NewProfiles(h.store, h.clock.Now)
	if err := profiles.Save(ctx, "notes", state.ProjectProfile{FilesToDelete: []string{"mock-data.json"}}); err != nil {
		t.Fatalf("save profile: %v", err)
	}

	result, err := h.service.RecordPush(ctx, notesProject(), []push.Commit{{SHA: "c3", Removed: []string{"src/mock-data.json"}}})
	if err != nil {
		t.Fatalf("record push: %v", err)
	}
	if !result.Meaningful || len(result.DeletedCutFiles) != 1 {
		t.Fatalf("result = %+v, want cut file deletion", result)
	}

	result, err = h.service.RecordPush(ctx, notesProject(), []push.Commit{{SHA: "c4", Modified: []string{"src/app.ts"}}})
	if err != nil {
		t.Fatalf("record push: %v", err)
	}
	if result.Meaningful {
		t.Fatalf("result = %+v, want not meaningful", result)
	}
}

func TestRecordPushFallsBackToEmptyProfile(t *testing.T) {
	h := newHarness(t)
	service, err := NewService(Deps{Gatherer: h.gatherer, Notifier: h.notifier, Store: brokenKV{}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	result, err := service.RecordPush(context.Background(), notesProject(), []push.Commit{{SHA: "c5", Modified: []string{"README.md"}}})
	if err != nil {
		t.Fatalf("record push: %v", err)
	}
	if !result.Meaningful || !result.ReadmeChanged {
		t.Fatalf("result = %+v, want readme change", result)
	}
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	if _, err := NewService(Deps{}); err == nil {
		t.Fatal("expected error without gatherer")
	}
	if _, err := NewService(Deps{Gatherer: &fakeGatherer{}}); err == nil {
		t.Fatal("expected error without notifier")
	}
	if _, err := NewService(Deps{Gatherer: &fakeGatherer{}, Notifier: &fakeNotifier{}}); err == nil {
		t.Fatal("expected error without store")
	}
}
