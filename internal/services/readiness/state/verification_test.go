package state

import (
	"context"
	"testing"
	"time"

	"github.com/louisbranch/shipwatch/internal/services/readiness/domain"
)

func failingSnapshot() domain.ProjectSnapshot {
	return domain.ProjectSnapshot{
		Project:         domain.Project{Name: "notes"},
		Deployment:      domain.Deployment{ID: "dpl-1", Status: domain.DeployError, ErrorLog: "boom"},
		Stage:           domain.StageBuilding,
		NotificationKey: "key-error",
	}
}

func fixRecommendation() domain.Recommendation {
	return domain.Recommendation{Action: "Fix the build", ExpectedOutcome: domain.OutcomeErrorFixed}
}

func TestTrackerVerifiesWhenOutcomeHolds(t *testing.T) {
	clock := newFakeClock()
	tracker := NewTracker(openTempStore(t, clock), clock.Now, 0)
	ctx := context.Background()

	if err := tracker.Open(ctx, failingSnapshot(), fixRecommendation()); err != nil {
		t.Fatalf("open: %v", err)
	}

	fixed := failingSnapshot()
	fixed.Deployment = domain.Deployment{ID: "dpl-2", Status: domain.DeployReady}
	fixed.NotificationKey = "key-ready"
	clock.Advance(time.Hour)

	resolution, err := tracker.Resolve(ctx, fixed)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !resolution.Verified() {
		t.Fatalf("resolution = %+v, want verified", resolution)
	}
	if resolution.Record == nil || resolution.Record.ExpectedOutcome != domain.OutcomeErrorFixed {
		t.Fatalf("record = %+v", resolution.Record)
	}
	if _, found, _ := tracker.Pending(ctx, "notes"); found {
		t.Fatal("expected record cleared after verification")
	}
}

func TestTrackerStaysPendingWhileStillFailing(t *testing.T) {
	clock := newFakeClock()
	tracker := NewTracker(openTempStore(t, clock), clock.Now, 0)
	ctx := context.Background()

	if err := tracker.Open(ctx, failingSnapshot(), fixRecommendation()); err != nil {
		t.Fatalf("open: %v", err)
	}

	stillFailing := failingSnapshot()
	stillFailing.Deployment.ID = "dpl-3"
	stillFailing.NotificationKey = "key-error-2"
	resolution, err := tracker.Resolve(ctx, stillFailing)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolution.Status != ResolutionPending || resolution.Verified() {
		t.Fatalf("resolution = %+v, want pending", resolution)
	}

	unchangedButReady := failingSnapshot()
	unchangedButReady.Deployment.Status = domain.DeployReady
	resolution, err = tracker.Resolve(ctx, unchangedButReady)
	if err != nil {
		t.Fatalf("resolve unchanged key: %v", err)
	}
	if resolution.Status != ResolutionPending {
		t.Fatalf("resolution = %+v, want pending when fingerprint did not change", resolution)
	}
}

func TestTrackerExpiresAfterTTL(t *testing.T) {
	clock := newFakeClock()
	tracker := NewTracker(openTempStore(t, clock), clock.Now, 0)
	ctx := context.Background()

	if err := tracker.Open(ctx, failingSnapshot(), fixRecommendation()); err != nil {
		t.Fatalf("open: %v", err)
	}
	clock.Advance(DefaultVerificationTTL)

	resolution, err := tracker.Resolve(ctx, failingSnapshot())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolution.Status != ResolutionExpired {
		t.Fatalf("resolution = %+v, want expired", resolution)
	}
	if resolution, _ = tracker.Resolve(ctx, failingSnapshot()); resolution.Status != ResolutionIdle {
		t.Fatalf("resolution = %+v, want idle after expiry", resolution)
	}
}

func TestTrackerNewRecommendationReplacesOld(t *testing.T) {
	clock := newFakeClock()
	tracker := NewTracker(openTempStore(t, clock), clock.Now, 0)
	ctx := context.Background()

	if err := tracker.Open(ctx, failingSnapshot(), fixRecommendation()); err != nil {
		t.Fatalf("open first: %v", err)
	}
	packaging := domain.ProjectSnapshot{Project: domain.Project{Name: "notes"}, NotificationKey: "key-packaging"}
	if err := tracker.Open(ctx, packaging, domain.Recommendation{Action: "Add a demo gif", ExpectedOutcome: domain.OutcomeGTMReady}); err != nil {
		t.Fatalf("open second: %v", err)
	}

	record, found, err := tracker.Pending(ctx, "notes")
	if err != nil || !found {
		t.Fatalf("pending = %v, %v", found, err)
	}
	if record.ExpectedOutcome != domain.OutcomeGTMReady || record.PreviousNotificationKey != "key-packaging" {
		t.Fatalf("record = %+v, want replaced record", record)
	}
}

func TestTrackerOpenRejectsEmptyRecommendation(t *testing.T) {
	clock := newFakeClock()
	tracker := NewTracker(openTempStore(t, clock), clock.Now, 0)

	if err := tracker.Open(context.Background(), failingSnapshot(), domain.Recommendation{}); err == nil {
		t.Fatal("expected error for empty recommendation")
	}
	if resolution, err := tracker.Resolve(context.Background(), failingSnapshot()); err != nil || resolution.Status != ResolutionIdle {
		t.Fatalf("resolution = %+v, err = %v; want idle", resolution, err)
	}
}
