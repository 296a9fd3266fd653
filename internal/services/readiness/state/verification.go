package state

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/shipwatch/internal/services/readiness/domain"
	"github.com/louisbranch/shipwatch/internal/services/readiness/storage"
)

// DefaultVerificationTTL bounds how long a recommendation stays pending.
const DefaultVerificationTTL = 24 * time.Hour

// PendingVerification is the open loop for the last recommendation sent.
type PendingVerification struct {
	ProjectName             string                 `json:"project_name"`
	RecommendedAction       string                 `json:"recommended_action"`
	RecommendedAt           time.Time              `json:"recommended_at"`
	ExpectedOutcome         domain.ExpectedOutcome `json:"expected_outcome"`
	PreviousNotificationKey string                 `json:"previous_notification_key"`
}

// ResolutionStatus is the result of checking a pending verification.
type ResolutionStatus string

const (
	// ResolutionIdle means nothing was pending.
	ResolutionIdle     ResolutionStatus = "idle"
	ResolutionPending  ResolutionStatus = "pending"
	ResolutionVerified ResolutionStatus = "verified"
	ResolutionExpired  ResolutionStatus = "expired"
)

// Resolution reports what happened to the pending record, if any.
type Resolution struct {
	Status ResolutionStatus     `json:"status"`
	Record *PendingVerification `json:"record,omitempty"`
}

// Verified reports whether the recommended action was confirmed.
func (r Resolution) Verified() bool {
	return r.Status == ResolutionVerified
}

// Tracker runs the per-project idle/pending verification machine.
type Tracker struct {
	kv    storage.KV
	clock func() time.Time
	ttl   time.Duration
}

// NewTracker builds a tracker; a non-positive ttl uses DefaultVerificationTTL.
func NewTracker(kv storage.KV, clock func() time.Time, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultVerificationTTL
	}
	return &Tracker{kv: kv, clock: clock, ttl: ttl}
}

// Open moves the project to pending, replacing any older record.
func (t *Tracker) Open(ctx context.Context, snapshot domain.ProjectSnapshot, rec domain.Recommendation) error {
	if t == nil || t.kv == nil {
		return fmt.Errorf("verification tracker is not configured")
	}
	if rec.IsNone() {
		return fmt.Errorf("recommendation action is required")
	}
	if !rec.ExpectedOutcome.Valid() {
		return fmt.Errorf("unknown expected outcome %q", rec.ExpectedOutcome)
	}
	key, err := projectKey(verificationPrefix, snapshot.Project.Name)
	if err != nil {
		return err
	}
	record := PendingVerification{
		ProjectName:             snapshot.Project.Name,
		RecommendedAction:       strings.TrimSpace(rec.Action),
		RecommendedAt:           nowUTC(t.clock),
		ExpectedOutcome:         rec.ExpectedOutcome,
		PreviousNotificationKey: snapshot.NotificationKey,
	}
	// The store TTL only garbage-collects; expiry is decided from
	// RecommendedAt so Resolve can still report it.
	return setJSON(ctx, t.kv, key, record, 2*t.ttl)
}

// Pending returns the live record; found is false when idle.
func (t *Tracker) Pending(ctx context.Context, project string) (PendingVerification, bool, error) {
	if t == nil || t.kv == nil {
		return PendingVerification{}, false, fmt.Errorf("verification tracker is not configured")
	}
	key, err := projectKey(verificationPrefix, project)
	if err != nil {
		return PendingVerification{}, false, err
	}
	var record PendingVerification
	found, err := getJSON(ctx, t.kv, key, &record)
	if err != nil {
		return PendingVerification{}, false, err
	}
	return record, found, nil
}

// Resolve checks the pending record against a new snapshot. The record is
// cleared when the fingerprint changed and the expected outcome holds, or
// when it is older than the TTL.
func (t *Tracker) Resolve(ctx context.Context, snapshot domain.ProjectSnapshot) (Resolution, error) {
	record, found, err := t.Pending(ctx, snapshot.Project.Name)
	if err != nil {
		return Resolution{}, err
	}
	if !found {
		return Resolution{Status: ResolutionIdle}, nil
	}

	status := ResolutionPending
	switch {
	case !nowUTC(t.clock).Before(record.RecommendedAt.Add(t.ttl)):
		status = ResolutionExpired
	case snapshot.NotificationKey != record.PreviousNotificationKey &&
		domain.OutcomeHolds(record.ExpectedOutcome, snapshot):
		status = ResolutionVerified
	}
	if status != ResolutionPending {
		if err := t.clear(ctx, snapshot.Project.Name); err != nil {
			return Resolution{}, err
		}
	}
	return Resolution{Status: status, Record: &record}, nil
}

func (t *Tracker) clear(ctx context.Context, project string) error {
	key, err := projectKey(verificationPrefix, project)
	if err != nil {
		return err
	}
	if err := t.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
