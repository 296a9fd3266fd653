package state

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/shipwatch/internal/services/readiness/domain"
	"github.com/louisbranch/shipwatch/internal/services/readiness/storage"
)

// DedupRecord is the thin summary kept for the last notification sent.
type DedupRecord struct {
	Key          string              `json:"key"`
	Stage        domain.GTMStage     `json:"stage"`
	DeployStatus domain.DeployStatus `json:"deploy_status"`
	NotifiedAt   time.Time           `json:"notified_at"`
}

// Gate remembers the last notification key sent per project.
//
// ShouldNotify followed by Record is not atomic; callers hold the project's
// evaluating lock around both.
type Gate struct {
	kv    storage.KV
	clock func() time.Time
}

// NewGate builds a dedup gate over kv.
func NewGate(kv storage.KV, clock func() time.Time) *Gate {
	return &Gate{kv: kv, clock: clock}
}

// Last returns the stored record; found is false before the first notification.
func (g *Gate) Last(ctx context.Context, project string) (DedupRecord, bool, error) {
	if g == nil || g.kv == nil {
		return DedupRecord{}, false, fmt.Errorf("dedup gate is not configured")
	}
	key, err := projectKey(dedupPrefix, project)
	if err != nil {
		return DedupRecord{}, false, err
	}
	var record DedupRecord
	found, err := getJSON(ctx, g.kv, key, &record)
	if err != nil {
		return DedupRecord{}, false, err
	}
	return record, found, nil
}

// ShouldNotify reports whether key differs from the last notified key.
func (g *Gate) ShouldNotify(ctx context.Context, project, key string) (bool, error) {
	record, found, err := g.Last(ctx, project)
	if err != nil {
		return false, err
	}
	if !found {
		return true, nil
	}
	return record.Key != key, nil
}

// Record stores the snapshot's key as the last one notified.
func (g *Gate) Record(ctx context.Context, snapshot domain.ProjectSnapshot) error {
	if g == nil || g.kv == nil {
		return fmt.Errorf("dedup gate is not configured")
	}
	if snapshot.NotificationKey == "" {
		return fmt.Errorf("notification key is required")
	}
	key, err := projectKey(dedupPrefix, snapshot.Project.Name)
	if err != nil {
		return err
	}
	return setJSON(ctx, g.kv, key, DedupRecord{
		Key:          snapshot.NotificationKey,
		Stage:        snapshot.Stage,
		DeployStatus: snapshot.Deployment.Status,
		NotifiedAt:   nowUTC(g.clock),
	}, 0)
}
