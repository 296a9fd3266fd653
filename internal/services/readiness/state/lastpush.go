package state

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/shipwatch/internal/services/readiness/storage"
)

// lastPushRecord is the webhook caller's "last processed commit" marker.
type lastPushRecord struct {
	SHA         string    `json:"sha"`
	ProcessedAt time.Time `json:"processed_at"`
}

// LastPush remembers the last pushed sha processed per project so that
// redelivered webhooks are ignored after the first delivery finished.
type LastPush struct {
	kv    storage.KV
	clock func() time.Time
}

// NewLastPush builds the marker repository over kv.
func NewLastPush(kv storage.KV, clock func() time.Time) *LastPush {
	return &LastPush{kv: kv, clock: clock}
}

// Processed reports whether sha is the last processed push for project.
func (l *LastPush) Processed(ctx context.Context, project, sha string) (bool, error) {
	if l == nil || l.kv == nil {
		return false, fmt.Errorf("last push marker is not configured")
	}
	key, err := projectKey(lastPushPrefix, project)
	if err != nil {
		return false, err
	}
	var record lastPushRecord
	found, err := getJSON(ctx, l.kv, key, &record)
	if err != nil || !found {
		return false, err
	}
	return record.SHA == strings.TrimSpace(sha), nil
}

// Mark stores sha as processed.
func (l *LastPush) Mark(ctx context.Context, project, sha string) error {
	if l == nil || l.kv == nil {
		return fmt.Errorf("last push marker is not configured")
	}
	sha = strings.TrimSpace(sha)
	if sha == "" {
		return fmt.Errorf("commit sha is required")
	}
	key, err := projectKey(lastPushPrefix, project)
	if err != nil {
		return err
	}
	return setJSON(ctx, l.kv, key, lastPushRecord{SHA: sha, ProcessedAt: nowUTC(l.clock)}, 0)
}
