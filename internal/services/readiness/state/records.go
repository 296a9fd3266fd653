// Package state keeps the per-project records that survive between
// stateless evaluations: the dedup gate, pending verifications, idempotency
// locks, project profiles and the last processed push.
//
// Every record lives under a single key so each read or write is one atomic
// store operation.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/shipwatch/internal/services/readiness/storage"
)

const (
	dedupPrefix        = "dedup:"
	verificationPrefix = "verification:"
	lockPrefix         = "lock:"
	profilePrefix      = "profile:"
	lastPushPrefix     = "push:last-sha:"
)

func projectKey(prefix, project string) (string, error) {
	project = strings.TrimSpace(project)
	if project == "" {
		return "", fmt.Errorf("project name is required")
	}
	return prefix + project, nil
}

// getJSON loads key into out. found is false when the key is absent.
func getJSON(ctx context.Context, kv storage.KV, key string, out any) (bool, error) {
	payload, err := kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func setJSON(ctx context.Context, kv storage.KV, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := kv.Set(ctx, key, payload, ttl); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func nowUTC(clock func() time.Time) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock().UTC()
}
