package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/louisbranch/shipwatch/internal/services/readiness/storage"
)

// Locker provides short-lived idempotency locks over the KV store.
//
// The store offers no compare-and-swap, so Acquire writes an owner token and
// reads it back. Two racing acquirers both writing before either reads can
// still both proceed; the window is one store round trip.
type Locker struct {
	kv       storage.KV
	newToken func() string
}

// NewLocker builds a locker over kv.
func NewLocker(kv storage.KV) *Locker {
	return &Locker{kv: kv, newToken: uuid.NewString}
}

// EvaluatingKey guards a project's evaluate and notify section.
func EvaluatingKey(project string) string {
	return project + ":evaluating"
}

// CommitKey guards webhook processing of one pushed commit.
func CommitKey(project, sha string) string {
	return project + ":" + sha
}

// Lease is a held lock. Token identifies the holder so an expired holder
// cannot release a successor's lock.
type Lease struct {
	Key   string
	Token string
}

// Acquire reports true when the caller now holds key for ttl. False means
// another holder is live and the caller must skip its work.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error) {
	if l == nil || l.kv == nil {
		return Lease{}, false, fmt.Errorf("locker is not configured")
	}
	storeKey, err := lockKey(key)
	if err != nil {
		return Lease{}, false, err
	}
	if ttl <= 0 {
		return Lease{}, false, fmt.Errorf("lock ttl must be positive")
	}

	if _, err := l.kv.Get(ctx, storeKey); err == nil {
		return Lease{}, false, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return Lease{}, false, fmt.Errorf("read lock %s: %w", key, err)
	}

	token := l.newToken()
	if err := l.kv.Set(ctx, storeKey, []byte(token), ttl); err != nil {
		return Lease{}, false, fmt.Errorf("write lock %s: %w", key, err)
	}
	held, err := l.kv.Get(ctx, storeKey)
	if errors.Is(err, storage.ErrNotFound) {
		return Lease{}, false, nil
	}
	if err != nil {
		return Lease{}, false, fmt.Errorf("confirm lock %s: %w", key, err)
	}
	if string(held) != token {
		return Lease{}, false, nil
	}
	return Lease{Key: key, Token: token}, true, nil
}

// Release drops the lease's key if the stored token is still the lease's.
// A lock that expired and was taken by another holder is left alone.
func (l *Locker) Release(ctx context.Context, lease Lease) error {
	if l == nil || l.kv == nil {
		return fmt.Errorf("locker is not configured")
	}
	storeKey, err := lockKey(lease.Key)
	if err != nil {
		return err
	}
	if lease.Token == "" {
		return fmt.Errorf("lease token is required")
	}
	current, err := l.kv.Get(ctx, storeKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read lock %s: %w", lease.Key, err)
	}
	if string(current) != lease.Token {
		return nil
	}
	if err := l.kv.Delete(ctx, storeKey); err != nil {
		return fmt.Errorf("release lock %s: %w", lease.Key, err)
	}
	return nil
}

// ForceRelease drops key regardless of holder. Operators use it to clear a
// lock left by a crashed process.
func (l *Locker) ForceRelease(ctx context.Context, key string) error {
	if l == nil || l.kv == nil {
		return fmt.Errorf("locker is not configured")
	}
	storeKey, err := lockKey(key)
	if err != nil {
		return err
	}
	if err := l.kv.Delete(ctx, storeKey); err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}

func lockKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("lock key is required")
	}
	return lockPrefix + key, nil
}
