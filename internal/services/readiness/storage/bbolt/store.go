// Package bbolt provides a single-file BoltDB key-value backend for
// deployments that cannot run SQLite.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/shipwatch/internal/services/readiness/storage"
	"go.etcd.io/bbolt"
)

const kvBucket = "kv"

// envelope wraps stored values with their expiry in unix milliseconds.
type envelope struct {
	Value     []byte `json:"value"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

// Store provides a BoltDB-backed key-value store.
type Store struct {
	db    *bbolt.DB
	clock func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	return OpenWithClock(path, time.Now)
}

// OpenWithClock opens a store that evaluates TTLs against clock.
func OpenWithClock(path string, clock func() time.Time) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if clock == nil {
		clock = time.Now
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(kvBucket)); err != nil {
			return fmt.Errorf("create kv bucket: %w", err)
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, clock: clock}, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the live value for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.check(ctx, key); err != nil {
		return nil, err
	}

	var entry envelope
	err := s.db.View(func(tx *bbolt.Tx) error {
		payload := tx.Bucket([]byte(kvBucket)).Get([]byte(key))
		if payload == nil {
			return storage.ErrNotFound
		}
		if err := json.Unmarshal(payload, &entry); err != nil {
			return fmt.Errorf("unmarshal %s: %w", key, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if entry.ExpiresAt > 0 && s.clock().UnixMilli() >= entry.ExpiresAt {
		return nil, storage.ErrNotFound
	}
	if entry.Value == nil {
		entry.Value = []byte{}
	}
	return entry.Value, nil
}

// Set stores value for key. A zero ttl never expires.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}
	if ttl < 0 {
		return fmt.Errorf("ttl must not be negative")
	}

	entry := envelope{Value: value}
	if ttl > 0 {
		entry.ExpiresAt = s.clock().Add(ttl).UnixMilli()
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(kvBucket)).Put([]byte(key), payload)
	})
}

// Delete removes key; absent keys are ignored.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(kvBucket)).Delete([]byte(key))
	})
}

// PurgeExpired removes expired entries and returns how many were deleted.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	now := s.clock().UnixMilli()
	var purged int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(kvBucket))
		var expired [][]byte
		if err := bucket.ForEach(func(k, v []byte) error {
			var entry envelope
			if err := json.Unmarshal(v, &entry); err != nil {
				return nil
			}
			if entry.ExpiresAt > 0 && now >= entry.ExpiresAt {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			purged++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("purge expired: %w", err)
	}
	return purged, nil
}

func (s *Store) check(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("key is required")
	}
	return nil
}
