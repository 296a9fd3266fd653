package state

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/shipwatch/internal/services/readiness/push"
	"github.com/louisbranch/shipwatch/internal/services/readiness/storage"
)

// ProjectProfile is written by the content-analysis collaborator and read
// when filtering pushes.
type ProjectProfile struct {
	FilesToDelete []string  `json:"files_to_delete,omitempty"`
	KnownBlockers []string  `json:"known_blockers,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PushProfile adapts the profile for the push filter.
func (p ProjectProfile) PushProfile() push.Profile {
	return push.Profile{
		FilesToDelete: append([]string(nil), p.FilesToDelete...),
		KnownBlockers: append([]string(nil), p.KnownBlockers...),
	}
}

// Profiles reads and writes project profiles.
type Profiles struct {
	kv    storage.KV
	clock func() time.Time
}

// NewProfiles builds a profile repository over kv.
func NewProfiles(kv storage.KV, clock func() time.Time) *Profiles {
	return &Profiles{kv: kv, clock: clock}
}

// Load returns the project's profile, or an empty one when none is stored.
func (p *Profiles) Load(ctx context.Context, project string) (ProjectProfile, error) {
	if p == nil || p.kv == nil {
		return ProjectProfile{}, fmt.Errorf("profiles are not configured")
	}
	key, err := projectKey(profilePrefix, project)
	if err != nil {
		return ProjectProfile{}, err
	}
	var profile ProjectProfile
	if _, err := getJSON(ctx, p.kv, key, &profile); err != nil {
		return ProjectProfile{}, err
	}
	return profile, nil
}

// Save replaces the project's profile.
func (p *Profiles) Save(ctx context.Context, project string, profile ProjectProfile) error {
	if p == nil || p.kv == nil {
		return fmt.Errorf("profiles are not configured")
	}
	key, err := projectKey(profilePrefix, project)
	if err != nil {
		return err
	}
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = nowUTC(p.clock)
	}
	return setJSON(ctx, p.kv, key, profile, 0)
}
