package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

const fingerprintVersion = "v1"

// FingerprintInput is the slice of state that decides whether the owner
// should hear about a project again.
type FingerprintInput struct {
	DeploymentID    string
	LatestCommitSHA string
	DeployStatus    DeployStatus
	MissingEnvVars  []string
	Stage           GTMStage
}

// Fingerprint derives the notification key. Missing env vars are treated as
// a set: order and duplicates do not change the key.
func Fingerprint(in FingerprintInput) string {
	missing := make([]string, 0, len(in.MissingEnvVars))
	seen := make(map[string]bool, len(in.MissingEnvVars))
	for _, name := range in.MissingEnvVars {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		missing = append(missing, name)
	}
	sort.Strings(missing)

	fields := []string{
		fingerprintVersion,
		strings.TrimSpace(in.DeploymentID),
		strings.TrimSpace(in.LatestCommitSHA),
		string(in.DeployStatus),
		strings.Join(missing, "\x1e"),
		string(in.Stage),
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// FingerprintOf extracts the fingerprint input from a snapshot.
func FingerprintOf(s ProjectSnapshot) FingerprintInput {
	return FingerprintInput{
		DeploymentID:    s.Deployment.ID,
		LatestCommitSHA: s.LatestCommitSHA(),
		DeployStatus:    s.Deployment.Status,
		MissingEnvVars:  s.MissingSecrets(),
		Stage:           s.Stage,
	}
}

// Observation is everything the gatherers collected for one project.
// SecretsUnknown means the configured secrets could not be listed, so no
// secret counts as missing. Unavailable names the fetches that fell back.
type Observation struct {
	Project           Project
	Facts             Facts
	Commits           []Commit
	KeyFiles          map[string]string
	ReferencedSecrets []string
	ConfiguredSecrets []string
	SecretsUnknown    bool
	Unavailable       []string
}

// Assess turns an observation into an immutable snapshot. It is pure.
func Assess(obs Observation, now time.Time) ProjectSnapshot {
	dep := NoDeployment()
	if obs.Facts.Deployment != nil {
		dep = *obs.Facts.Deployment
	}
	if dep.Status == "" {
		dep.Status = DeployNone
	}
	if dep.Status == DeployError && dep.ErrorCategory == "" {
		dep.ErrorCategory = CategorizeError(dep.ErrorLog)
	}
	facts := obs.Facts
	facts.Deployment = &dep

	snapshot := ProjectSnapshot{
		Project:           obs.Project,
		Commits:           append([]Commit(nil), obs.Commits...),
		KeyFiles:          copyFiles(obs.KeyFiles),
		ReferencedSecrets: sortedUnique(obs.ReferencedSecrets),
		ConfiguredSecrets: sortedUnique(obs.ConfiguredSecrets),
		SecretsUnknown:    obs.SecretsUnknown,
		Deployment:        dep,
		Unavailable:       sortedUnique(obs.Unavailable),
		SnapshotAt:        now.UTC(),
	}
	if obs.Facts.Repo != nil {
		snapshot.Description = obs.Facts.Repo.Description
	}
	if obs.Facts.Screenshot != nil {
		shot := *obs.Facts.Screenshot
		snapshot.Screenshot = &shot
	}

	snapshot.Checks = RunChecks(facts)
	stage := ClassifyStage(dep.Status, snapshot.Checks, snapshot.MissingCriticalSecrets())
	snapshot.Stage = ApplyLaunchConfirmation(stage, obs.Project.Launched)
	referenced := snapshot.ReferencedSecrets
	if snapshot.SecretsUnknown {
		referenced = nil
	}
	snapshot.OperationalBlocker = ClassifyOperationalBlocker(dep, referenced, snapshot.ConfiguredSecrets)
	snapshot.GTMBlocker = ClassifyGTMBlocker(snapshot.Stage, snapshot.Checks)
	snapshot.NotificationKey = Fingerprint(FingerprintOf(snapshot))
	return snapshot
}

func copyFiles(files map[string]string) map[string]string {
	if len(files) == 0 {
		return nil
	}
	out := make(map[string]string, len(files))
	for k, v := range files {
		out[k] = v
	}
	return out
}

func sortedUnique(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
