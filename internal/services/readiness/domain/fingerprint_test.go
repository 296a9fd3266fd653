package domain

import (
	"testing"
	"time"
)

func TestFingerprintIgnoresMissingEnvOrder(t *testing.T) {
	t.Parallel()

	base := FingerprintInput{
		DeploymentID:    "dpl-1",
		LatestCommitSHA: "abc123",
		DeployStatus:    DeployError,
		MissingEnvVars:  []string{"DATABASE_URL", "API_TOKEN", "SITE"},
		Stage:           StageBuilding,
	}
	shuffled := base
	shuffled.MissingEnvVars = []string{"SITE", "DATABASE_URL", "API_TOKEN", "SITE"}

	if Fingerprint(base) != Fingerprint(shuffled) {
		t.Fatal("expected identical key for the same missing env set")
	}
}

func TestFingerprintChangesWithEveryField(t *testing.T) {
	t.Parallel()

	base := FingerprintInput{
		DeploymentID:    "dpl-1",
		LatestCommitSHA: "abc123",
		DeployStatus:    DeployReady,
		MissingEnvVars:  []string{"SITE"},
		Stage:           StagePackaging,
	}
	key := Fingerprint(base)

	variants := map[string]FingerprintInput{}
	v := base
	v.DeploymentID = "dpl-2"
	variants["deployment"] = v
	v = base
	v.LatestCommitSHA = "def456"
	variants["commit"] = v
	v = base
	v.DeployStatus = DeployBuilding
	variants["status"] = v
	v = base
	v.MissingEnvVars = nil
	variants["missing"] = v
	v = base
	v.Stage = StageReadyToLaunch
	variants["stage"] = v

	for name, variant := range variants {
		if Fingerprint(variant) == key {
			t.Fatalf("changing %s did not change the key", name)
		}
	}
}

func TestFingerprintFieldsDoNotBleed(t *testing.T) {
	t.Parallel()

	a := Fingerprint(FingerprintInput{DeploymentID: "ab", LatestCommitSHA: "c"})
	b := Fingerprint(FingerprintInput{DeploymentID: "a", LatestCommitSHA: "bc"})
	if a == b {
		t.Fatal("field boundaries must be part of the key")
	}
}

func scenarioNow() time.Time {
	return time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
}

func TestAssessFailedDeployWithMissingConfig(t *testing.T) {
	t.Parallel()

	obs := Observation{
		Project: Project{Name: "notes", RepoOwner: "me", RepoName: "notes"},
		Facts: Facts{
			Deployment: &Deployment{ID: "dpl-9", Status: DeployError, ErrorLog: "Error: DATABASE_URL is not defined"},
		},
		Commits:           []Commit{{SHA: "c1"}},
		ReferencedSecrets: []string{"DATABASE_URL"},
	}
	snapshot := Assess(obs, scenarioNow())

	if snapshot.Deployment.ErrorCategory != ErrorCategoryConfig {
		t.Fatalf("error category = %q, want config", snapshot.Deployment.ErrorCategory)
	}
	if snapshot.Stage != StageBuilding {
		t.Fatalf("stage = %q, want building", snapshot.Stage)
	}
	if snapshot.OperationalBlocker == nil || snapshot.OperationalBlocker.Severity != SeverityCritical {
		t.Fatalf("operational blocker = %+v, want critical", snapshot.OperationalBlocker)
	}
	if snapshot.GTMBlocker != nil {
		t.Fatalf("gtm blocker = %+v, want nil while building", snapshot.GTMBlocker)
	}
	if snapshot.NotificationKey == "" {
		t.Fatal("expected notification key")
	}
	if again := Assess(obs, scenarioNow().Add(time.Minute)); again.NotificationKey != snapshot.NotificationKey {
		t.Fatal("re-assessing unchanged observation must keep the key")
	}
}

func TestAssessReadyProjectAfterSecretFixed(t *testing.T) {
	t.Parallel()

	readme := "# Notes\n\nSign up at notes.app\n\n![demo](docs/demo.gif)"
	failing := Assess(Observation{
		Project:           Project{Name: "notes"},
		Facts:             Facts{Deployment: &Deployment{ID: "dpl-9", Status: DeployError, ErrorLog: "Error: DATABASE_URL is not defined"}},
		Commits:           []Commit{{SHA: "c1"}},
		ReferencedSecrets: []string{"DATABASE_URL"},
	}, scenarioNow())

	fixed := Assess(Observation{
		Project: Project{Name: "notes"},
		Facts: Facts{
			Deployment: &Deployment{ID: "dpl-10", Status: DeployReady, URL: "https://notes.app"},
			Screenshot: &Screenshot{PageURL: "https://notes.app", ImageURL: "https://shots/notes.png"},
			Readme:     &readme,
			Tree:       []string{"docs/demo.gif"},
		},
		Commits:           []Commit{{SHA: "c2"}},
		ReferencedSecrets: []string{"DATABASE_URL"},
		ConfiguredSecrets: []string{"DATABASE_URL"},
	}, scenarioNow())

	if fixed.Stage != StageReadyToLaunch {
		t.Fatalf("stage = %q, want ready_to_launch", fixed.Stage)
	}
	if fixed.NotificationKey == failing.NotificationKey {
		t.Fatal("expected key to change")
	}
	if fixed.OperationalBlocker != nil || fixed.GTMBlocker != nil {
		t.Fatalf("blockers = %+v / %+v, want none", fixed.OperationalBlocker, fixed.GTMBlocker)
	}
	if !OutcomeHolds(OutcomeErrorFixed, fixed) {
		t.Fatal("expected error_fixed to hold")
	}
	if OutcomeHolds(OutcomeErrorFixed, failing) {
		t.Fatal("error_fixed must not hold while the deploy fails")
	}
}

func TestAssessDefaultsToNoDeployment(t *testing.T) {
	t.Parallel()

	snapshot := Assess(Observation{Project: Project{Name: "x"}}, scenarioNow())
	if snapshot.Deployment.Status != DeployNone {
		t.Fatalf("status = %q, want none", snapshot.Deployment.Status)
	}
	if snapshot.Stage != StageBuilding {
		t.Fatalf("stage = %q, want building", snapshot.Stage)
	}
	rec := Recommend(snapshot)
	if rec.ExpectedOutcome != OutcomeDeployGreen {
		t.Fatalf("recommendation = %+v, want deploy_green", rec)
	}
}

func TestAssessUnknownSecretsReportNothingMissing(t *testing.T) {
	t.Parallel()

	base := Observation{
		Project:           Project{Name: "notes"},
		Facts:             Facts{Deployment: &Deployment{ID: "dpl-10", Status: DeployReady, URL: "https://notes.app"}},
		Commits:           []Commit{{SHA: "c2"}},
		ReferencedSecrets: []string{"DATABASE_URL", "OPENAI_API_KEY"},
	}
	unknown := base
	unknown.SecretsUnknown = true
	unknown.Unavailable = []string{"configured secrets"}
	configured := base
	configured.ConfiguredSecrets = []string{"DATABASE_URL", "OPENAI_API_KEY"}

	got := Assess(unknown, scenarioNow())
	if got.OperationalBlocker != nil {
		t.Fatalf("operational blocker = %+v, want none while secrets are unknown", got.OperationalBlocker)
	}
	if missing := got.MissingSecrets(); missing != nil {
		t.Fatalf("missing = %v, want none", missing)
	}
	if len(got.Unavailable) != 1 || got.Unavailable[0] != "configured secrets" {
		t.Fatalf("unavailable = %v", got.Unavailable)
	}
	if want := Assess(configured, scenarioNow()); got.Stage != want.Stage {
		t.Fatalf("stage = %q, want %q", got.Stage, want.Stage)
	}
}
