package domain

import "testing"

func TestRecommend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		snapshot ProjectSnapshot
		want     ExpectedOutcome
	}{
		{
			name:     "deploy error with log",
			snapshot: ProjectSnapshot{Deployment: Deployment{Status: DeployError, ErrorLog: "boom", ErrorCategory: ErrorCategoryUnknown}},
			want:     OutcomeErrorFixed,
		},
		{
			name: "missing critical secret",
			snapshot: ProjectSnapshot{
				Deployment:        Deployment{Status: DeployReady},
				ReferencedSecrets: []string{"API_TOKEN"},
			},
			want: OutcomeEnvVarSet,
		},
		{
			name:     "no deployment",
			snapshot: ProjectSnapshot{Deployment: Deployment{Status: DeployNone}},
			want:     OutcomeDeployGreen,
		},
		{
			name: "gtm blocker",
			snapshot: ProjectSnapshot{
				Deployment: Deployment{Status: DeployReady},
				GTMBlocker: &Shortcoming{Issue: "there is no demo asset", Severity: SeverityMajor},
			},
			want: OutcomeGTMReady,
		},
	}
	for _, tc := range tests {
		got := Recommend(tc.snapshot)
		if got.IsNone() || got.ExpectedOutcome != tc.want {
			t.Fatalf("%s: recommendation = %+v, want %q", tc.name, got, tc.want)
		}
	}

	quiet := Recommend(ProjectSnapshot{Deployment: Deployment{Status: DeployBuilding}})
	if !quiet.IsNone() {
		t.Fatalf("recommendation = %+v, want none while building", quiet)
	}
}

func TestOutcomeHolds(t *testing.T) {
	t.Parallel()

	ready := ProjectSnapshot{Deployment: Deployment{Status: DeployReady}, Stage: StagePackaging}
	if !OutcomeHolds(OutcomeDeployGreen, ready) {
		t.Fatal("deploy_green should hold for ready deploy")
	}
	if OutcomeHolds(OutcomeGTMReady, ready) {
		t.Fatal("gtm_ready should not hold while packaging")
	}
	ready.Stage = StagePostLaunch
	if !OutcomeHolds(OutcomeGTMReady, ready) {
		t.Fatal("gtm_ready should hold after launch")
	}
	missing := ProjectSnapshot{ReferencedSecrets: []string{"DATABASE_URL"}}
	if OutcomeHolds(OutcomeEnvVarSet, missing) {
		t.Fatal("env_var_set should not hold with a missing secret")
	}
	if OutcomeHolds(ExpectedOutcome("other"), ready) {
		t.Fatal("unknown outcome should never hold")
	}
}
