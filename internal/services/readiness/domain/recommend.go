package domain

import (
	"fmt"
	"strings"
)

// ExpectedOutcome is what a recommendation should achieve once acted on.
type ExpectedOutcome string

const (
	OutcomeDeployGreen ExpectedOutcome = "deploy_green"
	OutcomeEnvVarSet   ExpectedOutcome = "env_var_set"
	OutcomeErrorFixed  ExpectedOutcome = "error_fixed"
	OutcomeGTMReady    ExpectedOutcome = "gtm_ready"
)

// Valid reports whether the outcome is one of the known values.
func (o ExpectedOutcome) Valid() bool {
	switch o {
	case OutcomeDeployGreen, OutcomeEnvVarSet, OutcomeErrorFixed, OutcomeGTMReady:
		return true
	default:
		return false
	}
}

// Recommendation is the single next action suggested to the owner.
// An empty Action means there is nothing to recommend.
type Recommendation struct {
	Action          string          `json:"action,omitempty"`
	ExpectedOutcome ExpectedOutcome `json:"expected_outcome,omitempty"`
}

// IsNone reports whether no action is recommended.
func (r Recommendation) IsNone() bool {
	return strings.TrimSpace(r.Action) == ""
}

// Recommend derives the next action from a snapshot's blockers.
func Recommend(s ProjectSnapshot) Recommendation {
	dep := s.Deployment
	if dep.Status == DeployError && strings.TrimSpace(dep.ErrorLog) != "" {
		return Recommendation{
			Action:          fmt.Sprintf("Fix the %s error in the latest production deployment", dep.ErrorCategory),
			ExpectedOutcome: OutcomeErrorFixed,
		}
	}
	if missing := s.MissingCriticalSecrets(); len(missing) > 0 {
		return Recommendation{
			Action:          "Configure the missing secrets on the deploy host: " + strings.Join(missing, ", "),
			ExpectedOutcome: OutcomeEnvVarSet,
		}
	}
	if dep.Status == DeployError {
		return Recommendation{
			Action:          "Inspect the failing production deployment; the deploy host returned no log",
			ExpectedOutcome: OutcomeErrorFixed,
		}
	}
	if dep.Status == DeployNone {
		return Recommendation{
			Action:          "Create a production deployment",
			ExpectedOutcome: OutcomeDeployGreen,
		}
	}
	if s.GTMBlocker != nil {
		return Recommendation{
			Action:          "Resolve: " + s.GTMBlocker.Issue,
			ExpectedOutcome: OutcomeGTMReady,
		}
	}
	return Recommendation{}
}

// OutcomeHolds evaluates an expected outcome against a later snapshot.
func OutcomeHolds(outcome ExpectedOutcome, s ProjectSnapshot) bool {
	switch outcome {
	case OutcomeDeployGreen, OutcomeErrorFixed:
		return s.Deployment.Status == DeployReady
	case OutcomeEnvVarSet:
		return len(s.MissingCriticalSecrets()) == 0
	case OutcomeGTMReady:
		return s.Stage == StageReadyToLaunch || s.Stage == StagePostLaunch
	default:
		return false
	}
}
