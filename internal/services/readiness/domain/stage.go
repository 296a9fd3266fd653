package domain

// GTMStage is a project's position between "not working" and "launched".
// Stages are ordered but a project may regress after a new failure.
type GTMStage string

const (
	StageBuilding      GTMStage = "building"
	StagePackaging     GTMStage = "packaging"
	StageReadyToLaunch GTMStage = "ready_to_launch"
	StagePostLaunch    GTMStage = "post_launch"
)

// Rank orders stages from building (0) to post_launch (3); unknown is -1.
func (s GTMStage) Rank() int {
	switch s {
	case StageBuilding:
		return 0
	case StagePackaging:
		return 1
	case StageReadyToLaunch:
		return 2
	case StagePostLaunch:
		return 3
	default:
		return -1
	}
}

// ClassifyStage maps deploy status and readiness checks to a stage.
//
// It is total and referentially transparent: the notification key embeds the
// result, so identical inputs must always produce the identical stage. Any
// status other than ready (including queued) is building. post_launch is
// never derived here; it comes from owner confirmation.
func ClassifyStage(status DeployStatus, checks CheckSet, missingCriticalSecrets []string) GTMStage {
	if status != DeployReady {
		return StageBuilding
	}
	if len(missingCriticalSecrets) > 0 {
		return StageBuilding
	}
	if checks.Passed(CheckDeployGreen) &&
		checks.Passed(CheckURLLoads) &&
		checks.Passed(CheckHasReadme) &&
		checks.Passed(CheckHasDemoAsset) {
		return StageReadyToLaunch
	}
	return StagePackaging
}

// ApplyLaunchConfirmation promotes a derived stage to post_launch when the
// owner has confirmed the launch, unless the project is building again.
func ApplyLaunchConfirmation(stage GTMStage, launched bool) GTMStage {
	if !launched || stage == StageBuilding {
		return stage
	}
	return StagePostLaunch
}
