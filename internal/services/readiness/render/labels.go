// Package render produces the localized labels carried by readiness
// notifications. Free-form copy is written downstream; this package only
// names stages, deploy states and the one-line headline.
package render

import (
	"strings"

	"github.com/louisbranch/shipwatch/internal/services/readiness/domain"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const defaultUnknownStage = "unknown stage"

// Localizer is the minimal message-printer contract required by the renderer.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

// NewLocalizer returns a printer for tag, falling back to English.
func NewLocalizer(tag string) Localizer {
	lang, err := language.Parse(strings.TrimSpace(tag))
	if err != nil {
		lang = language.English
	}
	return message.NewPrinter(lang)
}

// Input is what a headline is derived from.
type Input struct {
	Project       string
	Stage         domain.GTMStage
	PreviousStage domain.GTMStage
	DeployStatus  domain.DeployStatus
	Blocker       *domain.Shortcoming
	Verified      bool
}

// Output holds the rendered labels.
type Output struct {
	Headline    string
	StageLabel  string
	DeployLabel string
}

// Render returns the labels for one notification.
func Render(loc Localizer, in Input) Output {
	out := Output{
		StageLabel:  StageLabel(loc, in.Stage),
		DeployLabel: DeployLabel(loc, in.DeployStatus),
	}
	project := strings.TrimSpace(in.Project)

	switch {
	case in.Verified:
		out.Headline = localize(loc, "readiness.headline.verified", project)
	case in.Blocker != nil && in.Blocker.Severity == domain.SeverityCritical:
		out.Headline = localize(loc, "readiness.headline.blocked", project, in.Blocker.Issue)
	case in.PreviousStage != "" && in.PreviousStage != in.Stage:
		out.Headline = localize(loc, "readiness.headline.moved", project, StageLabel(loc, in.PreviousStage), out.StageLabel)
	default:
		out.Headline = localize(loc, "readiness.headline.status", project, out.StageLabel)
	}
	return out
}

// StageLabel names a stage.
func StageLabel(loc Localizer, stage domain.GTMStage) string {
	switch stage {
	case domain.StageBuilding, domain.StagePackaging, domain.StageReadyToLaunch, domain.StagePostLaunch:
		return localizeWithFallback(loc, "readiness.stage."+string(stage), strings.ReplaceAll(string(stage), "_", " "))
	default:
		return localizeWithFallback(loc, "readiness.stage.unknown", defaultUnknownStage)
	}
}

// DeployLabel names a deploy status.
func DeployLabel(loc Localizer, status domain.DeployStatus) string {
	if status == "" {
		status = domain.DeployNone
	}
	return localizeWithFallback(loc, "readiness.deploy."+string(status), string(status))
}

func localize(loc Localizer, key message.Reference, args ...any) string {
	if loc == nil {
		if asString, ok := key.(string); ok {
			return asString
		}
		return ""
	}
	return loc.Sprintf(key, args...)
}

func localizeWithFallback(loc Localizer, key string, fallback string) string {
	value := strings.TrimSpace(localize(loc, key))
	if value == "" || value == key {
		return fallback
	}
	return value
}
