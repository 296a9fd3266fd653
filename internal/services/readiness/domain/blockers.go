package domain

import (
	"fmt"
	"strings"
)

type categoryTerms struct {
	category ErrorCategory
	terms    []string
}

// errorCategoryTerms is checked in priority order; the first match wins.
var errorCategoryTerms = []categoryTerms{
	{ErrorCategoryAuth, []string{"unauthorized", "unauthenticated", "forbidden", "401", "403", "authentication", "invalid token", "invalid api key", "permission denied", "access denied"}},
	{ErrorCategoryConfig, []string{"is not defined", "not defined", "is not set", "missing", "environment variable", "env var", "configuration"}},
	{ErrorCategoryRuntime, []string{"crash", "exception", "runtime", "timed out", "timeout", "out of memory", "segmentation fault", "panic", "unhandled", "econnrefused"}},
	{ErrorCategoryBuild, []string{"build failed", "build error", "compile", "compilation", "syntax error", "module not found", "cannot find module", "npm err", "exited with"}},
}

// CategorizeError classifies a deployment error log.
func CategorizeError(log string) ErrorCategory {
	category, _ := categorize(log)
	return category
}

func categorize(log string) (ErrorCategory, string) {
	lower := strings.ToLower(log)
	if strings.TrimSpace(lower) == "" {
		return ErrorCategoryUnknown, ""
	}
	for _, group := range errorCategoryTerms {
		for _, term := range group.terms {
			if !strings.Contains(lower, term) {
				continue
			}
			for _, line := range strings.Split(log, "\n") {
				if strings.Contains(strings.ToLower(line), term) {
					return group.category, Excerpt(line)
				}
			}
			return group.category, Excerpt(log)
		}
	}
	return ErrorCategoryUnknown, Excerpt(log)
}

// ClassifyOperationalBlocker returns at most one operational blocker; the
// first matching rule wins.
func ClassifyOperationalBlocker(dep Deployment, referenced, configured []string) *Shortcoming {
	if dep.Status == DeployError && strings.TrimSpace(dep.ErrorLog) != "" {
		category, line := categorize(dep.ErrorLog)
		return &Shortcoming{
			Issue:    fmt.Sprintf("production deployment failed (%s error)", category),
			Severity: SeverityCritical,
			Evidence: []Evidence{DeployLog(dep.ID, fmt.Sprintf("[%s] %s", category, line))},
			Impact:   "the live site is not serving the latest code",
		}
	}

	missingCritical := criticalOnly(missingSecrets(referenced, configured))
	if len(missingCritical) > 0 {
		return &Shortcoming{
			Issue:    fmt.Sprintf("critical secrets referenced in code are not configured: %s", strings.Join(missingCritical, ", ")),
			Severity: SeverityCritical,
			Evidence: []Evidence{EnvDiff(missingCritical, configured, "deploy host environment")},
			Impact:   "features depending on these secrets fail at runtime",
		}
	}

	if dep.Status == DeployBuilding {
		return &Shortcoming{
			Issue:    "a production deployment is in progress",
			Severity: SeverityMinor,
			Evidence: []Evidence{DeployLog(dep.ID, "deployment status: building")},
			Impact:   "results may change once the build finishes",
		}
	}
	return nil
}

// ClassifyGTMBlocker returns the first unmet go-to-market check. It is
// suppressed entirely while the project is building.
func ClassifyGTMBlocker(stage GTMStage, checks CheckSet) *Shortcoming {
	if stage == StageBuilding {
		return nil
	}
	severity := SeverityMinor
	if stage == StagePackaging {
		severity = SeverityMajor
	}

	switch {
	case !checks.Passed(CheckHasReadme):
		return &Shortcoming{
			Issue:    "the repository has no readme",
			Severity: severity,
			Evidence: evidenceOrDefault(checks.Evidence(CheckHasReadme), FileMissing("README.md", "project readme")),
			Impact:   "visitors cannot tell what the project does",
		}
	case !checks.Passed(CheckHasDemoAsset):
		return &Shortcoming{
			Issue:    "there is no demo asset",
			Severity: severity,
			Evidence: evidenceOrDefault(checks.Evidence(CheckHasDemoAsset), FileMissing("demo asset", "gif, video or screenshot of the product")),
			Impact:   "launch posts have nothing to show",
		}
	case !checks.Passed(CheckHasClearCTA):
		return &Shortcoming{
			Issue:    "the readme has no clear call to action",
			Severity: severity,
			Evidence: evidenceOrDefault(checks.Evidence(CheckHasClearCTA), CodeRef("README.md", "", "")),
			Impact:   "interested visitors have no next step",
		}
	}
	return nil
}

func evidenceOrDefault(evidence []Evidence, fallback Evidence) []Evidence {
	if len(evidence) > 0 {
		return append([]Evidence(nil), evidence...)
	}
	return []Evidence{fallback}
}
