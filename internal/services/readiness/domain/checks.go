package domain

import (
	"path"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// CheckName identifies one deterministic readiness check.
type CheckName string

const (
	CheckDeployGreen       CheckName = "deploy_green"
	CheckURLLoads          CheckName = "url_loads"
	CheckHasClearCTA       CheckName = "has_clear_cta"
	CheckMobileUsable      CheckName = "mobile_usable"
	CheckHasLandingContent CheckName = "has_landing_content"
	CheckHasReadme         CheckName = "has_readme"
	CheckHasDescription    CheckName = "has_description"
	CheckHasDemoAsset      CheckName = "has_demo_asset"
)

// AllChecks lists every check in reporting order.
var AllChecks = []CheckName{
	CheckDeployGreen,
	CheckURLLoads,
	CheckHasClearCTA,
	CheckMobileUsable,
	CheckHasLandingContent,
	CheckHasReadme,
	CheckHasDescription,
	CheckHasDemoAsset,
}

// minLandingContentBytes is the trimmed size below which a landing entry file
// is treated as a stub.
const minLandingContentBytes = 200

const excerptLimit = 160

// ctaPattern is the fixed action-verb vocabulary for hasClearCTA.
var ctaPattern = regexp.MustCompile(`(?i)\b(get started|sign up|signup|sign in|try it|try|start|join|download|install|subscribe|buy|book a|register|request access|contact us|waitlist)\b`)

var readmeImagePattern = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)|<img\s|<video\s`)

var videoExts = map[string]bool{".gif": true, ".mp4": true, ".webm": true, ".mov": true}

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".webp": true, ".gif": true, ".svg": true}

var demoPathHints = []string{"demo", "screenshot", "preview", "screencast"}

// Facts are the raw inputs gathered for one project. A nil pointer or nil
// slice means the fact is not known yet, so checks depending on it are not
// emitted. Empty values mean the fact is known to be absent.
type Facts struct {
	Repo        *RepoInfo
	Readme      *string
	ReadmePath  string
	Tree        []string
	LandingPath string
	Landing     *string
	Deployment  *Deployment
	Screenshot  *Screenshot
}

// CheckResult is one check outcome with evidence when it failed.
type CheckResult struct {
	Passed   bool       `json:"passed"`
	Evidence []Evidence `json:"evidence,omitempty"`
}

// CheckSet holds the results of the checks that could be computed.
type CheckSet map[CheckName]CheckResult

// Passed reports the check outcome; unknown checks are treated as failing.
func (c CheckSet) Passed(name CheckName) bool {
	return c[name].Passed
}

// Evidence returns the evidence recorded for a check.
func (c CheckSet) Evidence(name CheckName) []Evidence {
	return c[name].Evidence
}

// Merge returns a new set where checks present in later replace this set's.
func (c CheckSet) Merge(later CheckSet) CheckSet {
	merged := make(CheckSet, len(c)+len(later))
	for name, result := range c {
		merged[name] = result
	}
	for name, result := range later {
		merged[name] = result
	}
	return merged
}

// Failed lists failing check names in reporting order.
func (c CheckSet) Failed() []CheckName {
	var failed []CheckName
	for _, name := range AllChecks {
		if result, ok := c[name]; ok && !result.Passed {
			failed = append(failed, name)
		}
	}
	return failed
}

// RunChecks computes every check whose inputs are present in facts.
// It is pure and may be called again as more facts arrive; combine the
// results with Merge so the later call wins.
func RunChecks(facts Facts) CheckSet {
	checks := CheckSet{}

	if dep := facts.Deployment; dep != nil {
		green := dep.Status == DeployReady
		result := CheckResult{Passed: green}
		if !green {
			excerpt := "deployment status: " + string(dep.Status)
			if log := strings.TrimSpace(dep.ErrorLog); log != "" {
				excerpt = Excerpt(log)
			}
			result.Evidence = []Evidence{DeployLog(dep.ID, excerpt)}
		}
		checks[CheckDeployGreen] = result
	}

	if shot := facts.Screenshot; shot != nil {
		loads := strings.TrimSpace(shot.ImageURL) != ""
		result := CheckResult{Passed: loads}
		if !loads {
			errText := strings.TrimSpace(shot.Error)
			if errText == "" {
				errText = "no screenshot captured"
			}
			result.Evidence = []Evidence{HTTPCheck(shot.PageURL, 0, errText)}
		}
		checks[CheckURLLoads] = result
		// mobileUsable is an explicit alias of urlLoads until a real
		// mobile-viewport check exists.
		checks[CheckMobileUsable] = result
	}

	if facts.Readme != nil {
		readme := strings.TrimSpace(*facts.Readme)
		readmePath := facts.ReadmePath
		if readmePath == "" {
			readmePath = "README.md"
		}
		hasReadme := readme != ""
		readmeResult := CheckResult{Passed: hasReadme}
		if !hasReadme {
			readmeResult.Evidence = []Evidence{FileMissing(readmePath, "project readme")}
		}
		checks[CheckHasReadme] = readmeResult

		ctaResult := CheckResult{Passed: hasReadme && ctaPattern.MatchString(readme)}
		switch {
		case !hasReadme:
			ctaResult.Evidence = []Evidence{FileMissing(readmePath, "readme with a call to action")}
		case !ctaResult.Passed:
			ctaResult.Evidence = []Evidence{CodeRef(readmePath, "1", Excerpt(readme))}
		}
		checks[CheckHasClearCTA] = ctaResult
	}

	if facts.Repo != nil {
		has := strings.TrimSpace(facts.Repo.Description) != ""
		result := CheckResult{Passed: has}
		if !has {
			result.Evidence = []Evidence{FileMissing("repository description", "one-line repository description")}
		}
		checks[CheckHasDescription] = result
	}

	if facts.Tree != nil || facts.Readme != nil {
		has := hasDemoAsset(facts.Tree)
		if !has && facts.Readme != nil {
			has = readmeImagePattern.MatchString(*facts.Readme)
		}
		result := CheckResult{Passed: has}
		if !has {
			result.Evidence = []Evidence{FileMissing("demo asset", "gif, video or screenshot of the product")}
		}
		checks[CheckHasDemoAsset] = result
	}

	if facts.Landing != nil || facts.Tree != nil {
		content := ""
		if facts.Landing != nil {
			content = strings.TrimSpace(*facts.Landing)
		}
		has := facts.LandingPath != "" && len(content) >= minLandingContentBytes
		result := CheckResult{Passed: has}
		switch {
		case facts.LandingPath == "":
			result.Evidence = []Evidence{FileMissing("index page", "landing page entry file")}
		case !has:
			result.Evidence = []Evidence{CodeRef(facts.LandingPath, "", Excerpt(content))}
		}
		checks[CheckHasLandingContent] = result
	}

	return checks
}

func hasDemoAsset(tree []string) bool {
	for _, p := range tree {
		lower := strings.ToLower(p)
		ext := path.Ext(lower)
		if videoExts[ext] {
			return true
		}
		if !imageExts[ext] {
			continue
		}
		for _, hint := range demoPathHints {
			if strings.Contains(lower, hint) {
				return true
			}
		}
	}
	return false
}

// Excerpt returns the first non-empty line of text, truncated for evidence.
func Excerpt(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) > excerptLimit {
			return string([]rune(line)[:excerptLimit]) + "…"
		}
		return line
	}
	return ""
}

// criticalSecretMarkers flags secret names whose absence breaks a deploy.
var criticalSecretMarkers = []string{"API_KEY", "SECRET", "TOKEN", "DATABASE"}

// IsCriticalSecret reports whether a secret name matches a critical marker.
func IsCriticalSecret(name string) bool {
	upper := strings.ToUpper(name)
	for _, marker := range criticalSecretMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

func missingSecrets(referenced, configured []string) []string {
	have := make(map[string]bool, len(configured))
	for _, name := range configured {
		have[strings.TrimSpace(name)] = true
	}
	seen := map[string]bool{}
	var missing []string
	for _, name := range referenced {
		name = strings.TrimSpace(name)
		if name == "" || have[name] || seen[name] {
			continue
		}
		seen[name] = true
		missing = append(missing, name)
	}
	sort.Strings(missing)
	return missing
}

func criticalOnly(names []string) []string {
	var critical []string
	for _, name := range names {
		if IsCriticalSecret(name) {
			critical = append(critical, name)
		}
	}
	return critical
}
