package gather

import (
	"path"
	"regexp"
	"sort"
	"strings"
)

var envAssignmentPattern = regexp.MustCompile(`(?m)^\s*(?:export\s+)?([A-Z][A-Z0-9_]*)\s*=`)

// secretReferencePatterns find env reads in JS, TS, Go and Python sources.
var secretReferencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`process\.env\.([A-Z][A-Z0-9_]*)`),
	regexp.MustCompile(`process\.env\[\s*["']([A-Z][A-Z0-9_]*)["']\s*\]`),
	regexp.MustCompile(`import\.meta\.env\.([A-Z][A-Z0-9_]*)`),
	regexp.MustCompile(`os\.(?:Getenv|LookupEnv)\(\s*"([A-Z][A-Z0-9_]*)"\s*\)`),
	regexp.MustCompile(`os\.environ(?:\.get)?[\[(]\s*["']([A-Z][A-Z0-9_]*)["']`),
	regexp.MustCompile(`os\.getenv\(\s*["']([A-Z][A-Z0-9_]*)["']`),
}

// platformProvided names are injected by the runtime and never configured.
var platformProvided = map[string]bool{
	"NODE_ENV":              true,
	"CI":                    true,
	"PORT":                  true,
	"VERCEL":                true,
	"VERCEL_ENV":            true,
	"VERCEL_URL":            true,
	"VERCEL_GIT_COMMIT_SHA": true,
	"PATH":                  true,
	"HOME":                  true,
	"HOSTNAME":              true,
}

// ReferencedSecrets returns the sorted env variable names referenced by the
// key files: every assignment in env templates plus env reads in sources.
func ReferencedSecrets(files map[string]string) []string {
	seen := map[string]bool{}
	add := func(name string) {
		if name != "" && !platformProvided[name] {
			seen[name] = true
		}
	}
	for filePath, content := range files {
		if envExampleNames[strings.ToLower(path.Base(filePath))] {
			for _, match := range envAssignmentPattern.FindAllStringSubmatch(content, -1) {
				add(match[1])
			}
			continue
		}
		for _, pattern := range secretReferencePatterns {
			for _, match := range pattern.FindAllStringSubmatch(content, -1) {
				add(match[1])
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
