// Package push decides whether a code push changed anything that matters for
// launch readiness before a webhook-triggered evaluation runs.
package push

import (
	"path"
	"sort"
	"strings"
)

// Commit lists the paths one pushed commit touched.
type Commit struct {
	SHA      string   `json:"sha"`
	Added    []string `json:"added,omitempty"`
	Removed  []string `json:"removed,omitempty"`
	Modified []string `json:"modified,omitempty"`
}

// Profile is the content-analysis view of a project used by the filter.
type Profile struct {
	FilesToDelete []string
	KnownBlockers []string
}

// Result is the filter outcome for a push.
type Result struct {
	Meaningful       bool     `json:"meaningful"`
	DeletedCutFiles  []string `json:"deleted_cut_files,omitempty"`
	ReadmeChanged    bool     `json:"readme_changed"`
	ResolvedBlockers []string `json:"resolved_blockers,omitempty"`
}

// Matcher reports whether a known blocker text refers to a removed path.
type Matcher func(blocker, removedPath string) bool

// Filter evaluates pushes against a project profile. Matchers run in order
// and the first match attributes a blocker to a deletion.
type Filter struct {
	matchers []Matcher
}

// NewFilter builds a filter. With no matchers the default heuristics apply.
func NewFilter(matchers ...Matcher) *Filter {
	if len(matchers) == 0 {
		matchers = DefaultMatchers()
	}
	return &Filter{matchers: append([]Matcher(nil), matchers...)}
}

// DefaultMatchers returns the substring, archive and mock heuristics.
func DefaultMatchers() []Matcher {
	return []Matcher{
		SubstringMatcher,
		KeywordFamilyMatcher(archiveKeywords),
		KeywordFamilyMatcher(mockKeywords),
	}
}

var archiveKeywords = []string{"archive", "archived", "legacy", "deprecated", "old", "backup", "unused"}

var mockKeywords = []string{"mock", "mocks", "fake", "stub", "dummy", "placeholder", "fixture", "lorem"}

// SubstringMatcher matches when either text contains the other, ignoring case.
func SubstringMatcher(blocker, removedPath string) bool {
	b := strings.ToLower(strings.TrimSpace(blocker))
	p := strings.ToLower(normalizePath(removedPath))
	if b == "" || p == "" {
		return false
	}
	return strings.Contains(b, p) || strings.Contains(p, b)
}

// KeywordFamilyMatcher matches when the blocker text names a keyword from
// the family as a word and the removed path contains any keyword of the
// family. Paths are matched by substring so camelCase names such as
// mockData.ts or archivedPosts.tsx count.
func KeywordFamilyMatcher(keywords []string) Matcher {
	family := append([]string(nil), keywords...)
	return func(blocker, removedPath string) bool {
		return mentionsWord(strings.ToLower(blocker), family) &&
			containsAny(strings.ToLower(normalizePath(removedPath)), family)
	}
}

func mentionsWord(text string, keywords []string) bool {
	for _, word := range splitWords(text) {
		for _, keyword := range keywords {
			if word == keyword {
				return true
			}
		}
	}
	return false
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

// Evaluate returns the significance of a push. It never errors: an empty
// profile still lets readme changes through.
func (f *Filter) Evaluate(profile Profile, commits []Commit) Result {
	removed := map[string]bool{}
	touched := map[string]bool{}
	for _, commit := range commits {
		for _, p := range commit.Removed {
			if p = normalizePath(p); p != "" {
				removed[p] = true
				touched[p] = true
			}
		}
		for _, group := range [][]string{commit.Added, commit.Modified} {
			for _, p := range group {
				if p = normalizePath(p); p != "" {
					touched[p] = true
				}
			}
		}
	}

	var result Result
	for _, entry := range profile.FilesToDelete {
		entry = normalizePath(entry)
		if entry == "" {
			continue
		}
		for p := range removed {
			if p == entry || strings.HasSuffix(p, "/"+entry) {
				result.DeletedCutFiles = append(result.DeletedCutFiles, p)
			}
		}
	}
	result.DeletedCutFiles = dedupe(result.DeletedCutFiles)

	for p := range touched {
		if strings.HasPrefix(strings.ToLower(path.Base(p)), "readme") {
			result.ReadmeChanged = true
			break
		}
	}

	for _, blocker := range profile.KnownBlockers {
		if strings.TrimSpace(blocker) == "" {
			continue
		}
		if f.matchesAny(blocker, removed) {
			result.ResolvedBlockers = append(result.ResolvedBlockers, blocker)
		}
	}

	result.Meaningful = len(result.DeletedCutFiles) > 0 || result.ReadmeChanged || len(result.ResolvedBlockers) > 0
	return result
}

func (f *Filter) matchesAny(blocker string, removed map[string]bool) bool {
	paths := make([]string, 0, len(removed))
	for p := range removed {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, match := range f.matchers {
		for _, p := range paths {
			if match(blocker, p) {
				return true
			}
		}
	}
	return false
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return strings.TrimPrefix(p, "/")
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	sort.Strings(values)
	out := values[:1]
	for _, v := range values[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
