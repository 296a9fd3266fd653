package domain

import "time"

// EvidenceKind tags which payload an Evidence carries.
type EvidenceKind string

const (
	EvidenceHTTPCheck   EvidenceKind = "http_check"
	EvidenceFileMissing EvidenceKind = "file_missing"
	EvidenceEnvDiff     EvidenceKind = "env_diff"
	EvidenceDeployLog   EvidenceKind = "deploy_log"
	EvidenceScreenshot  EvidenceKind = "screenshot"
	EvidenceCodeRef     EvidenceKind = "code_ref"
	EvidenceUserReply   EvidenceKind = "user_reply"
)

// Evidence backs a failed check or shortcoming with an observed fact.
// Exactly one payload matching Kind is set.
type Evidence struct {
	Kind        EvidenceKind         `json:"kind"`
	HTTPCheck   *HTTPCheckEvidence   `json:"http_check,omitempty"`
	FileMissing *FileMissingEvidence `json:"file_missing,omitempty"`
	EnvDiff     *EnvDiffEvidence     `json:"env_diff,omitempty"`
	DeployLog   *DeployLogEvidence   `json:"deploy_log,omitempty"`
	Screenshot  *ScreenshotEvidence  `json:"screenshot,omitempty"`
	CodeRef     *CodeRefEvidence     `json:"code_ref,omitempty"`
	UserReply   *UserReplyEvidence   `json:"user_reply,omitempty"`
}

type HTTPCheckEvidence struct {
	URL    string `json:"url"`
	Status int    `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

type FileMissingEvidence struct {
	Path     string `json:"path"`
	Expected string `json:"expected"`
}

type EnvDiffEvidence struct {
	Missing    []string `json:"missing"`
	Configured []string `json:"configured"`
	Source     string   `json:"source"`
}

type DeployLogEvidence struct {
	DeploymentID string `json:"deployment_id"`
	Excerpt      string `json:"excerpt"`
}

type ScreenshotEvidence struct {
	URL        string    `json:"url"`
	CapturedAt time.Time `json:"captured_at"`
}

type CodeRefEvidence struct {
	Path    string `json:"path"`
	Lines   string `json:"lines,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
}

type UserReplyEvidence struct {
	Excerpt string `json:"excerpt"`
}

func HTTPCheck(url string, status int, errText string) Evidence {
	return Evidence{Kind: EvidenceHTTPCheck, HTTPCheck: &HTTPCheckEvidence{URL: url, Status: status, Error: errText}}
}

func FileMissing(path, expected string) Evidence {
	return Evidence{Kind: EvidenceFileMissing, FileMissing: &FileMissingEvidence{Path: path, Expected: expected}}
}

func EnvDiff(missing, configured []string, source string) Evidence {
	return Evidence{Kind: EvidenceEnvDiff, EnvDiff: &EnvDiffEvidence{
		Missing:    append([]string(nil), missing...),
		Configured: append([]string(nil), configured...),
		Source:     source,
	}}
}

func DeployLog(deploymentID, excerpt string) Evidence {
	return Evidence{Kind: EvidenceDeployLog, DeployLog: &DeployLogEvidence{DeploymentID: deploymentID, Excerpt: excerpt}}
}

func ScreenshotRef(url string, capturedAt time.Time) Evidence {
	return Evidence{Kind: EvidenceScreenshot, Screenshot: &ScreenshotEvidence{URL: url, CapturedAt: capturedAt}}
}

func CodeRef(path, lines, excerpt string) Evidence {
	return Evidence{Kind: EvidenceCodeRef, CodeRef: &CodeRefEvidence{Path: path, Lines: lines, Excerpt: excerpt}}
}

func UserReply(excerpt string) Evidence {
	return Evidence{Kind: EvidenceUserReply, UserReply: &UserReplyEvidence{Excerpt: excerpt}}
}
