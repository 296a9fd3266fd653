package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime"
	"net/http"
	"strings"
	"time"

	gh "github.com/google/go-github/v72/github"

	apperrors "github.com/louisbranch/shipwatch/internal/platform/errors"
	"github.com/louisbranch/shipwatch/internal/services/readiness/domain"
	"github.com/louisbranch/shipwatch/internal/services/readiness/push"
	"github.com/louisbranch/shipwatch/internal/services/readiness/state"
	"github.com/louisbranch/shipwatch/internal/services/readiness/storage"
)

const (
	// GitHub caps webhook payloads at 25 MB.
	maxWebhookBody        = 25 << 20
	defaultCommitLockTTL  = 5 * time.Minute
	branchRefPrefix       = "refs/heads/"
	deletedBranchSHAChars = "0"
)

// ProjectResolver maps a pushed repository (owner/name) to a project.
type ProjectResolver func(ctx context.Context, repoFullName string) (domain.Project, bool)

// WebhookConfig configures the push intake.
type WebhookConfig struct {
	Service *Service
	Store   storage.KV
	Resolve ProjectResolver
	// Secret enables X-Hub-Signature-256 verification when set.
	Secret       string
	Clock        func() time.Time
	LockTTL      time.Duration
	MaxBodyBytes int64
}

// WebhookHandler turns push deliveries into RecordPush and, for meaningful
// pushes, DecideAndNotify. Redeliveries of a processed commit are ignored.
type WebhookHandler struct {
	service  *Service
	resolve  ProjectResolver
	secret   []byte
	maxBody  int64
	lastPush *state.LastPush
	locker   *state.Locker
	lockTTL  time.Duration
}

// NewWebhookHandler validates cfg.
func NewWebhookHandler(cfg WebhookConfig) (*WebhookHandler, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("service is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Resolve == nil {
		return nil, fmt.Errorf("project resolver is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultCommitLockTTL
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = maxWebhookBody
	}
	return &WebhookHandler{
		service:  cfg.Service,
		resolve:  cfg.Resolve,
		secret:   []byte(strings.TrimSpace(cfg.Secret)),
		maxBody:  cfg.MaxBodyBytes,
		lastPush: state.NewLastPush(cfg.Store, cfg.Clock),
		locker:   state.NewLocker(cfg.Store),
		lockTTL:  cfg.LockTTL,
	}, nil
}

// WebhookResponse is the JSON body returned to the push sender.
type WebhookResponse struct {
	Status   string       `json:"status"`
	Reason   string       `json:"reason,omitempty"`
	Project  string       `json:"project,omitempty"`
	Push     *push.Result `json:"push,omitempty"`
	Decision *Decision    `json:"decision,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// Routes registers the webhook and liveness endpoints.
func (h *WebhookHandler) Routes(mux *http.ServeMux) {
	mux.Handle("POST /webhooks/push", h)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, WebhookResponse{Status: "ok"})
	})
}

// ServeHTTP implements http.Handler.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, WebhookResponse{Status: "error", Error: "method not allowed"})
		return
	}
	if err := checkContentType(r.Header.Get("Content-Type")); err != nil {
		writeError(w, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	body, err := gh.ValidatePayload(r, h.secret)
	if err != nil {
		writeError(w, payloadError(err))
		return
	}
	switch event := strings.TrimSpace(gh.WebHookType(r)); event {
	case "", "push":
	case "ping":
		writeJSON(w, http.StatusOK, WebhookResponse{Status: "pong"})
		return
	default:
		writeJSON(w, http.StatusAccepted, WebhookResponse{Status: "ignored", Reason: "event " + event})
		return
	}

	parsed, err := gh.ParseWebHook("push", body)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodePayloadInvalid, "decode push payload", err))
		return
	}
	event, ok := parsed.(*gh.PushEvent)
	if !ok {
		writeError(w, apperrors.New(apperrors.CodePayloadInvalid, fmt.Sprintf("unexpected payload %T", parsed)))
		return
	}
	status, resp := h.handlePush(r.Context(), event)
	writeJSON(w, status, resp)
}

// checkContentType accepts the two encodings GitHub delivers with.
func checkContentType(header string) error {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return apperrors.Wrap(apperrors.CodePayloadInvalid, "content type", err)
	}
	switch mediaType {
	case "application/json", "application/x-www-form-urlencoded":
		return nil
	default:
		return apperrors.WithMetadata(apperrors.CodePayloadInvalid, "unsupported content type", map[string]string{"content_type": mediaType})
	}
}

// payloadError classifies a ValidatePayload failure. With the content type
// already checked, anything other than a read error is a signature failure.
func payloadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.WrapWithMetadata(apperrors.CodePayloadTooLarge, "read body", map[string]string{"limit": fmt.Sprint(tooLarge.Limit)}, err)
	}
	return apperrors.Wrap(apperrors.CodeSignatureInvalid, "verify signature", err)
}

func (h *WebhookHandler) handlePush(ctx context.Context, event *gh.PushEvent) (int, WebhookResponse) {
	if !strings.HasPrefix(event.GetRef(), branchRefPrefix) {
		return http.StatusAccepted, WebhookResponse{Status: "ignored", Reason: "not a branch push"}
	}
	sha := strings.TrimSpace(event.GetAfter())
	if event.GetDeleted() || sha == "" || strings.Trim(sha, deletedBranchSHAChars) == "" {
		return http.StatusAccepted, WebhookResponse{Status: "ignored", Reason: "branch deleted"}
	}
	repo := event.GetRepo().GetFullName()
	project, ok := h.resolve(ctx, repo)
	if !ok {
		return http.StatusAccepted, WebhookResponse{Status: "ignored", Reason: "unknown repository " + repo}
	}
	resp := WebhookResponse{Project: project.Name}

	processed, err := h.lastPush.Processed(ctx, project.Name, sha)
	if err != nil {
		log.Printf("webhook: read last push project=%s: %v", project.Name, err)
		return errorResponse(resp, apperrors.Wrap(apperrors.CodeStateUnavailable, "read last push", err))
	}
	if processed {
		resp.Status, resp.Reason = "ignored", "already processed"
		return http.StatusOK, resp
	}

	lockKey := state.CommitKey(project.Name, sha)
	lease, held, err := h.locker.Acquire(ctx, lockKey, h.lockTTL)
	if err != nil {
		log.Printf("webhook: acquire lock project=%s sha=%s: %v", project.Name, sha, err)
		return errorResponse(resp, apperrors.Wrap(apperrors.CodeStateUnavailable, "acquire commit lock", err))
	}
	if !held {
		resp.Status, resp.Reason = "ignored", "in progress"
		return http.StatusAccepted, resp
	}
	defer func() {
		if err := h.locker.Release(context.WithoutCancel(ctx), lease); err != nil {
			log.Printf("webhook: release lock project=%s sha=%s: %v", project.Name, sha, err)
		}
	}()

	commits := make([]push.Commit, 0, len(event.Commits))
	for _, c := range event.Commits {
		commits = append(commits, push.Commit{SHA: c.GetID(), Added: c.Added, Removed: c.Removed, Modified: c.Modified})
	}
	result, err := h.service.RecordPush(ctx, project, commits)
	if err != nil {
		return errorResponse(resp, err)
	}
	resp.Push = &result

	if result.Meaningful {
		decision, err := h.service.DecideAndNotify(ctx, project)
		resp.Decision = &decision
		if err != nil {
			log.Printf("webhook: decide project=%s sha=%s: %v", project.Name, sha, err)
			return errorResponse(resp, err)
		}
	}

	if err := h.lastPush.Mark(ctx, project.Name, sha); err != nil {
		log.Printf("webhook: mark last push project=%s sha=%s: %v", project.Name, sha, err)
	}
	resp.Status = "processed"
	return http.StatusOK, resp
}

func errorResponse(resp WebhookResponse, err error) (int, WebhookResponse) {
	resp.Status = "error"
	resp.Error = err.Error()
	return apperrors.CodeOf(err).HTTPStatus(), resp
}

func writeError(w http.ResponseWriter, err error) {
	status, resp := errorResponse(WebhookResponse{}, err)
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("webhook: write response: %v", err)
	}
}
