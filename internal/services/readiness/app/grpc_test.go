package app

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	apperrors "github.com/louisbranch/shipwatch/internal/platform/errors"
	"github.com/louisbranch/shipwatch/internal/services/readiness/api"
	"github.com/louisbranch/shipwatch/internal/services/readiness/domain"
	"github.com/louisbranch/shipwatch/internal/services/readiness/push"
)

func newRemote(t *testing.T, h *harness) *Remote {
	t.Helper()
	readinessAPI, err := NewReadinessAPI(h.service, func(_ context.Context, name string) (domain.Project, bool) {
		if name == "notes" {
			return notesProject(), true
		}
		return domain.Project{}, false
	})
	if err != nil {
		t.Fatalf("new readiness api: %v", err)
	}

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	api.RegisterReadinessServer(server, readinessAPI)
	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	remote := &Remote{conn: conn, client: api.NewClient(conn)}
	t.Cleanup(func() { _ = remote.Close() })
	return remote
}

func TestRemoteDecideAndNotify(t *testing.T) {
	h := newHarness(t)
	h.gatherer.set(failingDeploy())
	remote := newRemote(t, h)
	ctx := context.Background()

	decision, err := remote.DecideAndNotify(ctx, "notes")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if !decision.Notified || decision.Stage != domain.StageBuilding || decision.NotificationKey == "" {
		t.Fatalf("decision = %+v", decision)
	}

	decision, err = remote.DecideAndNotify(ctx, "notes")
	if err != nil || decision.Reason != SkipUnchanged {
		t.Fatalf("second decision = %+v, %v; want unchanged", decision, err)
	}
	if len(h.notifier.sent()) != 1 {
		t.Fatalf("sent = %d, want 1", len(h.notifier.sent()))
	}
}

func TestRemoteEvaluateAndRecordPush(t *testing.T) {
	h := newHarness(t)
	h.gatherer.set(failingDeploy())
	remote := newRemote(t, h)
	ctx := context.Background()

	snapshot, err := remote.Evaluate(ctx, "notes")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if snapshot.Stage != domain.StageBuilding || snapshot.Deployment.Status != domain.DeployError {
		t.Fatalf("snapshot = %+v", snapshot)
	}

	result, err := remote.RecordPush(ctx, "notes", []push.Commit{{SHA: "c9", Modified: []string{"README.md"}}})
	if err != nil {
		t.Fatalf("record push: %v", err)
	}
	if !result.Meaningful || !result.ReadmeChanged {
		t.Fatalf("result = %+v, want readme change", result)
	}
}

func TestRemoteCarriesErrorCodes(t *testing.T) {
	h := newHarness(t)
	remote := newRemote(t, h)
	ctx := context.Background()

	if _, err := remote.Evaluate(ctx, "ghost"); !apperrors.HasCode(err, apperrors.CodeProjectUnknown) {
		t.Fatalf("evaluate ghost = %v, want project unknown", err)
	}
	if _, err := remote.RecordPush(ctx, " ", nil); !apperrors.HasCode(err, apperrors.CodePayloadInvalid) {
		t.Fatalf("push without project = %v, want payload invalid", err)
	}
}
