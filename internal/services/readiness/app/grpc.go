package app

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	apperrors "github.com/louisbranch/shipwatch/internal/platform/errors"
	"github.com/louisbranch/shipwatch/internal/services/readiness/api"
	"github.com/louisbranch/shipwatch/internal/services/readiness/domain"
	"github.com/louisbranch/shipwatch/internal/services/readiness/push"
)

// ProjectLookup finds a catalog project by name.
type ProjectLookup func(ctx context.Context, name string) (domain.Project, bool)

// PushRequest is the RecordPush payload.
type PushRequest struct {
	Project string        `json:"project"`
	Commits []push.Commit `json:"commits"`
}

// ReadinessAPI serves Evaluate, DecideAndNotify and RecordPush over gRPC.
type ReadinessAPI struct {
	service *Service
	lookup  ProjectLookup
}

var _ api.ReadinessServer = (*ReadinessAPI)(nil)

// NewReadinessAPI binds service to project names resolved by lookup.
func NewReadinessAPI(service *Service, lookup ProjectLookup) (*ReadinessAPI, error) {
	if service == nil {
		return nil, fmt.Errorf("service is required")
	}
	if lookup == nil {
		return nil, fmt.Errorf("project lookup is required")
	}
	return &ReadinessAPI{service: service, lookup: lookup}, nil
}

// Evaluate implements api.ReadinessServer.
func (a *ReadinessAPI) Evaluate(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	project, err := a.project(ctx, in.GetValue())
	if err != nil {
		return nil, apperrors.ToGRPCStatus(err)
	}
	snapshot, err := a.service.Evaluate(ctx, project)
	if err != nil {
		return nil, apperrors.ToGRPCStatus(err)
	}
	return api.Encode(snapshot)
}

// DecideAndNotify implements api.ReadinessServer.
func (a *ReadinessAPI) DecideAndNotify(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	project, err := a.project(ctx, in.GetValue())
	if err != nil {
		return nil, apperrors.ToGRPCStatus(err)
	}
	decision, err := a.service.DecideAndNotify(ctx, project)
	if err != nil {
		return nil, apperrors.ToGRPCStatus(err)
	}
	return api.Encode(decision)
}

// RecordPush implements api.ReadinessServer.
func (a *ReadinessAPI) RecordPush(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req PushRequest
	if err := api.Decode(in, &req); err != nil {
		return nil, apperrors.ToGRPCStatus(apperrors.Wrap(apperrors.CodePayloadInvalid, "decode push request", err))
	}
	project, err := a.project(ctx, req.Project)
	if err != nil {
		return nil, apperrors.ToGRPCStatus(err)
	}
	result, err := a.service.RecordPush(ctx, project, req.Commits)
	if err != nil {
		return nil, apperrors.ToGRPCStatus(err)
	}
	return api.Encode(result)
}

func (a *ReadinessAPI) project(ctx context.Context, name string) (domain.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Project{}, apperrors.New(apperrors.CodePayloadInvalid, "project name is required")
	}
	project, ok := a.lookup(ctx, name)
	if !ok {
		return domain.Project{}, apperrors.WithMetadata(apperrors.CodeProjectUnknown, "project not found", map[string]string{"project": name})
	}
	return project, nil
}

// Remote runs readiness operations against a running shipwatch service.
type Remote struct {
	conn   *grpc.ClientConn
	client *api.Client
}

// DialRemote connects to the shipwatch gRPC address. The connection is lazy;
// errors surface on the first call.
func DialRemote(addr string) (*Remote, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigInvalid, "dial "+addr, err)
	}
	return &Remote{conn: conn, client: api.NewClient(conn)}, nil
}

// Close releases the connection.
func (r *Remote) Close() error {
	return r.conn.Close()
}

// Evaluate returns the remote snapshot of project.
func (r *Remote) Evaluate(ctx context.Context, project string) (domain.ProjectSnapshot, error) {
	var snapshot domain.ProjectSnapshot
	reply, err := r.client.Evaluate(ctx, project)
	if err != nil {
		return snapshot, apperrors.FromGRPCStatus(err)
	}
	err = api.Decode(reply, &snapshot)
	return snapshot, err
}

// DecideAndNotify runs the remote notification decision for project.
func (r *Remote) DecideAndNotify(ctx context.Context, project string) (Decision, error) {
	var decision Decision
	reply, err := r.client.DecideAndNotify(ctx, project)
	if err != nil {
		return decision, apperrors.FromGRPCStatus(err)
	}
	err = api.Decode(reply, &decision)
	return decision, err
}

// RecordPush classifies commits on the remote service.
func (r *Remote) RecordPush(ctx context.Context, project string, commits []push.Commit) (push.Result, error) {
	var result push.Result
	req, err := api.Encode(PushRequest{Project: project, Commits: commits})
	if err != nil {
		return result, err
	}
	reply, err := r.client.RecordPush(ctx, req)
	if err != nil {
		return result, apperrors.FromGRPCStatus(err)
	}
	err = api.Decode(reply, &result)
	return result, err
}
