// Package api exposes the readiness operations over gRPC.
//
// Requests and responses use protobuf well-known types: a project name
// travels as a StringValue and results travel as a Struct holding the same
// JSON document the CLI prints.
package api

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "shipwatch.readiness.v1.Readiness"

const (
	EvaluateMethod        = "/" + ServiceName + "/Evaluate"
	DecideAndNotifyMethod = "/" + ServiceName + "/DecideAndNotify"
	RecordPushMethod      = "/" + ServiceName + "/RecordPush"
)

// ReadinessServer is implemented by the readiness service.
type ReadinessServer interface {
	Evaluate(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	DecideAndNotify(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	RecordPush(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterReadinessServer registers srv on s.
func RegisterReadinessServer(s grpc.ServiceRegistrar, srv ReadinessServer) {
	s.RegisterService(&readinessServiceDesc, srv)
}

var readinessServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReadinessServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: evaluateHandler},
		{MethodName: "DecideAndNotify", Handler: decideAndNotifyHandler},
		{MethodName: "RecordPush", Handler: recordPushHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shipwatch/readiness/v1/readiness.proto",
}

func evaluateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReadinessServer).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EvaluateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReadinessServer).Evaluate(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func decideAndNotifyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReadinessServer).DecideAndNotify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DecideAndNotifyMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReadinessServer).DecideAndNotify(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func recordPushHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReadinessServer).RecordPush(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RecordPushMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReadinessServer).RecordPush(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Encode renders v as a Struct through its JSON form.
func Encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("encode %T as struct: %w", v, err)
	}
	return out, nil
}

// Decode fills v from a Struct produced by Encode.
func Decode(in *structpb.Struct, v any) error {
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("decode struct: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}

// Client calls a remote ReadinessServer.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps conn.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Evaluate returns the encoded snapshot of project.
func (c *Client) Evaluate(ctx context.Context, project string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, EvaluateMethod, wrapperspb.String(project), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// DecideAndNotify returns the encoded decision for project.
func (c *Client) DecideAndNotify(ctx context.Context, project string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, DecideAndNotifyMethod, wrapperspb.String(project), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RecordPush sends an encoded push request and returns the encoded result.
func (c *Client) RecordPush(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, RecordPushMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
