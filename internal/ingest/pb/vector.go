// Package pb holds the wire messages and service descriptor for the Vector
// ingest service. There is no .proto/protoc step available in this
// environment, so the messages are plain tagged Go structs (grounded on the
// pack's Generativebots-ocx-backend-go-svc/pb/mock.go style of hand-written
// client/server types) and the service is dispatched through a
// hand-assembled grpc.ServiceDesc instead of generated stub code. The wire
// encoding itself still goes through real google.golang.org/grpc framing,
// deadlines, and status codes — only codegen is skipped, via the JSON codec
// registered in internal/ingest/jsoncodec.
package pb

import (
	"context"

	"google.golang.org/grpc"
)

// EventRequest carries a batch of opaque, already-JSON-shaped events plus a
// client-generated request_id (spec.md §4.1, trace-only — not deduplicated).
type EventRequest struct {
	Events    []interface{} `json:"events"`
	RequestID string        `json:"request_id"`
}

// EventResponse echoes the request_id once every event in the batch has been
// enqueued to all required sinks.
type EventResponse struct {
	RequestID string `json:"request_id"`
}

// HealthCheckRequest is empty; present for symmetry with the Vector gRPC
// health convention.
type HealthCheckRequest struct{}

// HealthCheckResponse reports liveness plus admission queue depth and
// remaining headroom as returned by the server's queue probe (the
// orchestrator's probe sums the detection and storage queues), so an
// operator can see backpressure building before it trips ResourceExhausted.
type HealthCheckResponse struct {
	Status        string `json:"status"`
	QueueDepth    int    `json:"queue_depth"`
	QueueHeadroom int    `json:"queue_headroom"`
}

// VectorServer is the service contract internal/ingest implements.
type VectorServer interface {
	PushEvents(context.Context, *EventRequest) (*EventResponse, error)
	HealthCheck(context.Context, *HealthCheckRequest) (*HealthCheckResponse, error)
}

// VectorClient is the corresponding caller-side contract, for tests and any
// in-process harness that wants to drive the service over a real
// *grpc.ClientConn.
type VectorClient interface {
	PushEvents(ctx context.Context, in *EventRequest, opts ...grpc.CallOption) (*EventResponse, error)
	HealthCheck(ctx context.Context, in *HealthCheckRequest, opts ...grpc.CallOption) (*HealthCheckResponse, error)
}

type vectorClient struct {
	cc *grpc.ClientConn
}

// NewVectorClient builds a VectorClient over an established connection.
// Callers must dial with grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsoncodec.Name))
// or the codec registered globally so the stock invoker can marshal these
// plain structs.
func NewVectorClient(cc *grpc.ClientConn) VectorClient {
	return &vectorClient{cc: cc}
}

func (c *vectorClient) PushEvents(ctx context.Context, in *EventRequest, opts ...grpc.CallOption) (*EventResponse, error) {
	out := new(EventResponse)
	if err := c.cc.Invoke(ctx, ServiceName+"/PushEvents", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *vectorClient) HealthCheck(ctx context.Context, in *HealthCheckRequest, opts ...grpc.CallOption) (*HealthCheckResponse, error) {
	out := new(HealthCheckResponse)
	if err := c.cc.Invoke(ctx, ServiceName+"/HealthCheck", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ServiceName is the fully-qualified gRPC service name used in request
// paths, standing in for the name a .proto package would have assigned.
const ServiceName = "striem.ingest.Vector"

func pushEventsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(EventRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VectorServer).PushEvents(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/PushEvents"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(VectorServer).PushEvents(ctx, req.(*EventRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func healthCheckHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(HealthCheckRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VectorServer).HealthCheck(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/HealthCheck"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(VectorServer).HealthCheck(ctx, req.(*HealthCheckRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the hand-assembled equivalent of what protoc-gen-go-grpc
// would emit: method name to handler-function bindings, registered against
// a *grpc.Server the same way generated code does.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VectorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PushEvents", Handler: pushEventsHandler},
		{MethodName: "HealthCheck", Handler: healthCheckHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/ingest/pb/vector.go",
}

// RegisterVectorServer wires srv into s the way generated code's
// RegisterXServer function would.
func RegisterVectorServer(s grpc.ServiceRegistrar, srv VectorServer) {
	s.RegisterService(&ServiceDesc, srv)
}
