// Package ingest implements the gRPC ingest server from spec.md §4.1: a
// unary PushEvents that decodes a batch of opaque JSON-shaped events,
// enqueues each to the detection and storage fan-out channels under a
// bounded admission deadline, and reports HealthCheck queue headroom. It is
// grounded on the teacher's Redis consumer + pipeline fan-out shape
// (internal/input/redis/consumer.go, internal/pipeline/adjacency_redis_pipeline.go),
// generalized from a single Redis stream source to a gRPC sink, over the
// hand-assembled service in internal/ingest/pb (no protoc available).
package ingest

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"striem/internal/ingest/pb"
	"striem/internal/logger"
	"striem/internal/metrics"
	"striem/pkg/ocsf"
)

// Sink is anything that admits a decoded event under a deadline — both the
// detection engine's evaluation queue and the storage pool satisfy this
// directly and are passed to New as-is by the orchestrator.
type Sink interface {
	Enqueue(ctx context.Context, event *ocsf.Event) error
}

// Config carries the admission policy from spec.md §4.1.
type Config struct {
	AdmissionDeadline time.Duration
}

// Server implements pb.VectorServer. Each accepted event is fanned out
// synchronously to every configured sink before PushEvents returns, giving
// at-least-once delivery: a reply only follows full admission (spec.md
// §4.1 "replies EventResponse only after the events are enqueued to all
// required sinks").
type Server struct {
	cfg   Config
	sinks []Sink
	probe func() (depth, headroom int)
}

// New builds a Server that fans every decoded event out to sinks, in order.
func New(cfg Config, sinks ...Sink) *Server {
	if cfg.AdmissionDeadline <= 0 {
		cfg.AdmissionDeadline = 5 * time.Second
	}
	return &Server{cfg: cfg, sinks: sinks}
}

// SetQueueProbe attaches a function HealthCheck uses to report queue depth
// and remaining headroom. Called by the orchestrator once the storage pool
// and detection engine queues exist.
func (s *Server) SetQueueProbe(probe func() (depth, headroom int)) {
	s.probe = probe
}

// PushEvents decodes the whole batch before admitting any of it, so a
// malformed event at a later offset fails atomically with InvalidArgument
// naming the offset without any earlier event reaching a sink (spec.md §4.1,
// §8 "zero events delivered"); admission timeouts anywhere in the
// already-decoded batch fail it with ResourceExhausted.
func (s *Server) PushEvents(ctx context.Context, req *pb.EventRequest) (*pb.EventResponse, error) {
	events := make([]*ocsf.Event, len(req.Events))
	for offset, raw := range req.Events {
		event, err := ocsf.NewEventFromNative(raw)
		if err != nil {
			metrics.IngestDecodeError()
			return nil, status.Errorf(codes.InvalidArgument, "event at offset %d: %v", offset, err)
		}
		events[offset] = event
	}

	deadline := time.Now().Add(s.cfg.AdmissionDeadline)
	admitCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	for offset, event := range events {
		for _, sink := range s.sinks {
			if err := sink.Enqueue(admitCtx, event); err != nil {
				if admitCtx.Err() != nil {
					metrics.IngestBackpressure()
					return nil, status.Errorf(codes.ResourceExhausted, "admission deadline exceeded at offset %d: %v", offset, err)
				}
				logger.Errorf("Sink enqueue failed for offset %d: %v", offset, err)
				return nil, status.Errorf(codes.Internal, "enqueue failed at offset %d: %v", offset, err)
			}
		}
		metrics.IngestAdmitted()
	}

	return &pb.EventResponse{RequestID: req.RequestID}, nil
}

// HealthCheck reports liveness. Queue depth instrumentation is attached by
// the orchestrator via SetQueueProbe; absent a probe this reports depth 0.
func (s *Server) HealthCheck(ctx context.Context, req *pb.HealthCheckRequest) (*pb.HealthCheckResponse, error) {
	depth, headroom := 0, 0
	if s.probe != nil {
		depth, headroom = s.probe()
	}
	return &pb.HealthCheckResponse{Status: "SERVING", QueueDepth: depth, QueueHeadroom: headroom}, nil
}
