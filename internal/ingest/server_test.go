package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"striem/internal/ingest/pb"
	"striem/pkg/ocsf"
)

type recordingSink struct {
	received []*ocsf.Event
	fail     error
}

func (s *recordingSink) Enqueue(ctx context.Context, event *ocsf.Event) error {
	if s.fail != nil {
		return s.fail
	}
	s.received = append(s.received, event)
	return nil
}

type blockingSink struct{}

func (blockingSink) Enqueue(ctx context.Context, event *ocsf.Event) error {
	<-ctx.Done()
	return ctx.Err()
}

func validEvent() map[string]interface{} {
	return map[string]interface{}{
		"class_uid": float64(1001),
		"time":      float64(1700000000000),
	}
}

func TestPushEventsFansOutToEverySink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	srv := New(Config{}, a, b)

	resp, err := srv.PushEvents(context.Background(), &pb.EventRequest{
		RequestID: "req-1",
		Events:    []interface{}{validEvent()},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.RequestID != "req-1" {
		t.Fatalf("expected request id echoed back, got %q", resp.RequestID)
	}
	if len(a.received) != 1 || len(b.received) != 1 {
		t.Fatalf("expected both sinks to receive the event, got a=%d b=%d", len(a.received), len(b.received))
	}
}

func TestPushEventsRejectsMalformedEventWithOffset(t *testing.T) {
	sink := &recordingSink{}
	srv := New(Config{}, sink)
	_, err := srv.PushEvents(context.Background(), &pb.EventRequest{
		Events: []interface{}{validEvent(), "not an object"},
	})
	if err == nil {
		t.Fatalf("expected decode error")
	}
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", status.Code(err))
	}
	if len(sink.received) != 0 {
		t.Fatalf("expected zero events delivered when a later offset fails to decode, got %d", len(sink.received))
	}
}

func TestPushEventsReportsResourceExhaustedOnAdmissionTimeout(t *testing.T) {
	srv := New(Config{AdmissionDeadline: 10 * time.Millisecond}, blockingSink{})
	_, err := srv.PushEvents(context.Background(), &pb.EventRequest{
		Events: []interface{}{validEvent()},
	})
	if err == nil {
		t.Fatalf("expected admission timeout error")
	}
	if status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("expected ResourceExhausted, got %v", status.Code(err))
	}
}

func TestPushEventsReportsInternalOnNonDeadlineSinkError(t *testing.T) {
	srv := New(Config{}, &recordingSink{fail: errors.New("boom")})
	_, err := srv.PushEvents(context.Background(), &pb.EventRequest{
		Events: []interface{}{validEvent()},
	})
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", status.Code(err))
	}
}

func TestHealthCheckReportsProbedQueueState(t *testing.T) {
	srv := New(Config{})
	srv.SetQueueProbe(func() (int, int) { return 3, 7 })

	resp, err := srv.HealthCheck(context.Background(), &pb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != "SERVING" || resp.QueueDepth != 3 || resp.QueueHeadroom != 7 {
		t.Fatalf("unexpected health check response: %+v", resp)
	}
}
