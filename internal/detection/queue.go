package detection

import (
	"context"
	"time"

	"striem/internal/metrics"
	"striem/pkg/ocsf"
)

// FindingSink receives every finding a Queue's engine produces. The
// orchestrator wires one sink per destination named in spec.md §4.3 step 4:
// the storage pool (as a re-ingested Event) and, when configured, an
// outbound action sink.
type FindingSink interface {
	Handle(finding *ocsf.Finding)
}

// Queue fronts an Engine with its own bounded admission channel, giving
// detection the same enqueue/drain shape as the storage pool (spec.md §4.1:
// "Fan-out is synchronous enqueue to two multi-producer channels"). It is
// grounded on the teacher's pipeline worker loop
// (internal/pipeline/adjacency_redis_pipeline.go), generalized from a fixed
// worker pool pulling off Redis to a single drain loop pulling off this
// channel.
type Queue struct {
	engine *Engine
	queue  chan *ocsf.Event
	sinks  []FindingSink
}

// NewQueue creates a detection queue of the given depth, dispatching
// findings to every sink in order.
func NewQueue(engine *Engine, depth int, sinks ...FindingSink) *Queue {
	if depth <= 0 {
		depth = 256
	}
	return &Queue{engine: engine, queue: make(chan *ocsf.Event, depth), sinks: sinks}
}

// Enqueue admits an event to the detection queue, blocking up to ctx's
// deadline (the ingest server's admission policy, spec.md §4.1).
func (q *Queue) Enqueue(ctx context.Context, event *ocsf.Event) error {
	select {
	case q.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Depth and Headroom back the ingest server's HealthCheck queue probe.
func (q *Queue) Depth() int    { return len(q.queue) }
func (q *Queue) Headroom() int { return cap(q.queue) - len(q.queue) }

// Run drains the queue, evaluating each event and dispatching its findings
// to every sink, until ctx is canceled.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-q.queue:
			if !ok {
				return
			}
			q.evaluate(ctx, event)
		}
	}
}

func (q *Queue) evaluate(ctx context.Context, event *ocsf.Event) {
	start := time.Now()
	findings, err := q.engine.Evaluate(ctx, event)
	metrics.RuleEvalObserve(time.Since(start).Seconds())
	if err != nil {
		return
	}
	for _, finding := range findings {
		metrics.FindingEmitted(finding.RuleUID)
		for _, sink := range q.sinks {
			sink.Handle(finding)
		}
	}
}
