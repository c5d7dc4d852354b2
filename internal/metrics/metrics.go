// Package metrics exposes the operational counters and histograms named
// throughout spec.md (ingest admission/backpressure, writer flush/quarantine,
// rule evaluation latency, schema fallback), grounded on the teacher's use of
// github.com/prometheus/client_golang for its own pipeline counters. Every
// metric is registered against the default registry at package init, so the
// orchestrator only needs to mount promhttp.Handler on the observability
// listener (spec.md §6 "Observability: Address").
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "striem",
		Subsystem: "ingest",
		Name:      "events_total",
		Help:      "Events admitted to the ingest pipeline, by outcome.",
	}, []string{"outcome"})

	ingestBackpressureTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "striem",
		Subsystem: "ingest",
		Name:      "backpressure_total",
		Help:      "PushEvents calls rejected with ResourceExhausted because the admission deadline elapsed.",
	})

	ingestDecodeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "striem",
		Subsystem: "ingest",
		Name:      "decode_errors_total",
		Help:      "Events rejected at decode time (malformed payload or missing class_uid/time).",
	})

	ruleEvalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "striem",
		Subsystem: "detection",
		Name:      "rule_eval_seconds",
		Help:      "Wall time spent evaluating one event against the active rule snapshot.",
		Buckets:   prometheus.DefBuckets,
	})

	findingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "striem",
		Subsystem: "detection",
		Name:      "findings_total",
		Help:      "Detection findings produced, by rule_id.",
	}, []string{"rule_id"})

	storageFlushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "striem",
		Subsystem: "storage",
		Name:      "flush_total",
		Help:      "Writer flush attempts, by partition_key and outcome.",
	}, []string{"partition_key", "outcome"})

	storageQuarantinedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "striem",
		Subsystem: "storage",
		Name:      "quarantined_drops_total",
		Help:      "Events dropped because their partition writer was quarantined.",
	}, []string{"partition_key"})

	schemaFallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "striem",
		Subsystem: "schema",
		Name:      "fallback_total",
		Help:      "Events written under the generic fallback schema, by class_uid.",
	}, []string{"class_uid"})

	actionDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "striem",
		Subsystem: "actions",
		Name:      "dispatch_total",
		Help:      "Action sink dispatch attempts, by target and outcome.",
	}, []string{"target", "outcome"})
)

// IngestAdmitted records one event accepted onto the ingest pipeline.
func IngestAdmitted() {
	ingestEventsTotal.WithLabelValues("admitted").Inc()
}

// IngestBackpressure records one PushEvents call rejected because the
// admission deadline elapsed before the event queue had room (spec.md §4.1).
func IngestBackpressure() {
	ingestBackpressureTotal.Inc()
	ingestEventsTotal.WithLabelValues("backpressure").Inc()
}

// IngestDecodeError records one event rejected for a malformed payload.
func IngestDecodeError() {
	ingestDecodeErrorsTotal.Inc()
	ingestEventsTotal.WithLabelValues("decode_error").Inc()
}

// RuleEvalObserve records the wall time spent evaluating one event against
// the active snapshot.
func RuleEvalObserve(seconds float64) {
	ruleEvalDuration.Observe(seconds)
}

// FindingEmitted records one detection finding produced by ruleID.
func FindingEmitted(ruleID string) {
	findingsTotal.WithLabelValues(ruleID).Inc()
}

// StorageFlushSuccess records a successful partition flush.
func StorageFlushSuccess(partitionKey string) {
	storageFlushTotal.WithLabelValues(partitionKey, "success").Inc()
}

// StorageFlushFailure records a failed partition flush attempt.
func StorageFlushFailure(partitionKey string) {
	storageFlushTotal.WithLabelValues(partitionKey, "failure").Inc()
}

// StorageQuarantinedDrop records an event dropped to the dead-letter sink
// because its partition writer gave up retrying flushes.
func StorageQuarantinedDrop(partitionKey string) {
	storageQuarantinedTotal.WithLabelValues(partitionKey).Inc()
}

// SchemaFallback records an event routed under the generic fallback schema
// because classUID had no loaded OCSF class descriptor.
func SchemaFallback(classUID int64) {
	schemaFallbackTotal.WithLabelValues(strconv.FormatInt(classUID, 10)).Inc()
}

// ActionDispatched records one action sink dispatch attempt.
func ActionDispatched(target string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	actionDispatchTotal.WithLabelValues(target, outcome).Inc()
}
