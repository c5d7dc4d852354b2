package storage

import (
	"context"
	"time"

	"striem/internal/logger"
	"striem/pkg/ocsf"
)

// findingAdmissionTimeout bounds how long Handle will wait for room in the
// storage queue before giving up, so a backed-up storage pool cannot wedge
// the detection drain loop forever.
const findingAdmissionTimeout = 5 * time.Second

// FindingSink adapts a Pool into a detection.FindingSink: every finding is
// projected back to an Event (class_uid = detection-finding) and routed
// through the normal partition/writer path, fulfilling spec.md §4.3 step 4
// ("Emit findings into the storage channel"). The detection engine itself
// never re-evaluates these events (spec.md §9's recursion-prevention
// resolution lives in the engine, not here).
type FindingSink struct {
	Pool *Pool
}

// Handle enqueues finding's projected event, logging and dropping it if the
// pool's queue has no room within a short grace period rather than blocking
// the detection drain loop indefinitely.
func (s FindingSink) Handle(finding *ocsf.Finding) {
	event := finding.ToEvent()
	ctx, cancel := context.WithTimeout(context.Background(), findingAdmissionTimeout)
	defer cancel()
	if err := s.Pool.Enqueue(ctx, event); err != nil {
		logger.Errorf("Failed to route finding %s to storage: %v", finding.RuleUID, err)
	}
}
