package detection

import (
	"sync"
	"time"
)

// dedupe suppresses repeat findings for the same (rule, logsource) pair
// within a cooldown window. Adapted from the teacher's
// internal/alerts.Scorer cooldown bookkeeping (a mutex-guarded map of last-
// seen timestamps); this is an optional ambient finding-flood control, not
// a named spec.md requirement, and is only active when
// DetectionConfig.DedupeWindow is configured positive.
type dedupe struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
	now    func() time.Time
}

func newDedupe(window time.Duration) *dedupe {
	return &dedupe{
		window: window,
		last:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// seen reports whether (ruleID, key) fired within the cooldown window and
// records the current firing if not.
func (d *dedupe) seen(ruleID, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	composite := ruleID + "|" + key
	now := d.now()
	if last, ok := d.last[composite]; ok && now.Sub(last) < d.window {
		return true
	}
	d.last[composite] = now
	return false
}
