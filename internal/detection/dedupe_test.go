package detection

import (
	"testing"
	"time"
)

func TestDedupeSuppressesWithinWindow(t *testing.T) {
	d := newDedupe(time.Minute)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return fixed }

	if d.seen("rule-1", "host-a") {
		t.Fatalf("expected first firing to not be suppressed")
	}
	if !d.seen("rule-1", "host-a") {
		t.Fatalf("expected second firing within window to be suppressed")
	}
	if d.seen("rule-1", "host-b") {
		t.Fatalf("expected different key to not be suppressed")
	}
}

func TestDedupeAllowsAfterWindowElapses(t *testing.T) {
	d := newDedupe(time.Minute)
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return current }

	if d.seen("rule-1", "host-a") {
		t.Fatalf("expected first firing to not be suppressed")
	}
	current = current.Add(2 * time.Minute)
	if d.seen("rule-1", "host-a") {
		t.Fatalf("expected firing after window elapsed to not be suppressed")
	}
}
