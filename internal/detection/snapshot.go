package detection

import (
	"sort"

	"striem/internal/sigma"
)

// Snapshot is an immutable, sorted view of the enabled rule set. Engine
// swaps its pointer to a Snapshot atomically on reload (spec.md §4.3
// "Rule reloads"); in-flight evaluations keep using the snapshot they
// started with to completion, per spec.md §5's ordering guarantee.
type Snapshot struct {
	rules []*sigma.CompiledRule
}

// NewSnapshot builds a Snapshot from a set of compiled rules, sorted by
// rule id so evaluation order is stable across reloads (spec.md §4.3 step
// 2: "Evaluate candidates in stable id order").
func NewSnapshot(rules []*sigma.CompiledRule) *Snapshot {
	sorted := make([]*sigma.CompiledRule, len(rules))
	copy(sorted, rules)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return &Snapshot{rules: sorted}
}

// Rules returns the snapshot's rules in evaluation order. The returned
// slice must not be mutated by callers.
func (s *Snapshot) Rules() []*sigma.CompiledRule {
	if s == nil {
		return nil
	}
	return s.rules
}

// Len reports the number of rules in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}
