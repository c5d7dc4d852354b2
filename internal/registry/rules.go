// Package registry implements spec.md §4.5: an in-memory, disk-persisted
// rule and source registry with copy-on-write snapshots, a collector config
// document generator, and a directory watch that triggers detection engine
// reload. It is grounded on the teacher's internal/rules engine for the
// compile-before-mutate shape and on the teacher's JSONL writer idiom
// (mutex-guarded append) for persistence, generalized to a directory of one
// file per rule/source so list/get/delete map directly onto filesystem
// entries.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"striem/internal/detection"
	"striem/internal/errs"
	"striem/internal/logger"
	"striem/internal/sigma"
)

// RuleSummary is the list_rules() projection (spec.md §4.5): enough to
// render a rule table without shipping the full YAML body.
type RuleSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Level       string `json:"level"`
	Enabled     bool   `json:"enabled"`
	ContentHash string `json:"content_hash"`
}

// RuleContent is the get_rule() projection: the summary plus the raw YAML
// body, byte-equal to what was last put (after canonical normalization),
// satisfying the round-trip property in spec.md §8.
type RuleContent struct {
	RuleSummary
	YAML string `json:"yaml"`
}

type ruleEntry struct {
	compiled *sigma.CompiledRule
	enabled  bool
}

// RuleRegistry owns the set of loaded Sigma rules, persists them to a
// directory (one *.yml file per rule id), and publishes copy-on-write
// snapshots to a detection.Engine on every mutation.
type RuleRegistry struct {
	dir    string
	engine *detection.Engine

	mu    sync.Mutex
	rules map[string]*ruleEntry
}

// NewRuleRegistry loads every *.yml/*.yaml file under dir, compiling each
// with sigma.Compile. A malformed file is logged and skipped rather than
// failing the whole load, since it might predate a later-added modifier.
func NewRuleRegistry(dir string, engine *detection.Engine) (*RuleRegistry, error) {
	r := &RuleRegistry{dir: dir, engine: engine, rules: make(map[string]*ruleEntry)}
	if dir == "" {
		return r, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &errs.ConfigError{Field: "detections", Err: fmt.Errorf("create rules directory: %w", err)}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &errs.ConfigError{Field: "detections", Err: fmt.Errorf("read rules directory: %w", err)}
	}
	for _, entry := range entries {
		if entry.IsDir() || !isRuleFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			logger.Warnf("Skipping unreadable rule file %s: %v", path, err)
			continue
		}
		compiled, err := sigma.Compile(raw)
		if err != nil {
			logger.Warnf("Skipping invalid rule file %s: %v", path, err)
			continue
		}
		r.rules[compiled.ID] = &ruleEntry{compiled: compiled, enabled: true}
	}
	r.publish()
	return r, nil
}

func isRuleFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yml" || ext == ".yaml"
}

// ListRules returns every loaded rule's summary, sorted by id for a stable
// listing.
func (r *RuleRegistry) ListRules() []RuleSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]RuleSummary, 0, len(r.rules))
	for id, entry := range r.rules {
		out = append(out, RuleSummary{
			ID:          id,
			Title:       entry.compiled.Title,
			Level:       entry.compiled.Level,
			Enabled:     entry.enabled,
			ContentHash: entry.compiled.ContentHash,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetRule returns the full content for id, or false if unknown.
func (r *RuleRegistry) GetRule(id string) (RuleContent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rules[id]
	if !ok {
		return RuleContent{}, false
	}
	return RuleContent{
		RuleSummary: RuleSummary{
			ID:          id,
			Title:       entry.compiled.Title,
			Level:       entry.compiled.Level,
			Enabled:     entry.enabled,
			ContentHash: entry.compiled.ContentHash,
		},
		YAML: string(entry.compiled.Raw),
	}, true
}

// PutRule compiles yamlBytes first; on a compile error it returns the
// positioned error and leaves the registry unmutated (spec.md §4.5). On
// success the rule is persisted, enabled by default, and a new snapshot is
// published.
func (r *RuleRegistry) PutRule(yamlBytes []byte) (RuleSummary, error) {
	compiled, err := sigma.Compile(yamlBytes)
	if err != nil {
		return RuleSummary{}, err
	}

	if err := r.persist(compiled); err != nil {
		return RuleSummary{}, err
	}

	r.mu.Lock()
	r.rules[compiled.ID] = &ruleEntry{compiled: compiled, enabled: true}
	r.mu.Unlock()
	r.publish()

	return RuleSummary{
		ID:          compiled.ID,
		Title:       compiled.Title,
		Level:       compiled.Level,
		Enabled:     true,
		ContentHash: compiled.ContentHash,
	}, nil
}

// SetEnabled toggles a rule's participation in evaluation. Calling it
// twice with the same value is a no-op (spec.md §8 idempotence property),
// and both calls still republish a snapshot since detecting the no-op case
// isn't worth the extra state.
func (r *RuleRegistry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	entry, ok := r.rules[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("rule %q not found", id)
	}
	entry.enabled = enabled
	r.mu.Unlock()
	r.publish()
	return nil
}

// DeleteRule removes a rule from memory, disk, and the next published
// snapshot.
func (r *RuleRegistry) DeleteRule(id string) error {
	r.mu.Lock()
	if _, ok := r.rules[id]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("rule %q not found", id)
	}
	delete(r.rules, id)
	r.mu.Unlock()

	if r.dir != "" {
		if err := os.Remove(filepath.Join(r.dir, id+".yml")); err != nil && !os.IsNotExist(err) {
			logger.Warnf("Failed to remove rule file for %s: %v", id, err)
		}
	}
	r.publish()
	return nil
}

// ReloadFromDisk re-reads the rules directory, used by the fsnotify watch
// in watch.go when a file changes outside of PutRule/DeleteRule (e.g. an
// operator editing a YAML file directly). The enable/disable flag is a
// sidecar to the rule content (spec.md §3: never mutated on the rule
// itself), so a disk reload carries forward each surviving rule's prior
// enabled state rather than resetting everything to enabled.
func (r *RuleRegistry) ReloadFromDisk() error {
	if r.dir == "" {
		return nil
	}
	fresh, err := NewRuleRegistry(r.dir, detection.NewEngine(detection.Config{}))
	if err != nil {
		return err
	}

	r.mu.Lock()
	for id, entry := range fresh.rules {
		if prior, ok := r.rules[id]; ok {
			entry.enabled = prior.enabled
		}
	}
	r.rules = fresh.rules
	r.mu.Unlock()
	r.publish()
	return nil
}

func (r *RuleRegistry) persist(compiled *sigma.CompiledRule) error {
	if r.dir == "" {
		return nil
	}
	path := filepath.Join(r.dir, compiled.ID+".yml")
	if err := os.WriteFile(path, compiled.Raw, 0644); err != nil {
		return &errs.RuleCompileError{Path: path, Rule: compiled.Title, Err: fmt.Errorf("persist rule: %w", err)}
	}
	return nil
}

// publish builds a fresh detection.Snapshot from every enabled rule and
// swaps it into the engine atomically (spec.md §4.3 "Rule reloads").
func (r *RuleRegistry) publish() {
	r.mu.Lock()
	enabled := make([]*sigma.CompiledRule, 0, len(r.rules))
	for _, entry := range r.rules {
		if entry.enabled {
			enabled = append(enabled, entry.compiled)
		}
	}
	r.mu.Unlock()

	r.engine.ReplaceSnapshot(detection.NewSnapshot(enabled))
}
