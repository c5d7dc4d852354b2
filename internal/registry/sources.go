package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"striem/internal/errs"
	"striem/internal/logger"
)

// SourceSummary is the list_sources() projection (spec.md §4.5).
type SourceSummary struct {
	ID      string                 `json:"id"`
	Type    string                 `json:"type"`
	Config  map[string]interface{} `json:"config"`
	Enabled bool                   `json:"enabled"`
}

// knownSourceTypes is the schema allowlist put_source validates type
// against. Each pack collector type gets a remap transform at
// <remaps>/<type>/remap.vrl (spec.md §4.5 collector_config).
var knownSourceTypes = map[string]bool{
	"syslog":     true,
	"file":       true,
	"sysmon":     true,
	"journald":   true,
	"cloudtrail": true,
}

// SourceRegistry owns the set of configured upstream collector sources,
// each persisted as its own JSON file keyed by a stable id derived from a
// hash of its canonical config.
type SourceRegistry struct {
	dir string

	mu      sync.Mutex
	sources map[string]*SourceSummary
}

// NewSourceRegistry loads every *.json file under dir as a source
// definition.
func NewSourceRegistry(dir string) (*SourceRegistry, error) {
	r := &SourceRegistry{dir: dir, sources: make(map[string]*SourceSummary)}
	if dir == "" {
		return r, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &errs.ConfigError{Field: "sources", Err: fmt.Errorf("create sources directory: %w", err)}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &errs.ConfigError{Field: "sources", Err: fmt.Errorf("read sources directory: %w", err)}
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			logger.Warnf("Skipping unreadable source file %s: %v", path, err)
			continue
		}
		var summary SourceSummary
		if err := json.Unmarshal(raw, &summary); err != nil {
			logger.Warnf("Skipping invalid source file %s: %v", path, err)
			continue
		}
		r.sources[summary.ID] = &summary
	}
	return r, nil
}

// ListSources returns every configured source, sorted by id.
func (r *SourceRegistry) ListSources() []SourceSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]SourceSummary, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PutSource validates sourceType against the known collector type
// allowlist, derives a stable id from the canonical config, persists the
// source enabled by default, and returns its summary.
func (r *SourceRegistry) PutSource(sourceType string, config map[string]interface{}) (SourceSummary, error) {
	if !knownSourceTypes[sourceType] {
		return SourceSummary{}, &errs.ConfigError{Field: "source.type", Err: fmt.Errorf("unknown source type %q", sourceType)}
	}

	id, err := stableSourceID(sourceType, config)
	if err != nil {
		return SourceSummary{}, &errs.ConfigError{Field: "source.config", Err: err}
	}

	summary := SourceSummary{ID: id, Type: sourceType, Config: config, Enabled: true}
	if err := r.persist(&summary); err != nil {
		return SourceSummary{}, err
	}

	r.mu.Lock()
	r.sources[id] = &summary
	r.mu.Unlock()
	return summary, nil
}

// SetEnabled toggles a source's participation in collector_config().
func (r *SourceRegistry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	s, ok := r.sources[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("source %q not found", id)
	}
	s.Enabled = enabled
	snapshot := *s
	r.mu.Unlock()
	return r.persist(&snapshot)
}

// DeleteSource removes a source from memory and disk.
func (r *SourceRegistry) DeleteSource(id string) error {
	r.mu.Lock()
	if _, ok := r.sources[id]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("source %q not found", id)
	}
	delete(r.sources, id)
	r.mu.Unlock()

	if r.dir != "" {
		if err := os.Remove(filepath.Join(r.dir, id+".json")); err != nil && !os.IsNotExist(err) {
			logger.Warnf("Failed to remove source file for %s: %v", id, err)
		}
	}
	return nil
}

func (r *SourceRegistry) persist(s *SourceSummary) error {
	if r.dir == "" {
		return nil
	}
	encoded, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal source %s: %w", s.ID, err)
	}
	path := filepath.Join(r.dir, s.ID+".json")
	if err := os.WriteFile(path, encoded, 0644); err != nil {
		return fmt.Errorf("persist source %s: %w", s.ID, err)
	}
	return nil
}

// stableSourceID hashes the type plus canonical (key-sorted) JSON encoding
// of config, so identical put_source calls are idempotent and produce the
// same id (spec.md §4.5 "produces a stable id").
func stableSourceID(sourceType string, config map[string]interface{}) (string, error) {
	canonical, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	sum := sha256.Sum256(append([]byte(sourceType+"|"), canonical...))
	return sourceType + "-" + hex.EncodeToString(sum[:])[:12], nil
}
