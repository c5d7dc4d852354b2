package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"striem/internal/logger"
	"striem/pkg/ocsf"
)

// deadLetter records events dropped after a partition was quarantined
// (spec.md §7 StorageError policy: "partition is quarantined and further
// events for that partition are dropped with a counter increment").
// Adapted from the teacher's internal/output/alertjson writer (a
// mutex-guarded json.Encoder over an append file); here it backstops
// operator visibility into exactly what was lost, since the spec names the
// counter but not where the dropped payload goes.
type deadLetter struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
}

type deadLetterRecord struct {
	PartitionKey string                 `json:"partition_key"`
	Event        map[string]interface{} `json:"event"`
}

// newDeadLetter creates a JSONL dead-letter sink at path, or returns a nil
// *deadLetter (which Record treats as a no-op) when path is empty.
func newDeadLetter(path string) (*deadLetter, error) {
	if path == "" {
		return nil, nil
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create dead-letter directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open dead-letter file: %w", err)
	}
	logger.Infof("Dead-letter writer initialized: %s", path)
	return &deadLetter{file: f, encoder: json.NewEncoder(f)}, nil
}

// Record appends a dropped event's partition key and payload.
func (d *deadLetter) Record(partitionKey string, event *ocsf.Event) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.encoder.Encode(deadLetterRecord{PartitionKey: partitionKey, Event: event.Native()}); err != nil {
		logger.Errorf("Failed to record dead-lettered event: %v", err)
	}
}

// Close closes the underlying file.
func (d *deadLetter) Close() error {
	if d == nil || d.file == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.file.Close()
}

// NewDeadLetter is the exported constructor for orchestrator wiring.
func NewDeadLetter(path string) (*deadLetter, error) {
	return newDeadLetter(path)
}
