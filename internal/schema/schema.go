// Package schema implements the OCSF schema loader contract from spec.md
// §4.6: given a directory of OCSF schema JSON files, produce an in-memory
// mapping class_uid -> ClassDescriptor. The schema files themselves are an
// external collaborator's concern (spec.md §1); this package only defines
// the shape it expects them to have and the fallback behavior when a class
// is missing.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"striem/internal/logger"
)

// ColumnType enumerates the primitive column types a writer can project
// an event field into.
type ColumnType string

const (
	ColumnInt    ColumnType = "int"
	ColumnFloat  ColumnType = "float"
	ColumnString ColumnType = "string"
	ColumnBool   ColumnType = "bool"
	ColumnBytes  ColumnType = "bytes"
)

// Column describes one declared column of a class's schema.
type Column struct {
	Path     string     `json:"path"`
	Type     ColumnType `json:"type"`
	Nullable bool       `json:"nullable"`
}

// ClassDescriptor is the per-class schema the storage writer pool projects
// events against.
type ClassDescriptor struct {
	ClassUID   int64             `json:"class_uid"`
	Name       string            `json:"name"`
	Activities map[string]string `json:"activities"`
	Columns    []Column          `json:"columns"`
}

// ActivityName resolves an activity_id to its declared name, or "unknown"
// if undeclared.
func (c *ClassDescriptor) ActivityName(activityID int64) string {
	if c == nil || c.Activities == nil {
		return "unknown"
	}
	if name, ok := c.Activities[strconv.FormatInt(activityID, 10)]; ok && name != "" {
		return name
	}
	return "unknown"
}

// SnakeName returns the class/activity name in lower-snake form for the
// storage path layout (spec.md §4.4/§6).
func SnakeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == ' ' || r == '-':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return strings.ToLower(b.String())
}

// genericClassName is used for classes not present in the loaded schema
// set (spec.md §4.6).
const genericClassName = "unknown"

// Generic returns the fallback (time, raw_json) schema used when an event
// arrives for a class_uid the loader never saw (spec.md §4.4/§4.6).
func Generic(classUID int64) *ClassDescriptor {
	return &ClassDescriptor{
		ClassUID:   classUID,
		Name:       genericClassName,
		Activities: map[string]string{},
		Columns: []Column{
			{Path: "time", Type: ColumnInt, Nullable: false},
			{Path: "raw", Type: ColumnString, Nullable: true},
		},
	}
}

// Loader holds the loaded class descriptors, keyed by class_uid.
type Loader struct {
	classes map[int64]*ClassDescriptor
}

// Load reads every *.json file directly under root and parses it as a
// ClassDescriptor. A file that fails to parse is skipped with a warning
// rather than failing the whole load, since one malformed schema file
// should not prevent the rest of the schema set from loading.
func Load(root string) (*Loader, error) {
	if root == "" {
		return &Loader{classes: make(map[int64]*ClassDescriptor)}, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warnf("OCSF schema directory %s does not exist, starting with no loaded classes", root)
			return &Loader{classes: make(map[int64]*ClassDescriptor)}, nil
		}
		return nil, fmt.Errorf("read schema directory %s: %w", root, err)
	}

	classes := make(map[int64]*ClassDescriptor, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".json") {
			continue
		}
		path := filepath.Join(root, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			logger.Warnf("Failed to read OCSF schema file %s: %v", path, err)
			continue
		}
		var desc ClassDescriptor
		if err := json.Unmarshal(raw, &desc); err != nil {
			logger.Warnf("Failed to parse OCSF schema file %s: %v", path, err)
			continue
		}
		if desc.ClassUID == 0 {
			logger.Warnf("OCSF schema file %s missing class_uid, skipping", path)
			continue
		}
		classes[desc.ClassUID] = &desc
	}

	return &Loader{classes: classes}, nil
}

// Lookup returns the ClassDescriptor for classUID, or the generic fallback
// plus false when the class was never loaded (spec.md §4.6).
func (l *Loader) Lookup(classUID int64) (*ClassDescriptor, bool) {
	if l == nil {
		return Generic(classUID), false
	}
	if desc, ok := l.classes[classUID]; ok {
		return desc, true
	}
	return Generic(classUID), false
}
