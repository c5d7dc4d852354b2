package storage

import (
	"encoding/json"
	"strings"

	"striem/internal/schema"
	"striem/pkg/ocsf"
)

// rawColumnName is the synthetic column every schema gets for whatever the
// declared columns didn't claim (spec.md §4.4: "Unknown top-level keys are
// collected into a single raw JSON string column so nothing is lost").
const rawColumnName = "raw"

// project turns an event into a flat row map keyed by parquet-safe column
// names (dots replaced with underscores), following the declared schema.
// It returns the row and the number of declared columns that hit a type
// mismatch or, for a non-nullable column, were absent (written as null,
// counted, never failing the event). Top-level keys no declared column
// consumed go into the raw column.
func project(event *ocsf.Event, desc *schema.ClassDescriptor) (row map[string]interface{}, mismatches int) {
	row = make(map[string]interface{}, len(desc.Columns)+2)
	consumed := make(map[string]bool, len(desc.Columns))

	for _, col := range desc.Columns {
		if col.Path == rawColumnName || col.Path == "time" {
			continue
		}
		fieldName := flatten(col.Path)
		top := topLevelKey(col.Path)
		consumed[top] = true

		val, ok := event.Get(col.Path)
		if !ok {
			if !col.Nullable {
				mismatches++
			}
			row[fieldName] = nil
			continue
		}

		coerced, ok := coerce(val, col.Type)
		if !ok {
			mismatches++
			row[fieldName] = nil
			continue
		}
		row[fieldName] = coerced
	}

	raw := unknownFields(event, consumed)
	if len(raw) > 0 {
		if encoded, err := json.Marshal(raw); err == nil {
			row[rawColumnName] = string(encoded)
		}
	} else {
		row[rawColumnName] = nil
	}

	row["time"] = event.TimeMillis
	return row, mismatches
}

func topLevelKey(path string) string {
	if idx := strings.IndexByte(path, '.'); idx >= 0 {
		return path[:idx]
	}
	return path
}

func flatten(path string) string {
	return strings.ReplaceAll(path, ".", "_")
}

func coerce(v ocsf.Value, want schema.ColumnType) (interface{}, bool) {
	switch want {
	case schema.ColumnString:
		s, ok := v.AsString()
		return s, ok
	case schema.ColumnInt:
		f, ok := v.AsFloat()
		if !ok {
			return nil, false
		}
		return int64(f), true
	case schema.ColumnFloat:
		f, ok := v.AsFloat()
		return f, ok
	case schema.ColumnBool:
		b, ok := v.Bool()
		return b, ok
	case schema.ColumnBytes:
		b, ok := v.Bytes()
		if ok {
			return b, true
		}
		s, ok := v.AsString()
		return []byte(s), ok
	default:
		return nil, false
	}
}

// unknownFields returns the subset of the event's top-level fields (plus
// metadata) that no declared column consumed.
func unknownFields(event *ocsf.Event, consumed map[string]bool) map[string]interface{} {
	out := make(map[string]interface{})
	for k, v := range event.Fields {
		if consumed[k] {
			continue
		}
		out[k] = v.Native()
	}
	if !consumed["metadata"] && len(event.Metadata) > 0 {
		out["metadata"] = ocsf.Map(event.Metadata).Native()
	}
	return out
}
