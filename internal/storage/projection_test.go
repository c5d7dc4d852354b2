package storage

import (
	"encoding/json"
	"testing"

	"striem/internal/schema"
	"striem/pkg/ocsf"
)

func buildTestEvent(t *testing.T) *ocsf.Event {
	t.Helper()
	event, err := ocsf.NewEventFromNative(map[string]interface{}{
		"class_uid": float64(4001),
		"time":      float64(1700000000000),
		"process":   map[string]interface{}{"name": "cmd.exe"},
		"pid":       float64(123),
		"mystery":   "untracked",
	})
	if err != nil {
		t.Fatalf("unexpected event error: %v", err)
	}
	return event
}

func TestProjectPopulatesDeclaredColumns(t *testing.T) {
	desc := &schema.ClassDescriptor{
		Columns: []schema.Column{
			{Path: "process.name", Type: schema.ColumnString},
			{Path: "pid", Type: schema.ColumnInt},
		},
	}
	row, mismatches := project(buildTestEvent(t), desc)
	if mismatches != 0 {
		t.Fatalf("expected no mismatches, got %d", mismatches)
	}
	if row["process_name"] != "cmd.exe" {
		t.Fatalf("expected process_name=cmd.exe, got %v", row["process_name"])
	}
	if row["pid"] != int64(123) {
		t.Fatalf("expected pid=123, got %v (%T)", row["pid"], row["pid"])
	}
	if row["time"] != int64(1700000000000) {
		t.Fatalf("expected time column populated, got %v", row["time"])
	}
}

func TestProjectCollectsUnknownFieldsIntoRaw(t *testing.T) {
	desc := &schema.ClassDescriptor{
		Columns: []schema.Column{
			{Path: "pid", Type: schema.ColumnInt},
		},
	}
	row, _ := project(buildTestEvent(t), desc)
	rawStr, ok := row[rawColumnName].(string)
	if !ok {
		t.Fatalf("expected raw column to be a JSON string, got %T", row[rawColumnName])
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(rawStr), &decoded); err != nil {
		t.Fatalf("expected raw column to be valid JSON: %v", err)
	}
	if _, ok := decoded["mystery"]; !ok {
		t.Fatalf("expected unconsumed field 'mystery' in raw column, got %v", decoded)
	}
	if _, ok := decoded["pid"]; ok {
		t.Fatalf("did not expect consumed field 'pid' in raw column")
	}
}

func TestProjectRecordsTypeMismatchAsNull(t *testing.T) {
	desc := &schema.ClassDescriptor{
		Columns: []schema.Column{
			{Path: "process.name", Type: schema.ColumnInt}, // string field declared as int
		},
	}
	row, mismatches := project(buildTestEvent(t), desc)
	if mismatches != 1 {
		t.Fatalf("expected 1 type mismatch, got %d", mismatches)
	}
	if row["process_name"] != nil {
		t.Fatalf("expected mismatched column to write null, got %v", row["process_name"])
	}
}
