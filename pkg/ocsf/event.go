package ocsf

import (
	"fmt"
	"strings"
)

// DetectionFindingClassUID is the OCSF class used for detection findings
// (spec.md §3/§4.3). Findings of this class are excluded from rule
// evaluation to avoid the re-ingestion recursion noted in spec.md §9.
const DetectionFindingClassUID = 2004

// Event is the canonical in-memory form of an accepted record. It is
// immutable once built: every exported accessor returns copies or
// read-only views.
type Event struct {
	ClassUID   int64
	ActivityID int64
	TimeMillis int64
	Metadata   map[string]Value
	Fields     map[string]Value
}

// NewEventFromNative builds an Event from a decoded JSON value, the shape
// the gRPC ingest server receives per event in a batch. It returns a
// positioned error (the missing/invalid field name) so the server can
// report which offset in the batch failed to decode.
func NewEventFromNative(raw interface{}) (*Event, error) {
	root, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("event is not an object")
	}

	classUID, ok := numField(root, "class_uid")
	if !ok {
		return nil, fmt.Errorf("missing or non-numeric class_uid")
	}
	activityID, _ := numField(root, "activity_id")
	timeMillis, ok := numField(root, "time")
	if !ok {
		return nil, fmt.Errorf("missing or non-numeric time")
	}

	metadata := map[string]Value{}
	if rawMeta, ok := root["metadata"]; ok {
		v := FromNative(rawMeta)
		if m, ok := v.Map(); ok {
			metadata = m
		} else {
			return nil, fmt.Errorf("metadata must be an object")
		}
	}

	fields := make(map[string]Value, len(root))
	for k, v := range root {
		switch k {
		case "class_uid", "activity_id", "time", "metadata":
			continue
		default:
			fields[k] = FromNative(v)
		}
	}

	return &Event{
		ClassUID:   int64(classUID),
		ActivityID: int64(activityID),
		TimeMillis: int64(timeMillis),
		Metadata:   metadata,
		Fields:     fields,
	}, nil
}

func numField(root map[string]interface{}, key string) (float64, bool) {
	v, ok := root[key]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

// Get performs a dotted-path lookup across metadata/fields, matching the
// Sigma field-path semantics: "metadata.product.name" resolves against
// Metadata, anything else against Fields.
func (e *Event) Get(path string) (Value, bool) {
	if e == nil {
		return Null(), false
	}
	if rest, ok := strings.CutPrefix(path, "metadata."); ok {
		return Map(e.Metadata).Get(rest)
	}
	if path == "metadata" {
		return Map(e.Metadata), true
	}
	return Map(e.Fields).Get(path)
}

// LogsourceValue returns the lower-cased metadata string at "product.<key>"
// style paths used as Sigma logsource selectors, e.g. "product.vendor_name".
func (e *Event) LogsourceValue(path string) string {
	v, ok := e.Get("metadata." + path)
	if !ok {
		return ""
	}
	s, _ := v.AsString()
	return strings.ToLower(strings.TrimSpace(s))
}

// IsDetectionFinding reports whether this event is itself a finding record,
// used to exclude findings from rule re-evaluation (spec.md §9).
func (e *Event) IsDetectionFinding() bool {
	return e != nil && e.ClassUID == DetectionFindingClassUID
}

// Native flattens the event back into a plain map for handoff to the Sigma
// evaluator and to JSON encoders.
func (e *Event) Native() map[string]interface{} {
	out := make(map[string]interface{}, len(e.Fields)+4)
	for k, v := range e.Fields {
		out[k] = v.Native()
	}
	out["class_uid"] = e.ClassUID
	out["activity_id"] = e.ActivityID
	out["time"] = e.TimeMillis
	if len(e.Metadata) > 0 {
		out["metadata"] = Map(e.Metadata).Native()
	}
	return out
}
