package ocsf

import "testing"

func TestNewEventFromNativeParsesClassActivityAndTime(t *testing.T) {
	raw := map[string]interface{}{
		"class_uid":   float64(4001),
		"activity_id": float64(1),
		"time":        float64(1700000000000),
		"metadata": map[string]interface{}{
			"product": map[string]interface{}{"name": "sysmon", "vendor_name": "microsoft"},
		},
		"process": map[string]interface{}{"name": "cmd.exe"},
	}

	event, err := NewEventFromNative(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.ClassUID != 4001 || event.ActivityID != 1 || event.TimeMillis != 1700000000000 {
		t.Fatalf("unexpected event fields: %+v", event)
	}
	if got := event.LogsourceValue("product.name"); got != "sysmon" {
		t.Fatalf("expected logsource product.name=sysmon, got %q", got)
	}
	val, ok := event.Get("process.name")
	if !ok {
		t.Fatalf("expected process.name to resolve")
	}
	if s, _ := val.AsString(); s != "cmd.exe" {
		t.Fatalf("expected process.name=cmd.exe, got %q", s)
	}
}

func TestNewEventFromNativeRejectsMissingClassUID(t *testing.T) {
	_, err := NewEventFromNative(map[string]interface{}{"time": float64(1)})
	if err == nil {
		t.Fatalf("expected error for missing class_uid")
	}
}

func TestNewEventFromNativeRejectsNonObjectMetadata(t *testing.T) {
	raw := map[string]interface{}{
		"class_uid": float64(1),
		"time":      float64(1),
		"metadata":  "not-an-object",
	}
	if _, err := NewEventFromNative(raw); err == nil {
		t.Fatalf("expected error for non-object metadata")
	}
}

func TestIsDetectionFinding(t *testing.T) {
	event := &Event{ClassUID: DetectionFindingClassUID}
	if !event.IsDetectionFinding() {
		t.Fatalf("expected class_uid %d to be a detection finding", DetectionFindingClassUID)
	}
	other := &Event{ClassUID: 4001}
	if other.IsDetectionFinding() {
		t.Fatalf("did not expect class_uid 4001 to be a detection finding")
	}
}

func TestEventNativeRoundTrip(t *testing.T) {
	raw := map[string]interface{}{
		"class_uid": float64(4001),
		"time":      float64(5),
		"metadata":  map[string]interface{}{"product": map[string]interface{}{"name": "x"}},
		"count":     float64(3),
	}
	event, err := NewEventFromNative(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	native := event.Native()
	if native["class_uid"] != int64(4001) {
		t.Fatalf("expected class_uid round-tripped as int64, got %T %v", native["class_uid"], native["class_uid"])
	}
}
