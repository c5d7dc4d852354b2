package ocsf

// Finding is an OCSF detection-finding record (class_uid
// DetectionFindingClassUID) synthesized by the detection engine when a
// Sigma rule matches an event (spec.md §3/§4.3).
type Finding struct {
	RuleUID    string
	RuleTitle  string
	Severity   int
	TimeMillis int64
	Event      *Event
}

// SeverityFromLevel maps a Sigma rule level string to the OCSF severity
// scale defined in spec.md §4.3.
func SeverityFromLevel(level string) int {
	switch level {
	case "informational":
		return 1
	case "low":
		return 2
	case "medium":
		return 3
	case "high":
		return 4
	case "critical":
		return 5
	default:
		return 1
	}
}

// ToEvent projects a Finding back into an Event so it flows through
// storage like any other record (spec.md §3: "Findings ... passed back
// through storage").
func (f *Finding) ToEvent() *Event {
	fields := map[string]Value{
		"finding": Map(map[string]Value{
			"rule_uid": String(f.RuleUID),
			"title":    String(f.RuleTitle),
		}),
		"severity": Int(int64(f.Severity)),
		"evidences": Array(Map(map[string]Value{
			"event": Map(f.Event.Fields),
		})),
	}
	metadata := f.Event.Metadata
	return &Event{
		ClassUID:   DetectionFindingClassUID,
		ActivityID: 1,
		TimeMillis: f.TimeMillis,
		Metadata:   metadata,
		Fields:     fields,
	}
}
