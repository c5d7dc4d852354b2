package detection

import (
	"context"
	"testing"

	"striem/internal/sigma"
	"striem/pkg/ocsf"
)

const windowsProcessRule = `
title: Exact Process Match
level: critical
logsource:
  product: windows
detection:
  selection:
    process.name: evil.exe
  condition: selection
`

func newTestEvent(t *testing.T, processName string, classUID int64) *ocsf.Event {
	t.Helper()
	event, err := ocsf.NewEventFromNative(map[string]interface{}{
		"class_uid": float64(classUID),
		"time":      float64(1),
		"metadata": map[string]interface{}{
			"product": map[string]interface{}{"name": "windows"},
		},
		"process": map[string]interface{}{"name": processName},
	})
	if err != nil {
		t.Fatalf("unexpected event build error: %v", err)
	}
	return event
}

func TestEvaluateWithEmptySnapshotReturnsNoFindings(t *testing.T) {
	engine := NewEngine(Config{})
	findings, err := engine.Evaluate(context.Background(), newTestEvent(t, "evil.exe", 4001))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("expected no findings with empty snapshot, got %d", len(findings))
	}
}

func TestEvaluateProducesFindingOnMatch(t *testing.T) {
	rule, err := sigma.Compile([]byte(windowsProcessRule))
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}

	engine := NewEngine(Config{})
	engine.ReplaceSnapshot(NewSnapshot([]*sigma.CompiledRule{rule}))

	findings, err := engine.Evaluate(context.Background(), newTestEvent(t, "evil.exe", 4001))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].Severity != ocsf.SeverityFromLevel("critical") {
		t.Fatalf("unexpected severity: %d", findings[0].Severity)
	}
}

func TestEvaluateNeverRunsAgainstDetectionFindings(t *testing.T) {
	rule, err := sigma.Compile([]byte(windowsProcessRule))
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}

	engine := NewEngine(Config{})
	engine.ReplaceSnapshot(NewSnapshot([]*sigma.CompiledRule{rule}))

	findingEvent := newTestEvent(t, "evil.exe", ocsf.DetectionFindingClassUID)
	findings, err := engine.Evaluate(context.Background(), findingEvent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("expected findings to be excluded from rule evaluation, got %d", len(findings))
	}
}

func TestReplaceSnapshotSwapsRuleSet(t *testing.T) {
	engine := NewEngine(Config{})
	rule, err := sigma.Compile([]byte(windowsProcessRule))
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}

	before := engine.Snapshot()
	if before.Len() != 0 {
		t.Fatalf("expected empty initial snapshot")
	}

	engine.ReplaceSnapshot(NewSnapshot([]*sigma.CompiledRule{rule}))
	after := engine.Snapshot()
	if after.Len() != 1 {
		t.Fatalf("expected 1 rule after replace, got %d", after.Len())
	}
	if before.Len() != 0 {
		t.Fatalf("expected previously captured snapshot reference to remain unchanged, got %d", before.Len())
	}
}
