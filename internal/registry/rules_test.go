package registry

import (
	"testing"

	"striem/internal/detection"
)

const testRuleYAML = `
title: Round Trip Rule
level: medium
logsource:
  product: windows
detection:
  selection:
    process.name: evil.exe
  condition: selection
`

const badRuleYAML = `
title: Broken
detection:
  selection:
    field|badmod: x
  condition: selection
`

func TestPutRuleThenGetRuleIsByteEqual(t *testing.T) {
	dir := t.TempDir()
	engine := detection.NewEngine(detection.Config{})
	reg, err := NewRuleRegistry(dir, engine)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	summary, err := reg.PutRule([]byte(testRuleYAML))
	if err != nil {
		t.Fatalf("unexpected put error: %v", err)
	}

	content, ok := reg.GetRule(summary.ID)
	if !ok {
		t.Fatalf("expected rule to be retrievable after put")
	}
	if content.YAML != string(testRuleYAML) {
		t.Fatalf("expected byte-equal round trip, got %q", content.YAML)
	}
}

func TestPutRuleWithCompileErrorDoesNotMutateState(t *testing.T) {
	dir := t.TempDir()
	engine := detection.NewEngine(detection.Config{})
	reg, err := NewRuleRegistry(dir, engine)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	before := len(reg.ListRules())
	if _, err := reg.PutRule([]byte(badRuleYAML)); err == nil {
		t.Fatalf("expected compile error for unsupported modifier")
	}
	after := len(reg.ListRules())
	if before != after {
		t.Fatalf("expected registry to remain unmutated after a failed put, before=%d after=%d", before, after)
	}
}

func TestSetEnabledTwiceIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	engine := detection.NewEngine(detection.Config{})
	reg, err := NewRuleRegistry(dir, engine)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	summary, err := reg.PutRule([]byte(testRuleYAML))
	if err != nil {
		t.Fatalf("unexpected put error: %v", err)
	}

	if err := reg.SetEnabled(summary.ID, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reg.SetEnabled(summary.ID, false); err != nil {
		t.Fatalf("unexpected error on repeated call: %v", err)
	}

	content, _ := reg.GetRule(summary.ID)
	if content.Enabled {
		t.Fatalf("expected rule to remain disabled")
	}
	if engine.Snapshot().Len() != 0 {
		t.Fatalf("expected disabled rule excluded from published snapshot")
	}
}

func TestReloadFromDiskPreservesEnabledState(t *testing.T) {
	dir := t.TempDir()
	engine := detection.NewEngine(detection.Config{})
	reg, err := NewRuleRegistry(dir, engine)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	summary, err := reg.PutRule([]byte(testRuleYAML))
	if err != nil {
		t.Fatalf("unexpected put error: %v", err)
	}
	if err := reg.SetEnabled(summary.ID, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := reg.ReloadFromDisk(); err != nil {
		t.Fatalf("unexpected reload error: %v", err)
	}

	content, ok := reg.GetRule(summary.ID)
	if !ok {
		t.Fatalf("expected rule to survive reload")
	}
	if content.Enabled {
		t.Fatalf("expected disabled state to survive an fsnotify-triggered reload")
	}
	if engine.Snapshot().Len() != 0 {
		t.Fatalf("expected disabled rule still excluded from snapshot after reload")
	}
}

func TestDeleteRuleRemovesFromListAndSnapshot(t *testing.T) {
	dir := t.TempDir()
	engine := detection.NewEngine(detection.Config{})
	reg, err := NewRuleRegistry(dir, engine)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	summary, err := reg.PutRule([]byte(testRuleYAML))
	if err != nil {
		t.Fatalf("unexpected put error: %v", err)
	}

	if err := reg.DeleteRule(summary.ID); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if _, ok := reg.GetRule(summary.ID); ok {
		t.Fatalf("expected rule to be gone after delete")
	}
	if engine.Snapshot().Len() != 0 {
		t.Fatalf("expected snapshot to drop deleted rule")
	}
}
