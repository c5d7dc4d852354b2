package sigma

import (
	"context"
	"testing"

	"striem/pkg/ocsf"
)

const exactMatchRule = `
title: Suspicious PowerShell Download
id: 11111111-1111-1111-1111-111111111111
level: high
logsource:
  category: process_creation
  product: windows
detection:
  selection:
    process.name: powershell.exe
  condition: selection
`

const containsModifierRule = `
title: Download Cradle
level: medium
logsource:
  category: process_creation
  product: windows
detection:
  selection:
    CommandLine|contains: 'DownloadString'
  condition: selection
`

const unsupportedModifierRule = `
title: Bad Modifier Rule
level: low
logsource:
  product: windows
detection:
  selection:
    CommandLine|windash: 'foo'
  condition: selection
`

func mustCompile(t *testing.T, yaml string) *CompiledRule {
	t.Helper()
	rule, err := Compile([]byte(yaml))
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	return rule
}

func TestCompileExactMatchRuleMatches(t *testing.T) {
	rule := mustCompile(t, exactMatchRule)
	if rule.ID != "11111111-1111-1111-1111-111111111111" {
		t.Fatalf("expected rule id from yaml, got %s", rule.ID)
	}

	event, err := ocsf.NewEventFromNative(map[string]interface{}{
		"class_uid": float64(1),
		"time":      float64(1),
		"metadata": map[string]interface{}{
			"product": map[string]interface{}{"name": "windows"},
		},
		"process": map[string]interface{}{"name": "powershell.exe"},
	})
	if err != nil {
		t.Fatalf("unexpected event error: %v", err)
	}

	matched, err := rule.Matches(context.Background(), event)
	if err != nil {
		t.Fatalf("unexpected match error: %v", err)
	}
	if !matched {
		t.Fatalf("expected rule to match exact process name")
	}
}

func TestCompileAssignsDeterministicIDWhenOmitted(t *testing.T) {
	rule := mustCompile(t, containsModifierRule)
	if rule.ID == "" {
		t.Fatalf("expected a generated rule id")
	}

	again, err := Compile([]byte(containsModifierRule))
	if err != nil {
		t.Fatalf("unexpected error on second compile: %v", err)
	}
	if again.ID != rule.ID {
		t.Fatalf("expected stable id across recompiles, got %s and %s", rule.ID, again.ID)
	}
}

func TestCompileRejectsUnsupportedModifier(t *testing.T) {
	if _, err := Compile([]byte(unsupportedModifierRule)); err == nil {
		t.Fatalf("expected compile error for unsupported modifier")
	}
}

func TestMatchesLogsourceRequiresAllNonEmptyKeys(t *testing.T) {
	rule := mustCompile(t, exactMatchRule)

	matchingEvent, _ := ocsf.NewEventFromNative(map[string]interface{}{
		"class_uid": float64(1),
		"time":      float64(1),
		"metadata": map[string]interface{}{
			"category": "process_creation",
			"product":  map[string]interface{}{"name": "windows"},
		},
	})
	if !rule.MatchesLogsource(matchingEvent) {
		t.Fatalf("expected logsource match")
	}

	mismatchEvent, _ := ocsf.NewEventFromNative(map[string]interface{}{
		"class_uid": float64(1),
		"time":      float64(1),
		"metadata": map[string]interface{}{
			"category": "network",
			"product":  map[string]interface{}{"name": "windows"},
		},
	})
	if rule.MatchesLogsource(mismatchEvent) {
		t.Fatalf("expected logsource mismatch for different category")
	}
}
