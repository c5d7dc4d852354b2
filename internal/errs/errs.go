// Package errs defines the error taxonomy from spec.md §7. Each type
// satisfies error and is wrapped with %w at component boundaries, matching
// the teacher's convention of fmt.Errorf("...: %w", err) in every writer
// and consumer constructor.
package errs

import "fmt"

// ConfigError signals invalid or missing startup configuration. Fatal at
// boot, non-retryable.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error (%s): %v", e.Field, e.Err)
}
func (e *ConfigError) Unwrap() error { return e.Err }

// RuleCompileError is a positioned Sigma YAML error surfaced through the
// registry's put operation. It never affects the running detection engine.
type RuleCompileError struct {
	Path string
	Rule string
	Err  error
}

func (e *RuleCompileError) Error() string {
	return fmt.Sprintf("rule compile error (%s, rule=%s): %v", e.Path, e.Rule, e.Err)
}
func (e *RuleCompileError) Unwrap() error { return e.Err }

// SchemaError marks an unknown OCSF class encountered at write time. The
// writer pool degrades to the generic schema and logs this once per class.
type SchemaError struct {
	ClassUID int64
	Err      error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error (class_uid=%d): %v", e.ClassUID, e.Err)
}
func (e *SchemaError) Unwrap() error { return e.Err }

// IngestError covers decode failures and backpressure rejections at the
// gRPC boundary; it is surfaced as a gRPC status so the upstream collector
// can retry.
type IngestError struct {
	Offset int
	Err    error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest error (offset=%d): %v", e.Offset, e.Err)
}
func (e *IngestError) Unwrap() error { return e.Err }

// StorageError covers partition write failures. A failed flush is
// transient while the writer still has retries left; Persistent is set once
// the writer has exhausted them and quarantined the partition. The storage
// pool logs and counts both kinds; neither escalates to process shutdown.
type StorageError struct {
	PartitionKey string
	Persistent   bool
	Err          error
}

func (e *StorageError) Error() string {
	kind := "transient"
	if e.Persistent {
		kind = "persistent"
	}
	return fmt.Sprintf("storage error (%s, partition=%s): %v", kind, e.PartitionKey, e.Err)
}
func (e *StorageError) Unwrap() error { return e.Err }

// ActionError covers outbound webhook/action-invocation failures. Logged,
// never retried by the core.
type ActionError struct {
	Target string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action error (%s): %v", e.Target, e.Err)
}
func (e *ActionError) Unwrap() error { return e.Err }
