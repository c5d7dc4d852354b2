package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"striem/internal/schema"
)

func TestPoolRoutesEventToPartitionAndFlushes(t *testing.T) {
	root := t.TempDir()
	loader := &schema.Loader{}
	pool := New(Config{Root: root, Grain: GrainDay, MaxRows: 1, MaxBytes: 1 << 30, MaxAge: time.Hour}, loader, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	event := buildTestEvent(t)
	if err := pool.Enqueue(context.Background(), event); err != nil {
		t.Fatalf("unexpected enqueue error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		key := KeyFor(event.ClassUID, event.ActivityID, event.TimeMillis, GrainDay)
		dir, err := pathFor(root, key, schema.Generic(event.ClassUID), GrainDay)
		if err == nil {
			if entries, err := os.ReadDir(dir); err == nil && len(entries) > 0 {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for partition flush")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	<-done
}

func TestPoolDepthAndHeadroomReflectQueueOccupancy(t *testing.T) {
	pool := New(Config{Root: t.TempDir(), Grain: GrainDay, MaxRows: 1000, MaxBytes: 1 << 30, MaxAge: time.Hour, QueueDepth: 4}, &schema.Loader{}, nil)
	if pool.Depth() != 0 || pool.Headroom() != 4 {
		t.Fatalf("expected empty queue to report depth=0 headroom=4, got depth=%d headroom=%d", pool.Depth(), pool.Headroom())
	}
	if err := pool.Enqueue(context.Background(), buildTestEvent(t)); err != nil {
		t.Fatalf("unexpected enqueue error: %v", err)
	}
	if pool.Depth() != 1 || pool.Headroom() != 3 {
		t.Fatalf("expected depth=1 headroom=3 after one enqueue, got depth=%d headroom=%d", pool.Depth(), pool.Headroom())
	}
}

func TestPoolEnqueueRespectsContextDeadline(t *testing.T) {
	pool := New(Config{Root: t.TempDir(), Grain: GrainDay, MaxRows: 1000, MaxBytes: 1 << 30, MaxAge: time.Hour, QueueDepth: 1}, &schema.Loader{}, nil)
	if err := pool.Enqueue(context.Background(), buildTestEvent(t)); err != nil {
		t.Fatalf("unexpected error filling queue: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := pool.Enqueue(ctx, buildTestEvent(t)); err == nil {
		t.Fatalf("expected enqueue to fail once the queue is full and the context expires")
	}
}

func TestPoolQuarantinedWriterRoutesToDeadLetter(t *testing.T) {
	deadDir := t.TempDir()
	dead, err := newDeadLetter(filepath.Join(deadDir, "dead.jsonl"))
	if err != nil {
		t.Fatalf("unexpected error constructing dead letter: %v", err)
	}
	defer dead.Close()

	pool := New(Config{Root: t.TempDir(), Grain: GrainDay, MaxRows: 1000, MaxBytes: 1 << 30, MaxAge: time.Hour}, &schema.Loader{}, dead)

	event := buildTestEvent(t)
	key := KeyFor(event.ClassUID, event.ActivityID, event.TimeMillis, GrainDay)
	w := pool.writerFor(key, schema.Generic(event.ClassUID))
	w.quarantined.Store(true)

	pool.route(event)

	data, err := os.ReadFile(filepath.Join(deadDir, "dead.jsonl"))
	if err != nil {
		t.Fatalf("unexpected error reading dead letter file: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected quarantined event recorded to dead letter sink")
	}
}
