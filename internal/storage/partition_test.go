package storage

import (
	"testing"

	"striem/internal/schema"
)

func TestKeyForBucketsByDay(t *testing.T) {
	t0 := int64(1700000000000)
	t1 := t0 + 3600_000
	key0 := KeyFor(4001, 1, t0, GrainDay)
	key1 := KeyFor(4001, 1, t1, GrainDay)
	if key0.DateBucket != key1.DateBucket {
		t.Fatalf("expected same-day timestamps to share a bucket, got %s vs %s", key0.DateBucket, key1.DateBucket)
	}
}

func TestKeyForBucketsByHourWhenConfigured(t *testing.T) {
	t0 := int64(1700000000000)
	t1 := t0 + 3600_000
	key0 := KeyFor(4001, 1, t0, GrainHour)
	key1 := KeyFor(4001, 1, t1, GrainHour)
	if key0.DateBucket == key1.DateBucket {
		t.Fatalf("expected hour-grain timestamps one hour apart to differ, got %s", key0.DateBucket)
	}
}

func TestPathForLayout(t *testing.T) {
	desc := &schema.ClassDescriptor{
		Name:       "Process Activity",
		Activities: map[string]string{"1": "Launch"},
	}
	key := KeyFor(4001, 1, 1700000000000, GrainDay)
	dir, err := pathFor("/data", key, desc, GrainDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "/data/process_activity/launch/2023/11/14"
	if dir != want {
		t.Fatalf("expected %s, got %s", want, dir)
	}
}

func TestParseGrainDefaultsToDay(t *testing.T) {
	if ParseGrain("bogus") != GrainDay {
		t.Fatalf("expected unknown grain string to default to day")
	}
	if ParseGrain("hour") != GrainHour {
		t.Fatalf("expected 'hour' to parse as GrainHour")
	}
}
