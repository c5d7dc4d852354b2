package storage

import (
	"fmt"
	"time"

	"striem/internal/schema"
)

// Key identifies the unit of writer ownership: (class_uid, activity_id,
// date_bucket) (spec.md §3). At most one writer holds the append lock for
// a given Key at a time (enforced by Pool's creation lock).
type Key struct {
	ClassUID   int64
	ActivityID int64
	DateBucket string
}

// String renders the key for logging and quarantine bookkeeping.
func (k Key) String() string {
	return fmt.Sprintf("%d/%d/%s", k.ClassUID, k.ActivityID, k.DateBucket)
}

// DateGrain controls how event time truncates into a date bucket
// (spec.md §3, default daily).
type DateGrain int

const (
	GrainDay DateGrain = iota
	GrainHour
)

// ParseGrain maps a config string to a DateGrain, defaulting to daily.
func ParseGrain(s string) DateGrain {
	switch s {
	case "hour":
		return GrainHour
	default:
		return GrainDay
	}
}

func bucketFor(timeMillis int64, grain DateGrain) string {
	t := time.UnixMilli(timeMillis).UTC()
	switch grain {
	case GrainHour:
		return t.Format("2006-01-02T15")
	default:
		return t.Format("2006-01-02")
	}
}

// KeyFor derives the partition key for an event's class/activity/time.
func KeyFor(classUID, activityID, timeMillis int64, grain DateGrain) Key {
	return Key{ClassUID: classUID, ActivityID: activityID, DateBucket: bucketFor(timeMillis, grain)}
}

// pathFor builds the partition directory of the storage layout from
// spec.md §4.4/§6: <root>/<class_name_snake>/<activity_name_snake>/<YYYY>/<MM>/<DD>.
// The writer adds the <uuid>.parquet file name inside it.
func pathFor(root string, key Key, desc *schema.ClassDescriptor, grain DateGrain) (dir string, err error) {
	var t time.Time
	switch grain {
	case GrainHour:
		t, err = time.Parse("2006-01-02T15", key.DateBucket)
	default:
		t, err = time.Parse("2006-01-02", key.DateBucket)
	}
	if err != nil {
		return "", fmt.Errorf("parse date bucket %q: %w", key.DateBucket, err)
	}

	className := schema.SnakeName(desc.Name)
	activityName := schema.SnakeName(desc.ActivityName(key.ActivityID))

	dir = fmt.Sprintf("%s/%s/%s/%04d/%02d/%02d", root, className, activityName, t.Year(), t.Month(), t.Day())
	return dir, nil
}
