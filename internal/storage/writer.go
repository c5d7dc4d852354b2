package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	localsource "github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	pqwriter "github.com/xitongsys/parquet-go/writer"

	"striem/internal/errs"
	"striem/internal/logger"
	"striem/internal/schema"
	"striem/pkg/ocsf"
)

// flushConfig carries the three size/time thresholds from spec.md §4.4.
type flushConfig struct {
	MaxRows  int
	MaxBytes int64
	MaxAge   time.Duration
}

// Writer is the unit of serialization for one partition key. It buffers
// rows in memory and materializes them to a partitioned Parquet file on
// flush, following the teacher's writer-constructor idiom (mutex-guarded
// state, wrapped errors) from internal/output/*/writer.go, generalized
// from JSON-lines append to buffered, atomically-renamed Parquet files.
type Writer struct {
	mu sync.Mutex

	key   Key
	root  string
	grain DateGrain
	desc  *schema.ClassDescriptor
	flush flushConfig

	rows        []map[string]interface{}
	bufferBytes int64
	firstRowAt  time.Time

	typeMismatches atomic.Uint64
	quarantined    atomic.Bool
	flushFailures  int
}

const maxFlushRetries = 3

func newWriter(key Key, root string, grain DateGrain, desc *schema.ClassDescriptor, flush flushConfig) *Writer {
	return &Writer{key: key, root: root, grain: grain, desc: desc, flush: flush}
}

// Append buffers a projected row and reports whether a size/row-count
// threshold was crossed (age is checked separately by the pool's ticker).
func (w *Writer) Append(event *ocsf.Event) (shouldFlush bool) {
	row, mismatches := project(event, w.desc)
	if mismatches > 0 {
		w.typeMismatches.Add(uint64(mismatches))
	}

	encoded, _ := json.Marshal(row)

	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.rows) == 0 {
		w.firstRowAt = time.Now()
	}
	w.rows = append(w.rows, row)
	w.bufferBytes += int64(len(encoded))

	return len(w.rows) >= w.flush.MaxRows || w.bufferBytes >= w.flush.MaxBytes
}

// Aged reports whether the oldest buffered row has sat longer than
// MaxAge (spec.md §4.4 flush trigger).
func (w *Writer) Aged() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.rows) == 0 {
		return false
	}
	return time.Since(w.firstRowAt) >= w.flush.MaxAge
}

// Quarantined reports whether this writer has given up retrying flushes
// (spec.md §7 StorageError transient-then-quarantine policy).
func (w *Writer) Quarantined() bool {
	return w.quarantined.Load()
}

// Flush materializes the buffer to a Parquet file, atomically (spec.md
// §4.4 "Atomic materialization"). On failure the buffer is retained for a
// retry on the next flush tick, up to maxFlushRetries, after which the
// partition is quarantined and further appends are dropped by the caller
// (Pool checks Quarantined before routing to this writer).
func (w *Writer) Flush() error {
	w.mu.Lock()
	if len(w.rows) == 0 {
		w.mu.Unlock()
		return nil
	}
	rows := w.rows
	w.mu.Unlock()

	if err := w.materialize(rows); err != nil {
		w.mu.Lock()
		w.flushFailures++
		failures := w.flushFailures
		w.mu.Unlock()

		if failures >= maxFlushRetries {
			w.quarantined.Store(true)
			logger.Errorf("Quarantining partition %s after %d failed flush attempts: %v", w.key, failures, err)
		}
		return &errs.StorageError{PartitionKey: w.key.String(), Persistent: failures >= maxFlushRetries, Err: err}
	}

	w.mu.Lock()
	w.rows = w.rows[len(rows):]
	w.bufferBytes = 0
	w.flushFailures = 0
	if len(w.rows) > 0 {
		w.firstRowAt = time.Now()
	}
	w.mu.Unlock()
	return nil
}

func (w *Writer) materialize(rows []map[string]interface{}) error {
	dir, err := pathFor(w.root, w.key, w.desc, w.grain)
	if err != nil {
		return fmt.Errorf("compute partition path: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create partition directory: %w", err)
	}

	finalName := uuid.NewString() + ".parquet"
	finalPath := dir + "/" + finalName
	tempPath := dir + "/." + finalName + ".tmp-" + fmt.Sprintf("%d", os.Getpid())

	pqSchema, err := buildParquetSchema(w.desc)
	if err != nil {
		return fmt.Errorf("build parquet schema: %w", err)
	}

	fw, err := localsource.NewLocalFileWriter(tempPath)
	if err != nil {
		return fmt.Errorf("open temp file: %w", err)
	}

	pw, err := pqwriter.NewJSONWriter(pqSchema, fw, 4)
	if err != nil {
		fw.Close()
		os.Remove(tempPath)
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	pw.RowGroupSize = 64 * 1024 * 1024

	for _, row := range rows {
		encoded, err := json.Marshal(row)
		if err != nil {
			continue
		}
		if err := pw.Write(string(encoded)); err != nil {
			pw.WriteStop()
			fw.Close()
			os.Remove(tempPath)
			return fmt.Errorf("write row: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		fw.Close()
		os.Remove(tempPath)
		return fmt.Errorf("finalize parquet footer: %w", err)
	}
	if err := fw.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if f, err := os.OpenFile(tempPath, os.O_RDWR, 0644); err == nil {
		_ = f.Sync()
		f.Close()
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
