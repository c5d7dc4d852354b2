// Package storage implements the buffered, partitioned Parquet writer pool
// from spec.md §4.4: events are grouped by OCSF class/activity, buffered
// under size/time thresholds, and atomically materialized as Parquet
// files. It is grounded on the teacher's output writer constructors
// (internal/output/*/writer.go: wrapped errors, mutex-guarded state) and
// its pipeline's bounded-channel backpressure shape
// (internal/pipeline/adjacency_redis_pipeline.go), generalized from a
// single JSON-lines sink to a per-partition-key pool of Parquet writers.
package storage

import (
	"context"
	"sync"
	"time"

	"striem/internal/logger"
	"striem/internal/metrics"
	"striem/internal/schema"
	"striem/pkg/ocsf"
)

// Config controls pool-wide behavior.
type Config struct {
	Root       string
	Grain      DateGrain
	MaxRows    int
	MaxBytes   int64
	MaxAge     time.Duration
	QueueDepth int
}

// Pool owns one Writer per partition key, lazily created on first event
// (spec.md §3 "Lifecycles: Writers"). The map itself is guarded by a
// short-lived mutex for insert/lookup; each Writer has its own buffer lock
// so hot paths do not contend on the map (spec.md §5/§9).
type Pool struct {
	cfg     Config
	loader  *schema.Loader
	warned  sync.Map // class_uid -> struct{} logged-once schema warnings
	mu      sync.Mutex
	writers map[Key]*Writer
	queue   chan *ocsf.Event
	dead    *deadLetter
	wg      sync.WaitGroup
}

// New creates a writer pool backed by the given schema loader and an
// optional dead-letter sink for quarantined events.
func New(cfg Config, loader *schema.Loader, dead *deadLetter) *Pool {
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 256
	}
	return &Pool{
		cfg:     cfg,
		loader:  loader,
		writers: make(map[Key]*Writer),
		queue:   make(chan *ocsf.Event, cfg.QueueDepth),
		dead:    dead,
	}
}

// Enqueue admits an event to the pool's bounded work queue. It blocks up
// to ctx's deadline; the caller (the ingest server's admission policy,
// spec.md §4.1) translates a context deadline exceeded here into
// ResourceExhausted.
func (p *Pool) Enqueue(ctx context.Context, event *ocsf.Event) error {
	select {
	case p.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the work queue, routing each event to its partition writer,
// until ctx is canceled; it then routes whatever is still queued and
// flushes every writer once before returning (spec.md §5 "writers flush
// their buffers" on shutdown).
func (p *Pool) Run(ctx context.Context) {
	p.wg.Add(1)
	defer p.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			for drained := false; !drained; {
				select {
				case event := <-p.queue:
					p.route(event)
				default:
					drained = true
				}
			}
			p.flushAll()
			return
		case event, ok := <-p.queue:
			if !ok {
				p.flushAll()
				return
			}
			p.route(event)
		case <-ticker.C:
			p.flushAged()
		}
	}
}

// Close waits for a running Run to return, then drains remaining buffered
// events from every writer synchronously. Used by the orchestrator's
// shutdown path after it cancels Run's context.
func (p *Pool) Close() error {
	p.wg.Wait()
	p.flushAll()
	return nil
}

// Depth and Headroom back the ingest server's HealthCheck queue probe.
func (p *Pool) Depth() int    { return len(p.queue) }
func (p *Pool) Headroom() int { return cap(p.queue) - len(p.queue) }

func (p *Pool) route(event *ocsf.Event) {
	desc, known := p.loader.Lookup(event.ClassUID)
	if !known {
		p.warnOnce(event.ClassUID)
		metrics.SchemaFallback(event.ClassUID)
	}

	key := KeyFor(event.ClassUID, event.ActivityID, event.TimeMillis, p.cfg.Grain)
	w := p.writerFor(key, desc)

	if w.Quarantined() {
		metrics.StorageQuarantinedDrop(key.String())
		if p.dead != nil {
			p.dead.Record(key.String(), event)
		}
		return
	}

	if w.Append(event) {
		if err := w.Flush(); err != nil {
			logger.Errorf("Failed to flush partition %s: %v", key, err)
			metrics.StorageFlushFailure(key.String())
		} else {
			metrics.StorageFlushSuccess(key.String())
		}
	}
}

func (p *Pool) writerFor(key Key, desc *schema.ClassDescriptor) *Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[key]; ok {
		return w
	}
	w := newWriter(key, p.cfg.Root, p.cfg.Grain, desc, flushConfig{
		MaxRows:  p.cfg.MaxRows,
		MaxBytes: p.cfg.MaxBytes,
		MaxAge:   p.cfg.MaxAge,
	})
	p.writers[key] = w
	return w
}

func (p *Pool) flushAged() {
	p.mu.Lock()
	writers := make([]*Writer, 0, len(p.writers))
	for _, w := range p.writers {
		writers = append(writers, w)
	}
	p.mu.Unlock()

	for _, w := range writers {
		if w.Quarantined() {
			continue
		}
		if w.Aged() {
			if err := w.Flush(); err != nil {
				logger.Errorf("Failed to age-flush partition %s: %v", w.key, err)
				metrics.StorageFlushFailure(w.key.String())
			} else {
				metrics.StorageFlushSuccess(w.key.String())
			}
		}
	}
}

func (p *Pool) flushAll() {
	p.mu.Lock()
	writers := make([]*Writer, 0, len(p.writers))
	for _, w := range p.writers {
		writers = append(writers, w)
	}
	p.mu.Unlock()

	for _, w := range writers {
		if err := w.Flush(); err != nil {
			logger.Errorf("Failed to flush partition %s during shutdown: %v", w.key, err)
		}
	}
}

func (p *Pool) warnOnce(classUID int64) {
	if _, loaded := p.warned.LoadOrStore(classUID, struct{}{}); !loaded {
		logger.Warnf("Unknown OCSF class_uid=%d, falling back to generic schema", classUID)
	}
}
