// Package activity persists per-request audit entries off the request path.
// Entries are handed to a bounded queue and written by a single worker;
// enqueueing never blocks and failures never reach the HTTP client.
package activity

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/getscaley/scaley/internal/model"
)

const (
	DefaultQueueSize    = 1024
	defaultWriteTimeout = 5 * time.Second
	drainTimeout        = 10 * time.Second
)

// Sink stores one audit entry. *store.Store satisfies it.
type Sink interface {
	CreateActivityLog(ctx context.Context, entry *model.ActivityLog) error
}

// Observer is notified of each entry outcome, typically to update metrics.
type Observer interface {
	ActivityWritten()
	ActivityDropped()
	ActivityFailed()
}

// Options configures a Recorder. Zero values select defaults.
type Options struct {
	QueueSize    int
	WriteTimeout time.Duration
	Logger       *slog.Logger
	Observer     Observer
}

// Stats is a snapshot of recorder counters.
type Stats struct {
	Queued  int    `json:"queued"`
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Failed  uint64 `json:"failed"`
}

// Recorder queues activity entries and writes them to a Sink in the
// background. Delivery is at most once and best effort.
type Recorder struct {
	sink         Sink
	queue        chan model.ActivityLog
	writeTimeout time.Duration
	logger       *slog.Logger
	observer     Observer

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewRecorder returns a Recorder writing to sink. Call Run to start the
// worker.
func NewRecorder(sink Sink, opts Options) *Recorder {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Recorder{
		sink:         sink,
		queue:        make(chan model.ActivityLog, opts.QueueSize),
		writeTimeout: opts.WriteTimeout,
		logger:       opts.Logger,
		observer:     opts.Observer,
	}
}

// Record enqueues entry without blocking. It reports false when the queue
// is full and the entry was dropped.
func (r *Recorder) Record(entry model.ActivityLog) bool {
	select {
	case r.queue <- entry:
		return true
	default:
		r.dropped.Add(1)
		if r.observer != nil {
			r.observer.ActivityDropped()
		}
		r.logger.Warn("activity queue full, entry dropped", "action", entry.Action)
		return false
	}
}

// Run writes queued entries until ctx is cancelled, then drains whatever is
// still queued before returning. It always returns nil; the error result
// lets it run under an errgroup.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.drain(context.WithoutCancel(ctx))
			return nil
		case entry := <-r.queue:
			r.write(ctx, entry)
		}
	}
}

// drain flushes remaining entries on shutdown, bounded by drainTimeout.
func (r *Recorder) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()

	n := 0
	for {
		select {
		case entry := <-r.queue:
			if ctx.Err() != nil {
				r.fail(entry, ctx.Err())
				continue
			}
			r.write(ctx, entry)
			n++
		default:
			if n > 0 {
				r.logger.Info("activity queue drained", "entries", n)
			}
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, entry model.ActivityLog) {
	defer func() {
		if rec := recover(); rec != nil {
			r.failed.Add(1)
			if r.observer != nil {
				r.observer.ActivityFailed()
			}
			r.logger.Error("panic writing activity entry",
				"action", entry.Action,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	if err := r.sink.CreateActivityLog(ctx, &entry); err != nil {
		r.fail(entry, err)
		return
	}
	r.written.Add(1)
	if r.observer != nil {
		r.observer.ActivityWritten()
	}
}

func (r *Recorder) fail(entry model.ActivityLog, err error) {
	r.failed.Add(1)
	if r.observer != nil {
		r.observer.ActivityFailed()
	}
	r.logger.Error("failed to write activity entry", "action", entry.Action, "error", err)
}

// Stats returns the current counters.
func (r *Recorder) Stats() Stats {
	return Stats{
		Queued:  len(r.queue),
		Written: r.written.Load(),
		Dropped: r.dropped.Load(),
		Failed:  r.failed.Load(),
	}
}
