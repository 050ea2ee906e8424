package reporter

import (
	"DDSSpectra/internal/model"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// Drainer hands out the aggregate of the interval that just ended and starts a new one.
type Drainer interface {
	Drain() model.Snapshot
}

// Reporter drains the aggregate on a fixed interval and hands every snapshot,
// empty or not, to a sink.
type Reporter struct {
	source   Drainer
	sink     model.Sink
	interval time.Duration
	logger   *log.Logger

	// mu serialises sink calls so snapshots are delivered in drain order,
	// including the final flush issued while shutting down.
	mu      sync.Mutex
	reports atomic.Uint64
}

// New creates a reporter. interval must be positive.
func New(source Drainer, sink model.Sink, interval time.Duration, logger *log.Logger) *Reporter {
	return &Reporter{
		source:   source,
		sink:     sink,
		interval: interval,
		logger:   logger,
	}
}

// Run flushes once per interval until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				return nil
			}
			r.Flush(ctx)
		}
	}
}

// Flush drains the aggregate and delivers it to the sink immediately.
func (r *Reporter) Flush(ctx context.Context) model.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.source.Drain()
	if err := r.deliver(ctx, snap); err != nil {
		r.logger.Error("Failed to deliver report", "sink", r.sink.Name(), "err", err)
	}
	r.reports.Add(1)
	return snap
}

// Reports returns how many snapshots have been handed to the sink.
func (r *Reporter) Reports() uint64 {
	return r.reports.Load()
}

// deliver isolates a misbehaving sink so it cannot take the reporter down.
func (r *Reporter) deliver(ctx context.Context, snap model.Snapshot) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sink %s panicked: %v", r.sink.Name(), p)
		}
	}()
	return r.sink.Report(ctx, snap)
}
