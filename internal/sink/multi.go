package sink

import (
	"DDSSpectra/internal/model"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Multi delivers each snapshot to several sinks in order. A failing or
// panicking sink does not keep the others from receiving the snapshot.
type Multi []model.Sink

// Name lists the wrapped sinks.
func (m Multi) Name() string {
	names := make([]string, len(m))
	for i, s := range m {
		names[i] = s.Name()
	}
	return "multi(" + strings.Join(names, ",") + ")"
}

// Report implements model.Sink.
func (m Multi) Report(ctx context.Context, snap model.Snapshot) error {
	var errs []error
	for _, s := range m {
		if err := reportOne(ctx, s, snap); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func reportOne(ctx context.Context, s model.Sink, snap model.Snapshot) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return s.Report(ctx, snap)
}

// Latest keeps the most recent snapshot for readers outside the report path.
type Latest struct {
	mu      sync.RWMutex
	snap    model.Snapshot
	ok      bool
	reports uint64
}

// NewLatest creates an empty Latest.
func NewLatest() *Latest {
	return &Latest{}
}

// Name implements model.Sink.
func (l *Latest) Name() string { return "latest" }

// Report implements model.Sink.
func (l *Latest) Report(ctx context.Context, snap model.Snapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snap = snap
	l.ok = true
	l.reports++
	return nil
}

// Get returns the last snapshot and whether one has been reported yet.
func (l *Latest) Get() (model.Snapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap, l.ok
}

// Reports returns the number of snapshots received.
func (l *Latest) Reports() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.reports
}

// Close closes every wrapped sink that holds resources.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, Close(s))
	}
	return errors.Join(errs...)
}

// Close releases s if it implements io.Closer.
func Close(s model.Sink) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
