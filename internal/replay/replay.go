// Package replay feeds captured traffic through the aggregation and report
// path, bucketing datagrams into report intervals by capture time.
package replay

import (
	"DDSSpectra/internal/engine/protocol"
	"DDSSpectra/internal/engine/reporter"
	"DDSSpectra/internal/engine/stats"
	"DDSSpectra/internal/model"
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// Result summarises a replay run.
type Result struct {
	Datagrams uint64 // read from the capture
	Matched   uint64 // addressed to a monitored endpoint and counted
	Reports   uint64
}

// Replayer aggregates datagrams addressed to the monitored endpoints.
type Replayer struct {
	endpoints map[string]struct{}
	interval  time.Duration
	sink      model.Sink
	logger    *log.Logger
	accept    func([]byte) bool
}

// New creates a replayer. An empty endpoint list matches every destination.
func New(endpoints []model.Endpoint, interval time.Duration, sink model.Sink, logger *log.Logger) *Replayer {
	set := make(map[string]struct{}, len(endpoints))
	for _, ep := range endpoints {
		set[ep.String()] = struct{}{}
	}
	return &Replayer{
		endpoints: set,
		interval:  interval,
		sink:      sink,
		logger:    logger,
		accept:    protocol.Accepts,
	}
}

func (r *Replayer) monitored(ep model.Endpoint) bool {
	if len(r.endpoints) == 0 {
		return true
	}
	_, ok := r.endpoints[ep.String()]
	return ok
}

// Run consumes in until it is closed and emits one report per interval of
// capture time, including empty ones for gaps in the traffic. The last,
// possibly partial, interval is flushed at the end.
func (r *Replayer) Run(ctx context.Context, in <-chan *model.Datagram) (Result, error) {
	var (
		res       Result
		clock     time.Time
		bucketEnd time.Time
		agg       *stats.Aggregator
		rep       *reporter.Reporter
	)

	for {
		var dg *model.Datagram
		var ok bool
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case dg, ok = <-in:
		}
		if !ok {
			break
		}

		res.Datagrams++
		if !r.monitored(dg.Destination) || !r.accept(dg.Payload) {
			continue
		}

		if agg == nil {
			clock = dg.Timestamp
			agg = stats.NewAggregatorWithClock(r.interval, func() time.Time { return clock })
			rep = reporter.New(agg, r.sink, r.interval, r.logger)
			bucketEnd = clock.Add(r.interval)
		}
		for !dg.Timestamp.Before(bucketEnd) {
			clock = bucketEnd
			rep.Flush(ctx)
			bucketEnd = bucketEnd.Add(r.interval)
		}

		agg.Add(dg.Source.String(), len(dg.Payload))
		res.Matched++
	}

	if rep != nil {
		clock = bucketEnd
		rep.Flush(ctx)
		res.Reports = rep.Reports()
	}
	r.logger.Info("Replay finished", "datagrams", res.Datagrams, "matched", res.Matched, "reports", res.Reports)
	return res, nil
}
