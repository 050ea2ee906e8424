package stats

import (
	"DDSSpectra/internal/model"
	"sync"
	"time"
)

// Aggregator maps a source address to its packet and byte counters for the
// current report interval. A single mutex guards the map: the listener holds it
// for one increment, the reporter for one drain, and neither holds it across I/O.
type Aggregator struct {
	mu       sync.Mutex
	sources  map[string]*model.SourceStats
	start    time.Time
	interval time.Duration
	now      func() time.Time
}

// NewAggregator creates an empty aggregator whose snapshots carry the given
// report interval for rate computation.
func NewAggregator(interval time.Duration) *Aggregator {
	return NewAggregatorWithClock(interval, time.Now)
}

// NewAggregatorWithClock is NewAggregator with a custom time source, used to
// bucket replayed traffic by capture time.
func NewAggregatorWithClock(interval time.Duration, now func() time.Time) *Aggregator {
	return &Aggregator{
		sources:  make(map[string]*model.SourceStats),
		start:    now(),
		interval: interval,
		now:      now,
	}
}

// entry returns the counters of a source, inserting them if absent.
// Callers must hold a.mu.
func (a *Aggregator) entry(source string) *model.SourceStats {
	st, ok := a.sources[source]
	if !ok {
		st = &model.SourceStats{}
		a.sources[source] = st
	}
	return st
}

// Add counts one datagram of the given length from source.
func (a *Aggregator) Add(source string, length int) {
	if length < 0 {
		length = 0
	}
	a.mu.Lock()
	st := a.entry(source)
	st.PacketCount++
	st.ByteCount += uint64(length)
	a.mu.Unlock()
}

// Drain copies the aggregate and clears it in one critical section.
// Every Add returns either before the copy (and is in this snapshot) or after
// the clear (and is in the next one).
func (a *Aggregator) Drain() model.Snapshot {
	a.mu.Lock()
	end := a.now()
	snap := model.Snapshot{
		Start:    a.start,
		End:      end,
		Interval: a.interval,
		Sources:  make(map[string]model.SourceStats, len(a.sources)),
	}
	for ip, st := range a.sources {
		snap.Sources[ip] = *st
	}
	a.sources = make(map[string]*model.SourceStats)
	a.start = end
	a.mu.Unlock()
	return snap
}

// Len returns the number of sources seen in the current interval.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sources)
}

// Get returns a copy of the counters of a source in the current interval.
func (a *Aggregator) Get(source string) (model.SourceStats, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if st, ok := a.sources[source]; ok {
		return *st, true
	}
	return model.SourceStats{}, false
}
