package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_CountsPerSource(t *testing.T) {
	agg := NewAggregator(5 * time.Second)

	lengths := map[string][]int{
		"10.0.0.1": {100, 200, 0, 50},
		"10.0.0.2": {1500},
	}
	for src, ls := range lengths {
		for _, l := range ls {
			agg.Add(src, l)
		}
	}

	st, ok := agg.Get("10.0.0.1")
	require.True(t, ok)
	assert.Equal(t, uint64(4), st.PacketCount)
	assert.Equal(t, uint64(350), st.ByteCount)

	st, ok = agg.Get("10.0.0.2")
	require.True(t, ok)
	assert.Equal(t, uint64(1), st.PacketCount)
	assert.Equal(t, uint64(1500), st.ByteCount)

	_, ok = agg.Get("10.0.0.3")
	assert.False(t, ok)
	assert.Equal(t, 2, agg.Len())
}

func TestAggregator_ZeroLengthDatagram(t *testing.T) {
	agg := NewAggregator(time.Second)
	agg.Add("10.0.0.1", 0)
	agg.Add("10.0.0.1", -3)

	snap := agg.Drain()
	assert.Equal(t, uint64(2), snap.Sources["10.0.0.1"].PacketCount)
	assert.Equal(t, uint64(0), snap.Sources["10.0.0.1"].ByteCount)
}

func TestAggregator_DrainClears(t *testing.T) {
	agg := NewAggregator(5 * time.Second)
	for i := 0; i < 100; i++ {
		agg.Add("192.168.1.10", 1000)
	}

	snap := agg.Drain()
	require.Len(t, snap.Sources, 1)
	st := snap.Sources["192.168.1.10"]
	assert.Equal(t, uint64(100), st.PacketCount)
	assert.Equal(t, uint64(100000), st.ByteCount)
	assert.InDelta(t, 20.0, snap.Rate(st), 1e-9)
	assert.Equal(t, 0, agg.Len())

	second := agg.Drain()
	assert.True(t, second.Empty())
	assert.NotNil(t, second.Sources)
}

func TestAggregator_SnapshotIsDetached(t *testing.T) {
	agg := NewAggregator(time.Second)
	agg.Add("10.0.0.1", 10)
	snap := agg.Drain()

	agg.Add("10.0.0.1", 10)
	assert.Equal(t, uint64(1), snap.Sources["10.0.0.1"].PacketCount)
}

func TestAggregator_IntervalBoundaries(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int64
	now := func() time.Time {
		return base.Add(time.Duration(atomic.AddInt64(&tick, 1)) * time.Second)
	}
	agg := NewAggregatorWithClock(5*time.Second, now)

	first := agg.Drain()
	second := agg.Drain()

	assert.Equal(t, base.Add(time.Second), first.Start)
	assert.Equal(t, first.End, second.Start)
	assert.True(t, second.End.After(second.Start))
	assert.Equal(t, 5*time.Second, second.Interval)
}

// Producers keep adding while the test drains in a tight loop; summed over all
// drained snapshots every datagram must appear exactly once.
func TestAggregator_NoLossNoDuplicationUnderConcurrentDrain(t *testing.T) {
	agg := NewAggregator(time.Second)

	const producers = 8
	const perProducer = 5000

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			src := fmt.Sprintf("10.0.0.%d", p+1)
			for i := 0; i < perProducer; i++ {
				agg.Add(src, 3)
			}
		}(p)
	}

	totals := make(map[string]uint64)
	var bytes uint64
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	drain := func() {
		snap := agg.Drain()
		for ip, st := range snap.Sources {
			require.GreaterOrEqual(t, st.PacketCount, uint64(1))
			totals[ip] += st.PacketCount
			bytes += st.ByteCount
		}
	}

loop:
	for {
		select {
		case <-done:
			break loop
		default:
			drain()
		}
	}
	drain()

	require.Len(t, totals, producers)
	for ip, n := range totals {
		assert.Equal(t, uint64(perProducer), n, "source %s", ip)
	}
	assert.Equal(t, uint64(producers*perProducer*3), bytes)
}

// A datagram added strictly before a drain belongs to that drain and one
// added strictly after belongs to the next.
func TestAggregator_AttributionRelativeToDrain(t *testing.T) {
	agg := NewAggregator(time.Second)

	before := make(chan struct{})
	drained := make(chan struct{})
	after := make(chan struct{})

	go func() {
		agg.Add("10.0.0.1", 1)
		close(before)
		<-drained
		agg.Add("10.0.0.2", 1)
		close(after)
	}()

	<-before
	first := agg.Drain()
	close(drained)
	<-after
	second := agg.Drain()

	assert.Contains(t, first.Sources, "10.0.0.1")
	assert.NotContains(t, first.Sources, "10.0.0.2")
	assert.Contains(t, second.Sources, "10.0.0.2")
	assert.NotContains(t, second.Sources, "10.0.0.1")
}
