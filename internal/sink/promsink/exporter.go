// Package promsink exposes interval reports as Prometheus metrics.
package promsink

import (
	"DDSSpectra/internal/model"
	"DDSSpectra/internal/sink"
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "dds"

func init() {
	sink.Register("prometheus", func(deps sink.Deps) (model.Sink, error) {
		if deps.Registerer == nil {
			return nil, errors.New("prometheus sink requires a registerer")
		}
		namespace := defaultNamespace
		if deps.Config != nil && deps.Config.Exporter.Namespace != "" {
			namespace = deps.Config.Exporter.Namespace
		}
		return New(namespace, deps.Registerer)
	})
}

// Exporter folds every snapshot into a set of Prometheus collectors.
type Exporter struct {
	mu sync.Mutex

	packetsTotal  *prometheus.CounterVec
	bytesTotal    *prometheus.CounterVec
	packetRate    *prometheus.GaugeVec
	activeSources prometheus.Gauge
	packetSize    *prometheus.HistogramVec
	reportsTotal  prometheus.Counter

	// sources that have had a rate published, so absent ones can be reset.
	seen map[string]struct{}
}

// New creates the collectors and registers them with reg.
func New(namespace string, reg prometheus.Registerer) (*Exporter, error) {
	e := &Exporter{
		packetsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "packets_total",
				Help:      "Total number of DDS packets received",
			},
			[]string{"source_ip"},
		),
		bytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_total",
				Help:      "Total number of DDS bytes received",
			},
			[]string{"source_ip"},
		),
		packetRate: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "packet_rate",
				Help:      "DDS packet rate in packets per second over the last interval",
			},
			[]string{"source_ip"},
		),
		activeSources: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sources",
				Help:      "Number of sources seen in the last interval",
			},
		),
		packetSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "packet_size_bytes",
				Help:      "Distribution of DDS packet sizes",
				Buckets:   prometheus.ExponentialBuckets(64, 2, 10),
			},
			[]string{"source_ip"},
		),
		reportsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_total",
				Help:      "Number of interval reports exported",
			},
		),
		seen: make(map[string]struct{}),
	}

	collectors := []prometheus.Collector{
		e.packetsTotal,
		e.bytesTotal,
		e.packetRate,
		e.activeSources,
		e.packetSize,
		e.reportsTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Name implements model.Sink.
func (e *Exporter) Name() string { return "prometheus" }

// Report implements model.Sink.
func (e *Exporter) Report(ctx context.Context, snap model.Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.reportsTotal.Inc()
	e.activeSources.Set(float64(len(snap.Sources)))

	for ip := range e.seen {
		if _, ok := snap.Sources[ip]; !ok {
			e.packetRate.WithLabelValues(ip).Set(0)
		}
	}

	for ip, st := range snap.Sources {
		e.seen[ip] = struct{}{}
		e.packetsTotal.WithLabelValues(ip).Add(float64(st.PacketCount))
		e.bytesTotal.WithLabelValues(ip).Add(float64(st.ByteCount))
		e.packetRate.WithLabelValues(ip).Set(snap.Rate(st))

		if st.PacketCount == 0 {
			continue
		}
		// Per-packet sizes are not retained; every packet counts as the interval average.
		avg := float64(st.ByteCount) / float64(st.PacketCount)
		hist := e.packetSize.WithLabelValues(ip)
		for i := uint64(0); i < st.PacketCount; i++ {
			hist.Observe(avg)
		}
	}
	return nil
}
