package model

import (
	"net"
	"sort"
	"strconv"
	"time"
)

// Endpoint is a (multicast group, UDP port) pair the monitor subscribes to.
type Endpoint struct {
	Group net.IP
	Port  int
}

// String returns the endpoint as "group:port".
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Group.String(), strconv.Itoa(e.Port))
}

// SourceStats accumulates the traffic of a single source address.
// For every stored entry PacketCount >= 1; zero-length datagrams add 0 bytes.
type SourceStats struct {
	PacketCount uint64 `json:"packets"`
	ByteCount   uint64 `json:"bytes"`
}

// SourceRow is one source of a Snapshot in report order.
type SourceRow struct {
	SourceIP string
	SourceStats
}

// Snapshot is an immutable copy of the aggregate taken at the end of an interval.
// An empty Sources map is the "no traffic this interval" notification.
type Snapshot struct {
	Start    time.Time              `json:"start"`
	End      time.Time              `json:"end"`
	Interval time.Duration          `json:"interval"`
	Sources  map[string]SourceStats `json:"sources"`
}

// Empty reports whether no datagram was counted during the interval.
func (s Snapshot) Empty() bool {
	return len(s.Sources) == 0
}

// Totals returns the packet and byte sums over every source.
func (s Snapshot) Totals() SourceStats {
	var total SourceStats
	for _, st := range s.Sources {
		total.PacketCount += st.PacketCount
		total.ByteCount += st.ByteCount
	}
	return total
}

// Rate returns packets per second of the given counters over the report interval.
func (s Snapshot) Rate(st SourceStats) float64 {
	return perSecond(st.PacketCount, s.Interval)
}

// ByteRate returns bytes per second of the given counters over the report interval.
func (s Snapshot) ByteRate(st SourceStats) float64 {
	return perSecond(st.ByteCount, s.Interval)
}

// Sorted returns the sources ordered by descending packet count.
// Ties are broken by source address so the order is stable across runs.
func (s Snapshot) Sorted() []SourceRow {
	rows := make([]SourceRow, 0, len(s.Sources))
	for ip, st := range s.Sources {
		rows = append(rows, SourceRow{SourceIP: ip, SourceStats: st})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].PacketCount != rows[j].PacketCount {
			return rows[i].PacketCount > rows[j].PacketCount
		}
		return rows[i].SourceIP < rows[j].SourceIP
	})
	return rows
}

func perSecond(n uint64, interval time.Duration) float64 {
	if interval <= 0 {
		return 0
	}
	return float64(n) / interval.Seconds()
}

// Datagram is a UDP payload observed on a monitored endpoint.
type Datagram struct {
	Timestamp   time.Time
	Source      net.IP
	Destination Endpoint
	Payload     []byte
}
