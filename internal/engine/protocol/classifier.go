package protocol

import "bytes"

// Kind is the header family a datagram was recognised as.
type Kind int

const (
	// KindUnknown is traffic without a recognised header. It is still counted.
	KindUnknown Kind = iota
	// KindRTPS carries the "RTPS" protocol magic.
	KindRTPS
	// KindMarker starts with one of the alternate two-byte markers ("RT" or "DD").
	KindMarker
)

func (k Kind) String() string {
	switch k {
	case KindRTPS:
		return "rtps"
	case KindMarker:
		return "marker"
	default:
		return "unknown"
	}
}

var (
	rtpsMagic = []byte("RTPS")
	markers   = [][]byte{{0x52, 0x54}, {0x44, 0x44}} // "RT", "DD"
)

// markerMinLen is the shortest datagram the two-byte markers are checked on.
const markerMinLen = 8

// Classify inspects the datagram header.
func Classify(data []byte) Kind {
	if bytes.HasPrefix(data, rtpsMagic) {
		return KindRTPS
	}
	if len(data) >= markerMinLen {
		for _, m := range markers {
			if bytes.HasPrefix(data, m) {
				return KindMarker
			}
		}
	}
	return KindUnknown
}

// acceptUnknown keeps unrecognised traffic on monitored groups in the counts.
// Tightening it changes the reported numbers.
const acceptUnknown = true

// Accepts decides whether a datagram received on a monitored socket is counted.
// Every socket is already scoped to DDS multicast groups, so anything arriving
// there is treated as DDS traffic; the header check is only a fast accept.
func Accepts(data []byte) bool {
	return Classify(data) != KindUnknown || acceptUnknown
}
