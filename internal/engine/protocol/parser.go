package protocol

import (
	"DDSSpectra/internal/model"
	"errors"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var (
	ErrNotIPv4 = errors.New("not an IPv4 packet")
	ErrNotUDP  = errors.New("not a UDP packet")
)

// ParseFrame uses gopacket to decode a captured frame down to its UDP datagram.
// Only IPv4/UDP frames are returned; anything else yields ErrNotIPv4 or ErrNotUDP.
func ParseFrame(data []byte, first gopacket.Decoder, ci gopacket.CaptureInfo) (*model.Datagram, error) {
	packet := gopacket.NewPacket(data, first, gopacket.DecodeOptions{Lazy: true, NoCopy: true})

	ipLayer, ok := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	if !ok {
		return nil, ErrNotIPv4
	}
	udpLayer, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
	if !ok {
		return nil, ErrNotUDP
	}

	return &model.Datagram{
		Timestamp: ci.Timestamp,
		Source:    ipLayer.SrcIP,
		Destination: model.Endpoint{
			Group: ipLayer.DstIP,
			Port:  int(udpLayer.DstPort),
		},
		Payload: udpLayer.Payload,
	}, nil
}
