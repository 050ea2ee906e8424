package pcap

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"DDSSpectra/internal/model"

	"github.com/charmbracelet/log"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(t *testing.T, proto layers.IPProtocol, src, dst string, payload []byte) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0x01, 0x00, 0x5e, 0x7f, 0x00, 0x01},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      1,
		Protocol: proto,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP(dst).To4(),
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if proto == layers.IPProtocolUDP {
		udp := &layers.UDP{SrcPort: 50000, DstPort: 7400}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
		require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)))
	} else {
		tcp := &layers.TCP{SrcPort: 50000, DstPort: 80}
		require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
		require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)))
	}
	return buf.Bytes()
}

func writeCapture(t *testing.T, frames [][]byte, start time.Time) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	for i, data := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     start.Add(time.Duration(i) * time.Second),
			CaptureLength: len(data),
			Length:        len(data),
		}
		require.NoError(t, w.WritePacket(ci, data))
	}
	return path
}

func TestReader_ReadDatagrams(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	path := writeCapture(t, [][]byte{
		frame(t, layers.IPProtocolUDP, "192.168.1.20", "239.255.0.1", []byte("RTPSabcd")),
		frame(t, layers.IPProtocolTCP, "192.168.1.20", "192.168.1.1", []byte("GET /")),
		frame(t, layers.IPProtocolUDP, "192.168.1.21", "239.255.0.2", []byte("xy")),
	}, start)

	reader, err := NewReader(path, log.New(io.Discard))
	require.NoError(t, err)
	defer reader.Close()
	assert.Equal(t, layers.LinkTypeEthernet, reader.LinkType())

	out := make(chan *model.Datagram)
	errc := make(chan error, 1)
	go func() { errc <- reader.ReadDatagrams(context.Background(), out) }()

	var got []*model.Datagram
	for dg := range out {
		got = append(got, dg)
	}
	require.NoError(t, <-errc)

	require.Len(t, got, 2)
	assert.Equal(t, "192.168.1.20", got[0].Source.String())
	assert.Equal(t, "239.255.0.1:7400", got[0].Destination.String())
	assert.Equal(t, []byte("RTPSabcd"), got[0].Payload)
	assert.True(t, start.Equal(got[0].Timestamp))
	assert.True(t, start.Add(2*time.Second).Equal(got[1].Timestamp))
	assert.Equal(t, uint64(1), reader.Skipped())
}

func TestReader_Cancelled(t *testing.T) {
	path := writeCapture(t, [][]byte{
		frame(t, layers.IPProtocolUDP, "192.168.1.20", "239.255.0.1", []byte("a")),
	}, time.Now())

	reader, err := NewReader(path, log.New(io.Discard))
	require.NoError(t, err)
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = reader.ReadDatagrams(ctx, make(chan *model.Datagram))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewReader_Errors(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "missing.pcap"), log.New(io.Discard))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "garbage.pcap")
	require.NoError(t, os.WriteFile(path, []byte("this is not a capture file at all"), 0644))
	_, err = NewReader(path, log.New(io.Discard))
	assert.Error(t, err)
}
