package main

import (
	"DDSSpectra/internal/config"
	"context"
	"encoding/binary"
	"fmt"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/urfave/cli/v3"
)

// rtpsPayload builds a datagram starting with an RTPS 2.3 header followed by
// random submessage bytes.
func rtpsPayload(rng *rand.Rand, size int) []byte {
	if size < 20 {
		size = 20
	}
	payload := make([]byte, size)
	copy(payload, "RTPS")
	payload[4], payload[5] = 2, 3 // protocol version
	binary.BigEndian.PutUint16(payload[6:8], 0x010f)
	rng.Read(payload[8:])
	return payload
}

func generate(ctx context.Context, cmd *cli.Command) error {
	outputFile := cmd.String("output")
	packetCount := int(cmd.Int("count"))
	sources := int(cmd.Int("sources"))
	duration := cmd.Duration("duration")
	if packetCount < 1 || sources < 1 || duration <= 0 {
		return fmt.Errorf("count, sources and duration must be positive")
	}

	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	pcapWriter := pcapgo.NewWriter(f)
	if err := pcapWriter.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		return fmt.Errorf("failed to write pcap header: %w", err)
	}

	rng := rand.New(rand.NewSource(cmd.Int("seed")))
	endpoints := config.Default().Endpoints()
	start := time.Now().Truncate(time.Second)
	step := duration / time.Duration(packetCount)

	log.Info("Generating capture", "packets", packetCount, "sources", sources, "file", outputFile)

	for i := 0; i < packetCount; i++ {
		if (i+1)%100000 == 0 {
			log.Info("Progress", "generated", i+1)
		}

		src := net.IPv4(192, 168, 1, byte(10+rng.Intn(sources))).To4()
		ep := endpoints[rng.Intn(len(endpoints))]

		ethLayer := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, src[3]},
			DstMAC:       net.HardwareAddr{0x01, 0x00, 0x5e, ep.Group[1] & 0x7f, ep.Group[2], ep.Group[3]},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ipLayer := &layers.IPv4{
			SrcIP:    src,
			DstIP:    ep.Group,
			Version:  4,
			TTL:      1,
			Protocol: layers.IPProtocolUDP,
		}
		udpLayer := &layers.UDP{
			SrcPort: layers.UDPPort(rng.Intn(65535-1024) + 1024),
			DstPort: layers.UDPPort(ep.Port),
		}
		if err := udpLayer.SetNetworkLayerForChecksum(ipLayer); err != nil {
			return err
		}

		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{
			ComputeChecksums: true,
			FixLengths:       true,
		}
		payload := rtpsPayload(rng, rng.Intn(1400)+50)
		if err := gopacket.SerializeLayers(buf, opts, ethLayer, ipLayer, udpLayer, gopacket.Payload(payload)); err != nil {
			return fmt.Errorf("failed to serialize layers: %w", err)
		}

		ci := gopacket.CaptureInfo{
			Timestamp:     start.Add(time.Duration(i) * step),
			CaptureLength: len(buf.Bytes()),
			Length:        len(buf.Bytes()),
		}
		if err := pcapWriter.WritePacket(ci, buf.Bytes()); err != nil {
			return fmt.Errorf("failed to write packet: %w", err)
		}
	}

	log.Info("Capture generated", "packets", packetCount, "file", outputFile)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "pcapgen",
		Usage:  "Generate a synthetic DDS multicast capture for dds-replay",
		Action: generate,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "dds.pcap", Usage: "Output pcap file path"},
			&cli.IntFlag{Name: "count", Aliases: []string{"c"}, Value: 1000, Usage: "Number of packets to generate"},
			&cli.IntFlag{Name: "sources", Aliases: []string{"s"}, Value: 4, Usage: "Number of distinct source hosts"},
			&cli.DurationFlag{Name: "duration", Aliases: []string{"d"}, Value: 30 * time.Second, Usage: "Capture time span"},
			&cli.IntFlag{Name: "seed", Value: 1, Usage: "Random seed"},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
