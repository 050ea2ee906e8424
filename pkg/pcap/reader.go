package pcap

import (
	"DDSSpectra/internal/engine/protocol"
	"DDSSpectra/internal/model"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

var ngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

type packetSource interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Reader reads UDP datagrams from a pcap or pcapng file.
type Reader struct {
	file    *os.File
	source  packetSource
	logger  *log.Logger
	skipped uint64
}

// NewReader opens the capture file at filePath.
func NewReader(filePath string, logger *log.Logger) (*Reader, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	src, err := newSource(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read capture header of '%s': %w", filePath, err)
	}
	return &Reader{file: f, source: src, logger: logger}, nil
}

func newSource(r *bufio.Reader) (packetSource, error) {
	magic, err := r.Peek(4)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(magic, ngMagic) {
		return pcapgo.NewNgReader(r, pcapgo.DefaultNgReaderOptions)
	}
	return pcapgo.NewReader(r)
}

// Close closes the capture file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// LinkType returns the link layer type of the capture.
func (r *Reader) LinkType() layers.LinkType {
	return r.source.LinkType()
}

// Skipped returns the number of frames that were not IPv4/UDP.
func (r *Reader) Skipped() uint64 {
	return r.skipped
}

// ReadDatagrams sends every IPv4/UDP datagram of the capture to out, in file
// order, and closes out when the file is exhausted or ctx is cancelled.
func (r *Reader) ReadDatagrams(ctx context.Context, out chan<- *model.Datagram) error {
	defer close(out)

	link := r.source.LinkType()
	for {
		data, ci, err := r.source.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read packet: %w", err)
		}

		dg, err := protocol.ParseFrame(data, link, ci)
		if err != nil {
			r.skipped++
			r.logger.Debug("Skipping frame", "err", err)
			continue
		}

		select {
		case out <- dg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
