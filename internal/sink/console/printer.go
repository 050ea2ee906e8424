// Package console renders interval reports as text for a terminal.
package console

import (
	"DDSSpectra/internal/model"
	"DDSSpectra/internal/sink"
	"DDSSpectra/internal/units"
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Mode selects the layout of a report.
type Mode int

const (
	// Table prints a header, one row per source and a totals row.
	Table Mode = iota
	// Summary prints one indented line per source followed by totals.
	Summary
)

const timeLayout = "2006-01-02 15:04:05"

var rule = strings.Repeat("-", 60)

func init() {
	sink.Register("console", func(deps sink.Deps) (model.Sink, error) {
		return NewPrinter(deps.Out, Table), nil
	})
	sink.Register("console-summary", func(deps sink.Deps) (model.Sink, error) {
		return NewPrinter(deps.Out, Summary), nil
	})
}

// Printer writes each snapshot to an io.Writer.
type Printer struct {
	mu     sync.Mutex
	out    io.Writer
	mode   Mode
	footer string
	now    func() time.Time
}

// NewPrinter creates a printer. A nil writer prints to stdout.
func NewPrinter(out io.Writer, mode Mode) *Printer {
	if out == nil {
		out = os.Stdout
	}
	return &Printer{out: out, mode: mode, now: time.Now}
}

// SetFooter adds a line printed after every non-empty summary.
func (p *Printer) SetFooter(footer string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.footer = footer
}

// Name implements model.Sink.
func (p *Printer) Name() string {
	if p.mode == Summary {
		return "console-summary"
	}
	return "console"
}

// Report implements model.Sink.
func (p *Printer) Report(ctx context.Context, snap model.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	at := snap.End
	if at.IsZero() {
		at = p.now()
	}
	stamp := at.Format(timeLayout)

	w := bufio.NewWriter(p.out)
	if snap.Empty() {
		fmt.Fprintf(w, "[%s] No DDS packets detected\n", stamp)
		return w.Flush()
	}

	switch p.mode {
	case Summary:
		p.writeSummary(w, stamp, snap)
	default:
		writeTable(w, stamp, snap)
	}
	return w.Flush()
}

func writeTable(w io.Writer, stamp string, snap model.Snapshot) {
	fmt.Fprintf(w, "\n[%s] DDS Packet Statistics:\n", stamp)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-15s %-10s %-15s %-12s\n", "Source IP", "Packets", "Bytes", "Rate (pkt/s)")
	fmt.Fprintln(w, rule)
	for _, row := range snap.Sorted() {
		writeRow(w, row.SourceIP, row.SourceStats, snap.Rate(row.SourceStats))
	}
	fmt.Fprintln(w, rule)
	total := snap.Totals()
	writeRow(w, "Total", total, snap.Rate(total))
	fmt.Fprintln(w, rule)
}

func writeRow(w io.Writer, label string, st model.SourceStats, rate float64) {
	fmt.Fprintf(w, "%-15s %-10d %-15s %-12.1f\n", label, st.PacketCount, units.FormatBytes(st.ByteCount), rate)
}

func (p *Printer) writeSummary(w io.Writer, stamp string, snap model.Snapshot) {
	fmt.Fprintf(w, "[%s] DDS traffic summary:\n", stamp)
	for _, row := range snap.Sorted() {
		fmt.Fprintf(w, "  %s: %d packets, %s, %.1f pkt/s\n",
			row.SourceIP, row.PacketCount, units.FormatBytes(row.ByteCount), snap.Rate(row.SourceStats))
	}
	total := snap.Totals()
	fmt.Fprintf(w, "  Total: %d packets, %s\n", total.PacketCount, units.FormatBytes(total.ByteCount))
	fmt.Fprintf(w, "  Active sources: %d\n", len(snap.Sources))
	if p.footer != "" {
		fmt.Fprintf(w, "  %s\n", p.footer)
	}
	fmt.Fprintln(w, rule)
}
