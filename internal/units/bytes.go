// Package units formats traffic volumes for human readable reports.
package units

import "fmt"

const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
)

// FormatBytes renders a byte count with 1024-based units: "512 B", "1.5 KB",
// "3.0 MB", "1.2 GB". Values under 1 KB are printed as integers.
func FormatBytes(n uint64) string {
	switch {
	case n < KiB:
		return fmt.Sprintf("%d B", n)
	case n < MiB:
		return fmt.Sprintf("%.1f KB", float64(n)/KiB)
	case n < GiB:
		return fmt.Sprintf("%.1f MB", float64(n)/MiB)
	default:
		return fmt.Sprintf("%.1f GB", float64(n)/GiB)
	}
}
