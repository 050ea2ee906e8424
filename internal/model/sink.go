package model

import "context"

// Sink receives one Snapshot per report interval.
// The aggregate is already cleared when Report is called, so a sink must not
// reset anything itself. Report must not block past the next interval.
type Sink interface {
	Report(ctx context.Context, snap Snapshot) error

	// Name identifies the sink in logs.
	Name() string
}
