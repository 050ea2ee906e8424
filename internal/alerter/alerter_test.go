package alerter

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"DDSSpectra/internal/config"
	"DDSSpectra/internal/model"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureNotifier struct {
	subjects []string
	bodies   []string
	err      error
}

func (c *captureNotifier) Send(subject, body string) error {
	c.subjects = append(c.subjects, subject)
	c.bodies = append(c.bodies, body)
	return c.err
}

func newAlerter(t *testing.T, cfg config.AlerterConfig) (*Alerter, *captureNotifier) {
	t.Helper()
	n := &captureNotifier{}
	a, err := New(cfg, n, log.New(&bytes.Buffer{}))
	require.NoError(t, err)
	return a, n
}

func snap(sources map[string]model.SourceStats) model.Snapshot {
	return model.Snapshot{Interval: 5 * time.Second, Sources: sources}
}

func TestAlerter_MaxRate(t *testing.T) {
	a, n := newAlerter(t, config.AlerterConfig{Rules: []config.AlerterRule{
		{Name: "flood", MaxRate: 10},
	}})

	require.NoError(t, a.Report(context.Background(), snap(map[string]model.SourceStats{
		"10.0.0.1": {PacketCount: 100, ByteCount: 1000}, // 20 pkt/s
		"10.0.0.2": {PacketCount: 10, ByteCount: 100},   // 2 pkt/s
	})))

	require.Len(t, n.subjects, 1)
	assert.Equal(t, "DDS Monitor Alert Summary (1 Triggered)", n.subjects[0])
	assert.Contains(t, n.bodies[0], "[flood] 10.0.0.1: 20.0 pkt/s exceeds 10.0 pkt/s")
	assert.NotContains(t, n.bodies[0], "10.0.0.2")
}

func TestAlerter_SourceFilterAndBytesRate(t *testing.T) {
	a, n := newAlerter(t, config.AlerterConfig{Rules: []config.AlerterRule{
		{Name: "lab", Source: "192.168.10.0/24", MaxBytesRate: 1000},
		{Name: "host", Source: "10.0.0.9", MaxBytesRate: 1000},
	}})

	require.NoError(t, a.Report(context.Background(), snap(map[string]model.SourceStats{
		"192.168.10.7": {PacketCount: 5, ByteCount: 10000}, // 2000 B/s
		"192.168.11.7": {PacketCount: 5, ByteCount: 10000},
		"10.0.0.9":     {PacketCount: 1, ByteCount: 100}, // 20 B/s
	})))

	require.Len(t, n.bodies, 1)
	assert.Contains(t, n.bodies[0], "[lab] 192.168.10.7: 2000.0 B/s exceeds 1000.0 B/s")
	assert.NotContains(t, n.bodies[0], "192.168.11.7")
	assert.NotContains(t, n.bodies[0], "[host]")
}

func TestAlerter_MinSourcesFiresOnEmptyInterval(t *testing.T) {
	a, n := newAlerter(t, config.AlerterConfig{Rules: []config.AlerterRule{
		{Name: "quiet", MinSources: 1},
	}})

	require.NoError(t, a.Report(context.Background(), snap(nil)))
	require.Len(t, n.bodies, 1)
	assert.Contains(t, n.bodies[0], "[quiet] 0 active source(s), expected at least 1")
}

func TestAlerter_Cooldown(t *testing.T) {
	a, n := newAlerter(t, config.AlerterConfig{
		Cooldown: time.Minute,
		Rules:    []config.AlerterRule{{Name: "quiet", MinSources: 1}},
	})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, a.Report(ctx, snap(nil)))
	now = now.Add(30 * time.Second)
	require.NoError(t, a.Report(ctx, snap(nil)))
	assert.Len(t, n.bodies, 1)

	now = now.Add(31 * time.Second)
	require.NoError(t, a.Report(ctx, snap(nil)))
	assert.Len(t, n.bodies, 2)
}

func TestAlerter_NoAlertNoNotification(t *testing.T) {
	a, n := newAlerter(t, config.AlerterConfig{Rules: []config.AlerterRule{{MaxRate: 1000}}})

	require.NoError(t, a.Report(context.Background(), snap(map[string]model.SourceStats{
		"10.0.0.1": {PacketCount: 1, ByteCount: 1},
	})))
	assert.Empty(t, n.subjects)
}

func TestAlerter_NotifierError(t *testing.T) {
	a, n := newAlerter(t, config.AlerterConfig{Rules: []config.AlerterRule{{MinSources: 1}}})
	n.err = errors.New("smtp down")

	assert.ErrorContains(t, a.Report(context.Background(), snap(nil)), "smtp down")
}

func TestNew_RejectsBadRules(t *testing.T) {
	tests := []struct {
		name  string
		rules []config.AlerterRule
	}{
		{"no threshold", []config.AlerterRule{{Name: "x"}}},
		{"bad source", []config.AlerterRule{{Name: "x", Source: "not-an-ip", MaxRate: 1}}},
		{"bad cidr", []config.AlerterRule{{Name: "x", Source: "10.0.0.0/99", MaxRate: 1}}},
		{"duplicate", []config.AlerterRule{{Name: "x", MaxRate: 1}, {Name: "x", MaxRate: 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(config.AlerterConfig{Rules: tt.rules}, &captureNotifier{}, log.New(&bytes.Buffer{}))
			assert.Error(t, err)
		})
	}
}
