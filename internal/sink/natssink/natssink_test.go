package natssink

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"DDSSpectra/internal/model"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() model.Snapshot {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return model.Snapshot{
		Start:    start,
		End:      start.Add(5 * time.Second),
		Interval: 5 * time.Second,
		Sources: map[string]model.SourceStats{
			"10.0.0.1": {PacketCount: 100, ByteCount: 100000},
			"10.0.0.2": {PacketCount: 1, ByteCount: 0},
		},
	}
}

func TestEncodeDecode(t *testing.T) {
	snap := sampleSnapshot()
	data, err := Encode(snap)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, snap.Start.Equal(got.Start))
	assert.True(t, snap.End.Equal(got.End))
	assert.Equal(t, snap.Interval, got.Interval)
	assert.Equal(t, snap.Sources, got.Sources)
}

func TestEncodeDecode_EmptyInterval(t *testing.T) {
	snap := sampleSnapshot()
	snap.Sources = map[string]model.SourceStats{}

	data, err := Encode(snap)
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode([]byte{0xff, 0xff, 0xff})
	assert.ErrorIs(t, err, ErrMalformed)

	// A valid protobuf Struct without the time fields.
	_, err = Decode(nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

type fakeConn struct {
	subject string
	data    []byte
	err     error
	drained bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.subject, f.data = subject, data
	return f.err
}

func (f *fakeConn) Drain() error {
	f.drained = true
	return nil
}

func TestPublisher_Report(t *testing.T) {
	fc := &fakeConn{}
	p := &Publisher{nc: fc, subject: "dds.test", logger: log.New(&bytes.Buffer{})}

	require.NoError(t, p.Report(context.Background(), sampleSnapshot()))
	assert.Equal(t, "dds.test", fc.subject)

	got, err := Decode(fc.data)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), got.Sources["10.0.0.1"].PacketCount)

	fc.err = errors.New("connection closed")
	assert.Error(t, p.Report(context.Background(), sampleSnapshot()))

	require.NoError(t, p.Close())
	assert.True(t, fc.drained)
}

type recordingSink struct {
	got []model.Snapshot
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Report(ctx context.Context, snap model.Snapshot) error {
	r.got = append(r.got, snap)
	return nil
}

func TestSubscriber_Handle(t *testing.T) {
	var logs bytes.Buffer
	target := &recordingSink{}
	s := &Subscriber{target: target, logger: log.New(&logs)}

	data, err := Encode(sampleSnapshot())
	require.NoError(t, err)
	s.handle(context.Background(), data)
	s.handle(context.Background(), []byte("garbage"))

	require.Len(t, target.got, 1)
	assert.Len(t, target.got[0].Sources, 2)
	assert.Contains(t, logs.String(), "Dropping message")
}
