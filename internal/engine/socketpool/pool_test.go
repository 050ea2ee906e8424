package socketpool

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"DDSSpectra/internal/model"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopbackOpener binds 127.0.0.1 on the endpoint's port without address reuse,
// so a port that is already taken fails the way a real bind would.
var loopbackOpener = OpenerFunc(func(ctx context.Context, ep model.Endpoint) (net.PacketConn, error) {
	var lc net.ListenConfig
	return lc.ListenPacket(ctx, "udp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(ep.Port)))
})

func bufferLogger(buf *bytes.Buffer) *log.Logger {
	return log.NewWithOptions(buf, log.Options{Level: log.DebugLevel})
}

// fakeConn is a net.PacketConn that records Close and SetReadDeadline calls.
type fakeConn struct {
	closed   bool
	closeErr error
	deadline time.Time
}

func (c *fakeConn) ReadFrom(b []byte) (int, net.Addr, error)  { return 0, nil, net.ErrClosed }
func (c *fakeConn) WriteTo(b []byte, a net.Addr) (int, error) { return len(b), nil }
func (c *fakeConn) LocalAddr() net.Addr                       { return &net.UDPAddr{} }
func (c *fakeConn) SetDeadline(t time.Time) error             { return nil }
func (c *fakeConn) SetWriteDeadline(t time.Time) error        { return nil }
func (c *fakeConn) SetReadDeadline(t time.Time) error         { c.deadline = t; return nil }
func (c *fakeConn) Close() error                              { c.closed = true; return c.closeErr }

func endpoint(port int) model.Endpoint {
	return model.Endpoint{Group: net.ParseIP("239.255.0.1").To4(), Port: port}
}

func TestBuild_SkipsEndpointThatFailsToBind(t *testing.T) {
	busy, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()
	busyPort := busy.LocalAddr().(*net.UDPAddr).Port

	var logs bytes.Buffer
	pool, err := Build(context.Background(), loopbackOpener, []model.Endpoint{endpoint(busyPort), endpoint(0)}, bufferLogger(&logs))
	require.NoError(t, err)
	defer pool.Close()

	assert.Equal(t, 1, pool.Len())
	assert.Equal(t, 0, pool.Sockets()[0].Endpoint.Port)
	require.Len(t, pool.Warnings(), 1)
	assert.Contains(t, pool.Warnings()[0].Error(), strconv.Itoa(busyPort))
	assert.Equal(t, 1, strings.Count(logs.String(), "Failed to create multicast listener"))
}

func TestBuild_EmptyPool(t *testing.T) {
	failing := OpenerFunc(func(ctx context.Context, ep model.Endpoint) (net.PacketConn, error) {
		return nil, errors.New("no such device")
	})

	var logs bytes.Buffer
	pool, err := Build(context.Background(), failing, []model.Endpoint{endpoint(7400), endpoint(7401)}, bufferLogger(&logs))
	require.ErrorIs(t, err, ErrNoSockets)
	require.NotNil(t, pool)
	assert.Equal(t, 0, pool.Len())
	assert.Len(t, pool.Warnings(), 2)
}

func TestBuild_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Build(ctx, loopbackOpener, []model.Endpoint{endpoint(0)}, bufferLogger(&bytes.Buffer{}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPool_CloseIsBestEffort(t *testing.T) {
	conns := []*fakeConn{{closeErr: errors.New("boom")}, {}, {closeErr: errors.New("boom")}}
	next := 0
	opener := OpenerFunc(func(ctx context.Context, ep model.Endpoint) (net.PacketConn, error) {
		c := conns[next]
		next++
		return c, nil
	})

	pool, err := Build(context.Background(), opener, []model.Endpoint{endpoint(1), endpoint(2), endpoint(3)}, bufferLogger(&bytes.Buffer{}))
	require.NoError(t, err)

	pool.Close()
	for i, c := range conns {
		assert.True(t, c.closed, "conn %d not closed", i)
	}
	assert.Equal(t, 0, pool.Len())
}

func TestPool_Interrupt(t *testing.T) {
	c := &fakeConn{}
	opener := OpenerFunc(func(ctx context.Context, ep model.Endpoint) (net.PacketConn, error) { return c, nil })
	pool, err := Build(context.Background(), opener, []model.Endpoint{endpoint(1)}, bufferLogger(&bytes.Buffer{}))
	require.NoError(t, err)

	before := time.Now()
	pool.Interrupt()
	assert.False(t, c.deadline.Before(before))
}

func TestMulticastOpener_SharesPortAcrossGroups(t *testing.T) {
	probe, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := probe.LocalAddr().(*net.UDPAddr).Port
	probe.Close()

	opener := &MulticastOpener{}
	first, err := opener.Open(context.Background(), model.Endpoint{Group: net.ParseIP("239.255.0.1").To4(), Port: port})
	if err != nil {
		t.Skipf("multicast join not available in this environment: %v", err)
	}
	defer first.Close()

	second, err := opener.Open(context.Background(), model.Endpoint{Group: net.ParseIP("239.255.0.2").To4(), Port: port})
	require.NoError(t, err)
	defer second.Close()

	assert.Equal(t, port, second.LocalAddr().(*net.UDPAddr).Port)
}
