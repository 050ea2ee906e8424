package listener

import (
	"DDSSpectra/internal/engine/protocol"
	"DDSSpectra/internal/engine/socketpool"
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Recorder receives every accepted datagram.
type Recorder interface {
	Add(source string, length int)
}

// Config contains the tuning options of the listener.
type Config struct {
	// BufferSize is the largest datagram read in one call.
	BufferSize int
	// PollTimeout bounds how long a read waits before the stop signal is checked again.
	PollTimeout time.Duration
	// Accept decides whether a datagram is counted. Defaults to protocol.Accepts.
	Accept func(data []byte) bool
}

// Listener reads datagrams from every socket of a pool and folds the accepted
// ones into a Recorder.
type Listener struct {
	pool        *socketpool.Pool
	rec         Recorder
	bufferSize  int
	pollTimeout time.Duration
	accept      func([]byte) bool
	logger      *log.Logger

	received atomic.Uint64
	rejected atomic.Uint64
}

// New creates a listener over the given pool.
func New(pool *socketpool.Pool, rec Recorder, cfg Config, logger *log.Logger) *Listener {
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 65536
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 100 * time.Millisecond
	}
	accept := cfg.Accept
	if accept == nil {
		accept = protocol.Accepts
	}
	return &Listener{
		pool:        pool,
		rec:         rec,
		bufferSize:  bufferSize,
		pollTimeout: pollTimeout,
		accept:      accept,
		logger:      logger,
	}
}

// Run reads from all sockets until ctx is cancelled. Each socket gets its own
// reader; the runtime poller multiplexes readiness across them and the read
// deadline bounds how long a reader goes without checking ctx.
func (l *Listener) Run(ctx context.Context) error {
	if l.pool == nil || l.pool.Len() == 0 {
		return l.idle(ctx)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, s := range l.pool.Sockets() {
		s := s
		g.Go(func() error {
			return l.readLoop(ctx, s)
		})
	}
	err := g.Wait()
	l.logger.Debug("Listener stopped", "received", l.received.Load(), "rejected", l.rejected.Load())
	return err
}

// idle waits for cancellation when there is nothing to read from.
func (l *Listener) idle(ctx context.Context) error {
	ticker := time.NewTicker(l.pollTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (l *Listener) readLoop(ctx context.Context, s socketpool.Socket) error {
	buffer := make([]byte, l.bufferSize)
	for ctx.Err() == nil {
		if err := s.Conn.SetReadDeadline(time.Now().Add(l.pollTimeout)); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
		}

		n, addr, err := s.Conn.ReadFrom(buffer)
		if err != nil {
			var netErr net.Error
			switch {
			case errors.As(err, &netErr) && netErr.Timeout():
				continue
			case errors.Is(err, net.ErrClosed):
				return nil
			case ctx.Err() != nil:
				return nil
			}
			l.logger.Debug("UDP read error", "endpoint", s.Endpoint.String(), "err", err)
			l.backoff(ctx)
			continue
		}

		l.handleDatagram(buffer[:n], addr)
	}
	return nil
}

// backoff keeps a socket that keeps failing from spinning.
func (l *Listener) backoff(ctx context.Context) {
	t := time.NewTimer(l.pollTimeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (l *Listener) handleDatagram(data []byte, addr net.Addr) {
	l.received.Add(1)
	if !l.accept(data) {
		l.rejected.Add(1)
		return
	}
	l.rec.Add(sourceIP(addr), len(data))
}

// Received returns the number of datagrams read so far, accepted or not.
func (l *Listener) Received() uint64 {
	return l.received.Load()
}

func sourceIP(addr net.Addr) string {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP.String()
	case nil:
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
