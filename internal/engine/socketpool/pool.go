package socketpool

import (
	"DDSSpectra/internal/model"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ErrNoSockets is returned by Build when not a single endpoint could be opened.
var ErrNoSockets = errors.New("no multicast listeners could be created")

// Opener creates the listening socket of one endpoint.
type Opener interface {
	Open(ctx context.Context, ep model.Endpoint) (net.PacketConn, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, ep model.Endpoint) (net.PacketConn, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context, ep model.Endpoint) (net.PacketConn, error) {
	return f(ctx, ep)
}

// Socket is one open listener of the pool.
type Socket struct {
	Endpoint model.Endpoint
	Conn     net.PacketConn
}

// Pool owns the sockets bound to the monitored endpoint matrix.
type Pool struct {
	mu       sync.Mutex
	sockets  []Socket
	warnings []error
	logger   *log.Logger
}

// Build opens a socket for every endpoint. A failing endpoint is logged,
// recorded as a warning and skipped. When nothing could be opened the
// returned error wraps ErrNoSockets; the pool is still returned so the
// caller can inspect its warnings.
func Build(ctx context.Context, opener Opener, endpoints []model.Endpoint, logger *log.Logger) (*Pool, error) {
	p := &Pool{logger: logger}
	logger.Info("Setting up DDS multicast listeners...", "endpoints", len(endpoints))

	for _, ep := range endpoints {
		if err := ctx.Err(); err != nil {
			p.Close()
			return nil, err
		}

		conn, err := opener.Open(ctx, ep)
		if err != nil {
			warning := fmt.Errorf("endpoint %s: %w", ep, err)
			p.warnings = append(p.warnings, warning)
			logger.Warn("Failed to create multicast listener", "endpoint", ep.String(), "err", err)
			continue
		}
		p.sockets = append(p.sockets, Socket{Endpoint: ep, Conn: conn})
		logger.Debug("Listening", "endpoint", ep.String())
	}

	if len(p.sockets) == 0 {
		return p, fmt.Errorf("%w (%d endpoints failed)", ErrNoSockets, len(p.warnings))
	}
	logger.Infof("Successfully created %d multicast listeners", len(p.sockets))
	return p, nil
}

// Len returns the number of open sockets.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sockets)
}

// Sockets returns a copy of the open sockets.
func (p *Pool) Sockets() []Socket {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Socket(nil), p.sockets...)
}

// Warnings returns the per-endpoint setup failures.
func (p *Pool) Warnings() []error {
	return p.warnings
}

// Interrupt wakes every reader blocked on the pool by expiring its read deadline.
func (p *Pool) Interrupt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	for _, s := range p.sockets {
		_ = s.Conn.SetReadDeadline(now)
	}
}

// Close closes every socket. Close failures are logged and suppressed so the
// remaining sockets are still released.
func (p *Pool) Close() {
	p.mu.Lock()
	sockets := p.sockets
	p.sockets = nil
	p.mu.Unlock()

	for _, s := range sockets {
		if err := s.Conn.Close(); err != nil {
			p.logger.Debug("Ignoring socket close error", "endpoint", s.Endpoint.String(), "err", err)
		}
	}
}
