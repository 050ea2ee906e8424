package monitor

import (
	"DDSSpectra/internal/config"
	"DDSSpectra/internal/engine/listener"
	"DDSSpectra/internal/engine/reporter"
	"DDSSpectra/internal/engine/socketpool"
	"DDSSpectra/internal/engine/stats"
	"DDSSpectra/internal/model"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// State is a phase of the monitor lifecycle.
type State int32

const (
	StateStopped State = iota
	StateSettingUp
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateSettingUp:
		return "setting-up"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	ErrAlreadyStarted = errors.New("monitor already started")
	ErrNotRunning     = errors.New("monitor is not running")
)

// Options configures a Monitor.
type Options struct {
	Endpoints      []model.Endpoint
	ReportInterval time.Duration
	ReadBufferSize int
	PollTimeout    time.Duration
	// ShutdownGrace bounds how long Stop waits for the loops to return.
	ShutdownGrace time.Duration
	// Opener creates the endpoint sockets. Defaults to a MulticastOpener.
	Opener socketpool.Opener
	// OnStateChange, when set, is called after every lifecycle transition.
	OnStateChange func(State)
}

// OptionsFromConfig derives monitor options from the application config.
func OptionsFromConfig(cfg *config.Config, logger *log.Logger) (Options, error) {
	var ifi *net.Interface
	if cfg.Monitor.Interface != "" {
		var err error
		ifi, err = net.InterfaceByName(cfg.Monitor.Interface)
		if err != nil {
			return Options{}, fmt.Errorf("invalid monitor interface %q: %w", cfg.Monitor.Interface, err)
		}
	}
	return Options{
		Endpoints:      cfg.Endpoints(),
		ReportInterval: cfg.Monitor.ReportInterval,
		ReadBufferSize: cfg.Monitor.ReadBufferSize,
		PollTimeout:    cfg.Monitor.PollTimeout,
		ShutdownGrace:  cfg.Monitor.ShutdownGrace,
		Opener: &socketpool.MulticastOpener{
			Interface:     ifi,
			ReceiveBuffer: cfg.Monitor.SocketReceiveBuffer,
			Logger:        logger.WithPrefix("socketpool"),
		},
	}, nil
}

// Monitor owns the socket pool, the listener and the reporter, and moves them
// through Stopped -> Setting-Up -> Running -> Stopping -> Stopped.
type Monitor struct {
	opts   Options
	sink   model.Sink
	logger *log.Logger

	// mu serialises Start and Stop.
	mu    sync.Mutex
	state atomic.Int32

	pool     *socketpool.Pool
	agg      *stats.Aggregator
	reporter *reporter.Reporter
	cancel   context.CancelFunc
	wg       *sync.WaitGroup
}

// New creates a stopped monitor that reports to sink.
func New(opts Options, sink model.Sink, logger *log.Logger) *Monitor {
	if opts.Opener == nil {
		opts.Opener = &socketpool.MulticastOpener{Logger: logger}
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = opts.PollTimeout
	}
	return &Monitor{opts: opts, sink: sink, logger: logger}
}

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	return State(m.state.Load())
}

func (m *Monitor) setState(s State) {
	m.state.Store(int32(s))
	m.logger.Debug("Lifecycle transition", "state", s.String())
	if m.opts.OnStateChange != nil {
		m.opts.OnStateChange(s)
	}
}

// Sockets returns the number of open listener sockets.
func (m *Monitor) Sockets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool == nil {
		return 0
	}
	return m.pool.Len()
}

// Start builds the socket pool and launches the listener and reporter loops.
// If no endpoint could be opened it returns an error wrapping
// socketpool.ErrNoSockets and no loop is started.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.State() != StateStopped {
		return ErrAlreadyStarted
	}
	m.setState(StateSettingUp)
	m.logger.Info("Starting DDS packet monitoring", "interval", m.opts.ReportInterval)

	pool, err := socketpool.Build(ctx, m.opts.Opener, m.opts.Endpoints, m.logger.WithPrefix("socketpool"))
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		if errors.Is(err, socketpool.ErrNoSockets) {
			m.logger.Error("Could not set up any multicast listeners. Check that the interface supports multicast and that no firewall blocks it.")
		}
		m.setState(StateStopped)
		return fmt.Errorf("failed to set up socket pool: %w", err)
	}

	m.pool = pool
	m.agg = stats.NewAggregator(m.opts.ReportInterval)
	rep := reporter.New(m.agg, m.sink, m.opts.ReportInterval, m.logger.WithPrefix("reporter"))
	m.reporter = rep
	lst := listener.New(pool, m.agg, listener.Config{
		BufferSize:  m.opts.ReadBufferSize,
		PollTimeout: m.opts.PollTimeout,
	}, m.logger.WithPrefix("listener"))

	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	wg := &sync.WaitGroup{}
	m.wg = wg
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := lst.Run(runCtx); err != nil {
			m.logger.Error("Listener exited", "err", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := rep.Run(runCtx); err != nil {
			m.logger.Error("Reporter exited", "err", err)
		}
	}()

	m.setState(StateRunning)
	return nil
}

// Stop signals both loops, waits for them for at most the shutdown grace,
// closes every socket and delivers one final report so the partial interval
// is not lost.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.State() != StateRunning {
		return ErrNotRunning
	}
	m.setState(StateStopping)

	m.cancel()
	m.pool.Interrupt()
	if !waitTimeout(m.wg, m.opts.ShutdownGrace) {
		m.logger.Warn("Loops did not stop within the shutdown grace period", "grace", m.opts.ShutdownGrace)
	}
	m.pool.Close()

	flushCtx, cancel := context.WithTimeout(context.Background(), m.opts.ReportInterval)
	defer cancel()
	m.reporter.Flush(flushCtx)

	m.setState(StateStopped)
	m.logger.Info("DDS packet monitoring stopped", "reports", m.reporter.Reports())
	return nil
}

// Run starts the monitor, blocks until ctx is cancelled and then stops it.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	m.logger.Info("Stopping DDS packet monitoring...")
	return m.Stop()
}

// waitTimeout waits for wg and reports whether it finished within d.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}
