// Package api serves the metrics endpoint, the latest interval report and
// the monitor health over HTTP, plus an optional gRPC health service.
package api

import (
	"DDSSpectra/internal/config"
	"DDSSpectra/internal/engine/monitor"
	"DDSSpectra/internal/sink"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const shutdownTimeout = 5 * time.Second

// Server exposes the monitor to scrapers and health checkers.
type Server struct {
	cfg    config.ExporterConfig
	latest *sink.Latest
	state  func() monitor.State
	logger *log.Logger

	router *mux.Router
	http   *http.Server
	grpc   *grpc.Server
	health *health.Server
}

// New builds the router. state reports the current monitor lifecycle state.
func New(cfg config.ExporterConfig, gatherer prometheus.Gatherer, latest *sink.Latest, state func() monitor.State, logger *log.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		latest: latest,
		state:  state,
		logger: logger.WithPrefix("api"),
		router: mux.NewRouter(),
		health: health.NewServer(),
	}

	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	s.router.Handle(metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/snapshot", s.snapshotHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.grpc = grpc.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.SetState(monitor.StateStopped)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetState updates the gRPC health status. It is meant to be passed as the
// monitor's state-change hook.
func (s *Server) SetState(state monitor.State) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if state == monitor.StateRunning {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
}

// Run serves until ctx is cancelled, then shuts the listeners down.
func (s *Server) Run(ctx context.Context) error {
	httpLn, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	var grpcLn net.Listener
	if s.cfg.GRPCListenAddr != "" {
		grpcLn, err = net.Listen("tcp", s.cfg.GRPCListenAddr)
		if err != nil {
			httpLn.Close()
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("HTTP server starting", "addr", httpLn.Addr().String())
		if err := s.http.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if grpcLn != nil {
		g.Go(func() error {
			s.logger.Info("gRPC health server starting", "addr", grpcLn.Addr().String())
			if err := s.grpc.Serve(grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("API server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.health.Shutdown()
		s.grpc.GracefulStop()
		return s.http.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type sourceJSON struct {
	SourceIP string  `json:"source_ip"`
	Packets  uint64  `json:"packets"`
	Bytes    uint64  `json:"bytes"`
	Rate     float64 `json:"rate"`
}

type snapshotJSON struct {
	Start           time.Time    `json:"start"`
	End             time.Time    `json:"end"`
	IntervalSeconds float64      `json:"interval_seconds"`
	Sources         []sourceJSON `json:"sources"`
	TotalPackets    uint64       `json:"total_packets"`
	TotalBytes      uint64       `json:"total_bytes"`
}

// snapshotHandler returns the most recent interval report.
func (s *Server) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.latest.Get()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := snapshotJSON{
		Start:           snap.Start,
		End:             snap.End,
		IntervalSeconds: snap.Interval.Seconds(),
		Sources:         make([]sourceJSON, 0, len(snap.Sources)),
	}
	for _, row := range snap.Sorted() {
		resp.Sources = append(resp.Sources, sourceJSON{
			SourceIP: row.SourceIP,
			Packets:  row.PacketCount,
			Bytes:    row.ByteCount,
			Rate:     snap.Rate(row.SourceStats),
		})
	}
	total := snap.Totals()
	resp.TotalPackets = total.PacketCount
	resp.TotalBytes = total.ByteCount

	writeJSON(w, http.StatusOK, resp)
}

// healthHandler reports the monitor lifecycle state.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	state := s.state()
	code := http.StatusServiceUnavailable
	if state == monitor.StateRunning {
		code = http.StatusOK
	}
	writeJSON(w, code, map[string]string{"state": state.String()})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("Failed to write response", "error", err)
	}
}
