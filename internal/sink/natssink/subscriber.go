package natssink

import (
	"DDSSpectra/internal/config"
	"DDSSpectra/internal/model"
	"context"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"
)

// Subscriber receives snapshots from a NATS subject and hands them to a sink.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
	target  model.Sink
	logger  *log.Logger
}

// NewSubscriber connects to the configured NATS server.
func NewSubscriber(cfg config.NATSConfig, target model.Sink, logger *log.Logger) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("dds-subscriber"))
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to NATS server", "url", cfg.URL)
	return &Subscriber{nc: nc, subject: cfg.Subject, target: target, logger: logger}, nil
}

// Start subscribes to the subject. Messages are delivered on the NATS client goroutine.
func (s *Subscriber) Start(ctx context.Context) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		s.handle(ctx, msg.Data)
	})
	if err != nil {
		return err
	}
	s.sub = sub
	s.logger.Info("Subscribed, waiting for reports...", "subject", s.subject)
	return nil
}

func (s *Subscriber) handle(ctx context.Context, data []byte) {
	snap, err := Decode(data)
	if err != nil {
		s.logger.Warn("Dropping message", "error", err)
		return
	}
	if err := s.target.Report(ctx, snap); err != nil {
		s.logger.Error("Sink failed", "sink", s.target.Name(), "error", err)
	}
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		s.logger.Debug("NATS connection closed")
	}
}
