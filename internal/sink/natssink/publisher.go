// Package natssink streams interval reports over NATS.
package natssink

import (
	"DDSSpectra/internal/config"
	"DDSSpectra/internal/model"
	"DDSSpectra/internal/sink"
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"
)

func init() {
	sink.Register("nats", func(deps sink.Deps) (model.Sink, error) {
		if deps.Config == nil {
			return nil, errors.New("nats sink requires a configuration")
		}
		logger := deps.Logger
		if logger == nil {
			logger = log.Default()
		}
		return NewPublisher(deps.Config.NATS, logger)
	})
}

// conn is the subset of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher is a sink that publishes every snapshot to a NATS subject.
type Publisher struct {
	nc      conn
	subject string
	logger  *log.Logger
}

// NewPublisher connects to the configured NATS server.
func NewPublisher(cfg config.NATSConfig, logger *log.Logger) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("dds-monitor"))
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to NATS server", "url", cfg.URL, "subject", cfg.Subject)
	return &Publisher{nc: nc, subject: cfg.Subject, logger: logger}, nil
}

// Name implements model.Sink.
func (p *Publisher) Name() string { return "nats" }

// Report implements model.Sink.
func (p *Publisher) Report(ctx context.Context, snap model.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, data)
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() error {
	if p.nc == nil {
		return nil
	}
	err := p.nc.Drain()
	p.logger.Debug("NATS connection drained")
	return err
}
