package config

import (
	"DDSSpectra/internal/model"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure returned from Validate.
var ErrInvalid = errors.New("invalid configuration")

// DefaultGroups are the DDS multicast groups monitored out of the box.
var DefaultGroups = []string{
	"239.255.0.1", // DDS default multicast address
	"239.255.0.2",
	"239.255.0.3",
}

// DefaultPorts are the DDS discovery ports monitored out of the box.
var DefaultPorts = []int{7400, 7401, 7402, 7403, 7404, 7405, 7406, 7407, 7408, 7409, 7410, 7411}

// MonitorConfig holds the settings of the socket pool, listener and reporter.
type MonitorConfig struct {
	Groups              []string      `yaml:"groups"`
	Ports               []int         `yaml:"ports"`
	Interface           string        `yaml:"interface"`
	ReportInterval      time.Duration `yaml:"report_interval"`
	ReadBufferSize      int           `yaml:"read_buffer_size"`
	PollTimeout         time.Duration `yaml:"poll_timeout"`
	SocketReceiveBuffer int           `yaml:"socket_receive_buffer"`
	ShutdownGrace       time.Duration `yaml:"shutdown_grace"`
}

// LoggingConfig controls the diagnostic logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ExporterConfig holds the settings of the metrics HTTP endpoint.
type ExporterConfig struct {
	ListenAddr     string `yaml:"listen_addr"`
	MetricsPath    string `yaml:"metrics_path"`
	GRPCListenAddr string `yaml:"grpc_listen_addr"`
	Namespace      string `yaml:"namespace"`
}

// NATSConfig holds the settings of the snapshot publisher.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// SMTPConfig holds the settings for the e-mail notifier.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// AlerterRule defines a single threshold evaluated against every interval report.
type AlerterRule struct {
	Name         string  `yaml:"name"`
	Source       string  `yaml:"source"`         // IP or CIDR, empty matches every source
	MaxRate      float64 `yaml:"max_rate"`       // packets per second
	MaxBytesRate float64 `yaml:"max_bytes_rate"` // bytes per second
	MinSources   int     `yaml:"min_sources"`
}

// AlerterConfig holds the alerter rules and notification settings.
type AlerterConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Cooldown time.Duration `yaml:"cooldown"`
	Rules    []AlerterRule `yaml:"rules"`
	SMTP     SMTPConfig    `yaml:"smtp"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Monitor  MonitorConfig  `yaml:"monitor"`
	Logging  LoggingConfig  `yaml:"logging"`
	Exporter ExporterConfig `yaml:"exporter"`
	NATS     NATSConfig     `yaml:"nats"`
	Alerter  AlerterConfig  `yaml:"alerter"`
}

// Default returns the reference configuration: 3 groups x 12 ports, 5s reports.
func Default() *Config {
	return &Config{
		Monitor: MonitorConfig{
			Groups:         append([]string(nil), DefaultGroups...),
			Ports:          append([]int(nil), DefaultPorts...),
			ReportInterval: 5 * time.Second,
			ReadBufferSize: 65536,
			PollTimeout:    100 * time.Millisecond,
			ShutdownGrace:  100 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Exporter: ExporterConfig{
			ListenAddr:  ":8000",
			MetricsPath: "/metrics",
			Namespace:   "dds",
		},
		NATS: NATSConfig{
			URL:     "nats://127.0.0.1:4222",
			Subject: "dds.monitor.reports",
		},
		Alerter: AlerterConfig{
			Cooldown: time.Minute,
		},
	}
}

// LoadConfig reads the configuration from a YAML file on top of Default.
// An empty path returns the defaults.
func LoadConfig(filePath string) (*Config, error) {
	cfg := Default()
	if filePath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the monitor settings for values the engine cannot run with.
func (c *Config) Validate() error {
	m := c.Monitor
	if len(m.Groups) == 0 {
		return fmt.Errorf("%w: monitor.groups is empty", ErrInvalid)
	}
	for _, g := range m.Groups {
		ip := net.ParseIP(g)
		if ip == nil || ip.To4() == nil || !ip.IsMulticast() {
			return fmt.Errorf("%w: %q is not an IPv4 multicast group", ErrInvalid, g)
		}
	}
	if len(m.Ports) == 0 {
		return fmt.Errorf("%w: monitor.ports is empty", ErrInvalid)
	}
	for _, p := range m.Ports {
		if p < 1 || p > 65535 {
			return fmt.Errorf("%w: port %d out of range", ErrInvalid, p)
		}
	}
	if m.ReportInterval <= 0 {
		return fmt.Errorf("%w: monitor.report_interval must be a positive duration", ErrInvalid)
	}
	if m.ReadBufferSize < 1 {
		return fmt.Errorf("%w: monitor.read_buffer_size must be at least 1", ErrInvalid)
	}
	if m.PollTimeout <= 0 {
		return fmt.Errorf("%w: monitor.poll_timeout must be a positive duration", ErrInvalid)
	}
	if m.ShutdownGrace < 0 {
		return fmt.Errorf("%w: monitor.shutdown_grace must not be negative", ErrInvalid)
	}
	return nil
}

// Endpoints returns the group x port matrix, groups outer and ports inner.
func (c *Config) Endpoints() []model.Endpoint {
	endpoints := make([]model.Endpoint, 0, len(c.Monitor.Groups)*len(c.Monitor.Ports))
	for _, g := range c.Monitor.Groups {
		ip := net.ParseIP(g).To4()
		for _, p := range c.Monitor.Ports {
			endpoints = append(endpoints, model.Endpoint{Group: ip, Port: p})
		}
	}
	return endpoints
}

// SetIntervalSeconds overrides the report interval from a fractional second count.
func (c *Config) SetIntervalSeconds(seconds float64) {
	c.Monitor.ReportInterval = time.Duration(seconds * float64(time.Second))
}
