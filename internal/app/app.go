// Package app holds the command-line plumbing shared by the cmd entry points.
package app

import (
	"DDSSpectra/internal/config"
	"DDSSpectra/internal/logging"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// SetupSignalHandler returns a context cancelled on the first shutdown signal.
// A second signal exits immediately.
func SetupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 2)
	signal.Notify(c, shutdownSignals...)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()

	return ctx
}

// CommonFlags are accepted by every entry point.
func CommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML configuration file",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level (debug, info, warn, error)",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "Log format (text, json, logfmt)",
		},
	}
}

// IntervalFlag is the report interval in seconds.
func IntervalFlag() cli.Flag {
	return &cli.FloatFlag{
		Name:    "interval",
		Aliases: []string{"i"},
		Value:   5.0,
		Usage:   "DDS monitoring interval in seconds",
	}
}

// Setup loads the configuration, applies the flags that were set explicitly
// and builds the logger. Logs go to stderr so reports on stdout stay clean.
func Setup(cmd *cli.Command) (*config.Config, *log.Logger, error) {
	return setup(cmd, os.Stderr)
}

func setup(cmd *cli.Command, logOut io.Writer) (*config.Config, *log.Logger, error) {
	cfg, err := config.LoadConfig(cmd.String("config"))
	if err != nil {
		return nil, nil, err
	}

	if cmd.IsSet("interval") {
		cfg.SetIntervalSeconds(cmd.Float("interval"))
	}
	if cmd.IsSet("log-level") {
		cfg.Logging.Level = cmd.String("log-level")
	}
	if cmd.IsSet("log-format") {
		cfg.Logging.Format = cmd.String("log-format")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Logging, logOut)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// PrintSetupHints explains the usual reasons no multicast socket could be opened.
func PrintSetupHints(w io.Writer) {
	fmt.Fprintln(w, "Error: Could not set up any multicast listeners.")
	fmt.Fprintln(w, "This might happen if:")
	fmt.Fprintln(w, "1. No DDS nodes are currently running")
	fmt.Fprintln(w, "2. Firewall is blocking multicast traffic")
	fmt.Fprintln(w, "3. Network interface doesn't support multicast")
}

// ExtraSinks returns the optional sinks enabled in the configuration.
func ExtraSinks(cfg *config.Config) []string {
	var names []string
	if cfg.NATS.Enabled {
		names = append(names, "nats")
	}
	if cfg.Alerter.Enabled {
		names = append(names, "alerter")
	}
	return names
}
