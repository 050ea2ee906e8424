package main

import (
	"DDSSpectra/internal/app"
	"DDSSpectra/internal/engine/monitor"
	"DDSSpectra/internal/engine/socketpool"
	"DDSSpectra/internal/sink"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "DDSSpectra/internal/alerter"
	_ "DDSSpectra/internal/sink/console"
	_ "DDSSpectra/internal/sink/natssink"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

func launch(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := app.Setup(cmd)
	if err != nil {
		return err
	}

	names := append([]string{"console"}, app.ExtraSinks(cfg)...)
	reports, err := sink.Build(names, sink.Deps{Config: cfg, Logger: logger, Out: os.Stdout})
	if err != nil {
		return err
	}
	defer sink.Close(reports)

	opts, err := monitor.OptionsFromConfig(cfg, logger)
	if err != nil {
		return err
	}

	fmt.Printf("Starting DDS packet monitoring (report interval: %gs)\n", cfg.Monitor.ReportInterval.Seconds())
	fmt.Println("No root privileges required!")
	fmt.Println("Press Ctrl+C to stop monitoring...")
	fmt.Println(strings.Repeat("=", 60))

	m := monitor.New(opts, reports, logger)
	if err := m.Run(ctx); err != nil {
		if errors.Is(err, socketpool.ErrNoSockets) {
			app.PrintSetupHints(os.Stdout)
		}
		return err
	}
	return nil
}

func main() {
	ctx := app.SetupSignalHandler()

	cmd := &cli.Command{
		Name:   "dds-monitor",
		Usage:  "Monitor DDS multicast traffic and print per-source statistics",
		Action: launch,
		Flags:  append(app.CommonFlags(), app.IntervalFlag()),
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
