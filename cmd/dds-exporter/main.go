package main

import (
	"DDSSpectra/internal/api"
	"DDSSpectra/internal/app"
	"DDSSpectra/internal/engine/monitor"
	"DDSSpectra/internal/engine/socketpool"
	"DDSSpectra/internal/sink"
	"DDSSpectra/internal/sink/console"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "DDSSpectra/internal/alerter"
	_ "DDSSpectra/internal/sink/natssink"
	_ "DDSSpectra/internal/sink/promsink"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func launch(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := app.Setup(cmd)
	if err != nil {
		return err
	}
	port := cmd.Int("port")
	if cmd.IsSet("port") || cfg.Exporter.ListenAddr == "" {
		cfg.Exporter.ListenAddr = fmt.Sprintf(":%d", port)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	names := append([]string{"prometheus"}, app.ExtraSinks(cfg)...)
	exported, err := sink.Build(names, sink.Deps{Config: cfg, Logger: logger, Out: os.Stdout, Registerer: reg})
	if err != nil {
		return err
	}
	defer sink.Close(exported)

	metricsURL := fmt.Sprintf("http://localhost%s%s", cfg.Exporter.ListenAddr, cfg.Exporter.MetricsPath)
	printer := console.NewPrinter(os.Stdout, console.Summary)
	printer.SetFooter("Metrics available at: " + metricsURL)
	latest := sink.NewLatest()

	opts, err := monitor.OptionsFromConfig(cfg, logger)
	if err != nil {
		return err
	}

	var m *monitor.Monitor
	srv := api.New(cfg.Exporter, reg, latest, func() monitor.State { return m.State() }, logger)
	opts.OnStateChange = srv.SetState
	m = monitor.New(opts, sink.Multi{exported, latest, printer}, logger)

	fmt.Printf("Starting Prometheus exporter on %s\n", cfg.Exporter.ListenAddr)
	fmt.Printf("DDS monitoring interval: %gs\n", cfg.Monitor.ReportInterval.Seconds())
	fmt.Printf("Metrics endpoint: %s\n", metricsURL)
	fmt.Println(strings.Repeat("=", 60))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		return m.Run(gctx)
	})
	if err := g.Wait(); err != nil {
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
		Name:   "dds-exporter",
		Usage:  "Export DDS packet metrics to Prometheus",
		Action: launch,
		Flags: append(app.CommonFlags(),
			app.IntervalFlag(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   8000,
				Usage:   "Prometheus metrics port",
			},
		),
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
