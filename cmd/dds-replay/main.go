package main

import (
	"DDSSpectra/internal/app"
	"DDSSpectra/internal/model"
	"DDSSpectra/internal/replay"
	"DDSSpectra/internal/sink"
	"DDSSpectra/pkg/pcap"
	"context"
	"errors"
	"os"

	_ "DDSSpectra/internal/alerter"
	_ "DDSSpectra/internal/sink/console"
	_ "DDSSpectra/internal/sink/natssink"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func launch(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return errors.New("usage: dds-replay [flags] <path_to_pcap_file>")
	}
	pcapFilePath := cmd.Args().First()

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

	reader, err := pcap.NewReader(pcapFilePath, logger.WithPrefix("pcap"))
	if err != nil {
		return err
	}
	defer reader.Close()
	logger.Info("Reading packets", "file", pcapFilePath, "link", reader.LinkType())

	endpoints := cfg.Endpoints()
	if cmd.Bool("all") {
		endpoints = nil
	}
	r := replay.New(endpoints, cfg.Monitor.ReportInterval, reports, logger.WithPrefix("replay"))

	datagrams := make(chan *model.Datagram, 1024)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return reader.ReadDatagrams(gctx, datagrams)
	})
	g.Go(func() error {
		_, err := r.Run(gctx, datagrams)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Finished reading capture", "skipped_frames", reader.Skipped())
	return nil
}

func main() {
	ctx := app.SetupSignalHandler()

	cmd := &cli.Command{
		Name:      "dds-replay",
		Usage:     "Replay a pcap capture through the DDS traffic report",
		ArgsUsage: "<path_to_pcap_file>",
		Action:    launch,
		Flags: append(app.CommonFlags(),
			app.IntervalFlag(),
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Count UDP datagrams to any destination, not only the monitored endpoints",
			},
		),
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
