package main

import (
	"DDSSpectra/internal/app"
	"DDSSpectra/internal/sink/console"
	"DDSSpectra/internal/sink/natssink"
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

func launch(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := app.Setup(cmd)
	if err != nil {
		return err
	}
	if cmd.IsSet("nats-url") {
		cfg.NATS.URL = cmd.String("nats-url")
	}
	if cmd.IsSet("subject") {
		cfg.NATS.Subject = cmd.String("subject")
	}

	mode := console.Summary
	if cmd.Bool("table") {
		mode = console.Table
	}

	sub, err := natssink.NewSubscriber(cfg.NATS, console.NewPrinter(os.Stdout, mode), logger)
	if err != nil {
		return err
	}
	defer sub.Close()

	if err := sub.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("Subscriber shutting down...")
	return nil
}

func main() {
	ctx := app.SetupSignalHandler()

	cmd := &cli.Command{
		Name:   "dds-subscriber",
		Usage:  "Print DDS traffic reports published by monitors over NATS",
		Action: launch,
		Flags: append(app.CommonFlags(),
			&cli.StringFlag{
				Name:  "nats-url",
				Usage: "NATS server URL",
			},
			&cli.StringFlag{
				Name:  "subject",
				Usage: "NATS subject the monitors publish on",
			},
			&cli.BoolFlag{
				Name:  "table",
				Usage: "Print the full table instead of one line per source",
			},
		),
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
