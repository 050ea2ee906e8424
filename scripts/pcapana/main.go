package main

import (
	"DDSSpectra/internal/engine/protocol"
	"DDSSpectra/internal/model"
	"DDSSpectra/pkg/pcap"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

// dump prints the first datagrams of a capture together with their DDS classification.
func dump(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return errors.New("usage: pcapana [--limit N] <path_to_pcap_file>")
	}
	reader, err := pcap.NewReader(cmd.Args().First(), log.Default())
	if err != nil {
		return err
	}
	defer reader.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make(chan *model.Datagram)
	errc := make(chan error, 1)
	go func() { errc <- reader.ReadDatagrams(ctx, out) }()

	limit := int(cmd.Int("limit"))
	i := 0
	for dg := range out {
		i++
		fmt.Printf("[%s] %s -> %s len=%d kind=%s\n",
			dg.Timestamp.Format("15:04:05.000"),
			dg.Source, dg.Destination, len(dg.Payload),
			protocol.Classify(dg.Payload),
		)
		if i >= limit {
			cancel()
			break
		}
	}
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:      "pcapana",
		Usage:     "Print the UDP datagrams of a capture with their DDS classification",
		ArgsUsage: "<path_to_pcap_file>",
		Action:    dump,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 5, Usage: "Number of datagrams to print"},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
