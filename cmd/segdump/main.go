// The segdump command decodes wirechat segments from a packet capture so the
// traffic between clients and a server can be inspected after the fact.
//
//	tcpdump -i lo -w chat.pcap port 5000
//	segdump --port 5000 chat.pcap
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dcrodman/wirechat/internal/core/segment"
)

func main() {
	if err := app().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "segdump error: %v\n", err)
		os.Exit(1)
	}
}

func app() *cli.App {
	app := cli.NewApp()
	app.Name = "segdump"
	app.Usage = "decode wirechat segments from a pcap capture"
	app.ArgsUsage = "<capture.pcap>"
	app.Flags = []cli.Flag{
		&cli.UintFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Only decode TCP streams to or from this port (0 decodes everything)",
		},
		&cli.IntFlag{
			Name:  "max-body",
			Usage: "Largest segment body to accept before giving up on a stream",
			Value: segment.MaxLength,
		},
	}
	app.Action = run
	return app
}

func run(cCtx *cli.Context) error {
	if cCtx.NArg() != 1 {
		_ = cli.ShowAppHelp(cCtx)
		return cli.Exit("segdump takes exactly one capture file", 2)
	}
	if cCtx.Uint("port") > 65535 {
		return cli.Exit(fmt.Sprintf("invalid port %d", cCtx.Uint("port")), 2)
	}

	f, err := os.Open(cCtx.Args().First())
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer f.Close()

	d := &dumper{
		Port:    uint16(cCtx.Uint("port")),
		MaxBody: cCtx.Int("max-body"),
		Out:     os.Stdout,
	}
	if err := d.Dump(f); err != nil {
		return cli.Exit(err, 1)
	}
	return nil
}
