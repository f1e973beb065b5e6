// The wirechat command runs either side of the chat: "host" starts a relay
// server and "connect" joins one as an interactive client.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/dcrodman/wirechat/internal/core"
)

func main() {
	if err := app().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "wirechat error: %v\n", err)
		os.Exit(1)
	}
}

func app() *cli.App {
	app := cli.NewApp()
	app.Name = "wirechat"
	app.Usage = "minimal multi-client chat over a length-prefixed TCP protocol"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the directory containing the config file",
			EnvVars: []string{"WIRECHAT_CONFIG"},
			Value:   "./",
		},
	}
	app.Commands = []*cli.Command{
		hostCommand(),
		connectCommand(),
	}
	return app
}

// setup loads the config and builds the logger shared by every command.
func setup(cCtx *cli.Context) (*core.Config, *logrus.Logger, error) {
	cfg, err := core.LoadConfig(cCtx.String("config"))
	if err != nil {
		return nil, nil, cli.Exit(err, 1)
	}

	logger, err := core.NewLogger(cfg)
	if err != nil {
		return nil, nil, cli.Exit(fmt.Sprintf("error initializing logger: %v", err), 1)
	}
	return cfg, logger, nil
}

// usageError prints the command's help and returns an error carrying a
// non-zero exit status.
func usageError(cCtx *cli.Context, format string, args ...interface{}) error {
	_ = cli.ShowSubcommandHelp(cCtx)
	return cli.Exit(fmt.Sprintf(format, args...), 2)
}

// withInterrupt returns a context that is cancelled on the first SIGINT or
// SIGTERM. A second signal exits immediately.
func withInterrupt(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go exitHandler(ctx, cancel, c)

	return ctx, func() {
		signal.Stop(c)
		cancel()
	}
}

func exitHandler(ctx context.Context, cancelFn func(), c chan os.Signal) {
	select {
	case <-c:
	case <-ctx.Done():
		return
	}
	fmt.Fprintln(os.Stderr, "waiting to shut down gracefully...")
	cancelFn()

	<-c
	fmt.Fprintln(os.Stderr, "hard exiting (killed)")
	os.Exit(1)
}
