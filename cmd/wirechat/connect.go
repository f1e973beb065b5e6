package main

import (
	"net"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/dcrodman/wirechat/internal/client"
)

func connectCommand() *cli.Command {
	return &cli.Command{
		Name:        "connect",
		Usage:       "wirechat connect <ipv4> <port>",
		Description: "Joins the chat server at the given address. Type exit to leave.",
		ArgsUsage:   "<ipv4> <port>",
		Action:      connect,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Name sent with your messages (overrides client.identity)",
			},
		},
	}
}

func connect(cCtx *cli.Context) error {
	if cCtx.NArg() != 2 {
		return usageError(cCtx, "connect takes exactly two arguments, got %d", cCtx.NArg())
	}
	ip, err := parseIPv4(cCtx.Args().Get(0))
	if err != nil {
		return usageError(cCtx, "%v", err)
	}
	port, err := parsePort(cCtx.Args().Get(1))
	if err != nil {
		return usageError(cCtx, "%v", err)
	}

	cfg, logger, err := setup(cCtx)
	if err != nil {
		return err
	}
	// Keep log lines out of the chat on stdout.
	if cfg.LogFilePath == "" {
		logger.Out = os.Stderr
	}

	history, err := client.NewHistory(cfg.Client.HistorySize)
	if err != nil {
		return cli.Exit(err, 1)
	}

	session := &client.Session{
		Config:   cfg,
		Logger:   logger,
		Identity: identity(cCtx.String("name"), cfg.Client.Identity),
		Input:    os.Stdin,
		Display:  &client.Terminal{Out: os.Stdout, History: history},
	}

	ctx, cancel := withInterrupt(cCtx.Context)
	defer cancel()

	address := net.JoinHostPort(ip.String(), strconv.Itoa(int(port)))
	if err := session.Connect(ctx, address); err != nil {
		return cli.Exit(err, 1)
	}
	return nil
}

// identity picks the first non-empty name from the flag and the config,
// falling back to the local user.
func identity(flagValue, configured string) string {
	switch {
	case flagValue != "":
		return flagValue
	case configured != "":
		return configured
	default:
		return client.DefaultIdentity()
	}
}
