package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/dcrodman/wirechat/internal/server"
)

func hostCommand() *cli.Command {
	return &cli.Command{
		Name:        "host",
		Usage:       "wirechat host <port>",
		Description: "Runs a chat server on every interface at the given port.",
		ArgsUsage:   "<port>",
		Action:      host,
	}
}

func host(cCtx *cli.Context) error {
	if cCtx.NArg() != 1 {
		return usageError(cCtx, "host takes exactly one argument, got %d", cCtx.NArg())
	}
	port, err := parsePort(cCtx.Args().First())
	if err != nil {
		return usageError(cCtx, "%v", err)
	}

	cfg, logger, err := setup(cCtx)
	if err != nil {
		return err
	}

	srv := server.New(cfg, logger)
	if err := srv.Listen(fmt.Sprintf(":%d", port)); err != nil {
		return cli.Exit(err, 1)
	}

	ctx, cancel := withInterrupt(cCtx.Context)
	defer cancel()

	if err := srv.Run(ctx); err != nil {
		return cli.Exit(err, 1)
	}
	return nil
}
