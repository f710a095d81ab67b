package main

import (
	"context"
	"fmt"
	"os"

	"mcveil/cmd/connect"
	"mcveil/cmd/parse"
	"mcveil/cmd/ping"
	"mcveil/cmd/run"
	"mcveil/cmd/status"
	"mcveil/cmd/version"

	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "mcveil",
		Usage: "tunnel TCP and UDP traffic disguised as a Minecraft session",
		Commands: []*cli.Command{
			run.GetCommand(),
			connect.GetCommand(),
			ping.GetCommand(),
			status.GetCommand(),
			parse.GetCommand(),
			version.GetCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Printf("[!] Error: %s\n", err)
		os.Exit(1)
	}
}
