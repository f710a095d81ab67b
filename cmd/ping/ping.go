package ping

import (
	"context"
	"fmt"

	"mcveil/cmd/shared"
	"mcveil/pkg/engine"
	"mcveil/pkg/log"

	"github.com/urfave/cli/v3"
)

// GetCommand ...
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "Measure TCP dial latency to a tunnel server",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			server := cmd.String(shared.ServerFlag)

			logger, err := log.NewEngine(cmd.Bool(shared.VerboseFlag))
			if err != nil {
				return fmt.Errorf("log.NewEngine(): %s", err)
			}
			defer logger.Sync()

			latency := engine.New(logger.Sugar()).Ping(server)
			if latency < 0 {
				return fmt.Errorf("%s is unreachable", server)
			}

			fmt.Printf("%dms\n", latency)
			return nil
		},
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     shared.ServerFlag,
				Aliases:  []string{"s"},
				Usage:    "Tunnel server as host:port",
				Required: true,
			},
		}, shared.GetCommonFlags()...),
	}
}
