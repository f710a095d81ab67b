package status

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
		Name:  "status",
		Usage: "Query a server's status JSON (MOTD, players, icon)",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			server := cmd.String(shared.ServerFlag)

			logger, err := log.NewEngine(cmd.Bool(shared.VerboseFlag))
			if err != nil {
				return fmt.Errorf("log.NewEngine(): %s", err)
			}
			defer logger.Sync()

			status, err := engine.New(logger.Sugar()).ServerStatus(server)
			if err != nil {
				return fmt.Errorf("querying %s: %s", server, err)
			}

			fmt.Println(status)
			return nil
		},
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     shared.ServerFlag,
				Aliases:  []string{"s"},
				Usage:    "Server as host:port",
				Required: true,
			},
		}, shared.GetCommonFlags()...),
	}
}
