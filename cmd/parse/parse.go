package parse

import (
	"context"
	"encoding/json"
	"fmt"

	"mcveil/pkg/link"

	"github.com/urfave/cli/v3"
)

const linkFlag = "link"

// GetCommand ...
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "parse",
		Usage: "Decode an mw:// connection link",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			conn, err := link.Parse(cmd.String(linkFlag))
			if err != nil {
				b, _ := json.Marshal(map[string]string{"error": err.Error()})
				fmt.Println(string(b))
				return nil
			}

			b, err := json.Marshal(conn)
			if err != nil {
				return fmt.Errorf("json.Marshal(): %s", err)
			}
			fmt.Println(string(b))

			return nil
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     linkFlag,
				Aliases:  []string{"l"},
				Usage:    "Connection link (mw://PASSWORD@HOST:PORT#NAME)",
				Required: true,
			},
		},
	}
}
