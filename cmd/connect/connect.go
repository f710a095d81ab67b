// Package connect implements the standalone client mode: start the tunnel
// from flags and serve the local proxy until interrupted.
package connect

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mcveil/cmd/shared"
	"mcveil/pkg/config"
	"mcveil/pkg/engine"
	"mcveil/pkg/log"

	"github.com/urfave/cli/v3"
)

const categoryConnect = "connect"

const localPortFlag = "local-port"
const passwordFlag = "password"
const proxyTypeFlag = "proxy-type"
const rulesFlag = "split-rules"

// GetCommand ...
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Connect to a tunnel server and serve a local proxy",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.Config{
				LocalPort: cmd.String(localPortFlag),
				Server:    cmd.String(shared.ServerFlag),
				Password:  cmd.String(passwordFlag),
				ProxyType: cmd.String(proxyTypeFlag),
				Verbose:   cmd.Bool(shared.VerboseFlag),
			}

			if errors := cfg.Validate(); len(errors) > 0 {
				log.ErrorMsg("Argument validation errors:\n")
				for _, err := range errors {
					log.ErrorMsg(" - %s\n", err)
				}
				return fmt.Errorf("exiting")
			}

			clog := log.NewLogger(cfg.Verbose)
			clog.VerboseMsg("configured for %s via %s proxy on %s", cfg.Server, cfg.ProxyType, cfg.ListenAddr())

			logger, err := log.NewEngine(cfg.Verbose)
			if err != nil {
				return fmt.Errorf("log.NewEngine(): %s", err)
			}
			defer logger.Sync()

			e := engine.New(logger.Sugar())

			if rules := cmd.String(rulesFlag); rules != "" {
				e.UpdateSplitRules(rules)
			}

			if err := e.Start(cfg.LocalPort, cfg.Server, cfg.Password, cfg.ProxyType); err != nil {
				return fmt.Errorf("starting engine: %s", err)
			}

			log.InfoMsg("Tunnel to %s up, %s proxy on %s\n", cfg.Server, cfg.ProxyType, cfg.ListenAddr())

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			<-sigCh

			log.InfoMsg("Shutting down\n")
			e.Stop()

			return nil
		},
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     shared.ServerFlag,
				Aliases:  []string{"s"},
				Usage:    "Tunnel server as host:port",
				Category: categoryConnect,
				Required: true,
			},
			&cli.StringFlag{
				Name:     passwordFlag,
				Aliases:  []string{"k"},
				Usage:    "Shared password keying the tunnel",
				Category: categoryConnect,
				Required: true,
			},
			&cli.StringFlag{
				Name:     localPortFlag,
				Aliases:  []string{"p"},
				Usage:    "Local proxy listen port",
				Category: categoryConnect,
				Value:    ":1080",
				Required: false,
			},
			&cli.StringFlag{
				Name:     proxyTypeFlag,
				Usage:    "Local proxy flavor: socks5 or http",
				Category: categoryConnect,
				Value:    config.ProxySOCKS5,
				Required: false,
			},
			&cli.StringFlag{
				Name:     rulesFlag,
				Usage:    "Comma-separated CIDR rule files for split tunneling",
				Category: categoryConnect,
				Required: false,
			},
		}, shared.GetCommonFlags()...),
	}
}
