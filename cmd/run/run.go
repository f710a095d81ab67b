// Package run implements the desktop wrapper mode: the engine is driven
// through newline-delimited JSON on stdin/stdout by a parent process.
package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mcveil/cmd/shared"
	"mcveil/pkg/engine"
	"mcveil/pkg/ipc"
	"mcveil/pkg/log"

	"github.com/muesli/cancelreader"
	"github.com/urfave/cli/v3"
)

// GetCommand ...
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Serve engine commands as JSON over stdin/stdout",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger, err := log.NewEngine(cmd.Bool(shared.VerboseFlag))
			if err != nil {
				return fmt.Errorf("log.NewEngine(): %s", err)
			}
			defer logger.Sync()

			e := engine.New(logger.Sugar())
			defer e.Stop()

			// a cancelable stdin reader lets the signal handler unblock
			// the serve loop for a clean exit-code-0 shutdown
			stdin, err := cancelreader.NewReader(os.Stdin)
			if err != nil {
				return fmt.Errorf("cancelreader.NewReader(): %s", err)
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigCh
				stdin.Cancel()
			}()

			srv := ipc.NewServer(e, stdin, os.Stdout)
			if err := srv.Serve(); err != nil && !errors.Is(err, cancelreader.ErrCanceled) {
				return fmt.Errorf("srv.Serve(): %s", err)
			}

			return nil
		},
		Flags: shared.GetCommonFlags(),
	}
}
