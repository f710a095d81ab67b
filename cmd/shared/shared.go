// Package shared provides common CLI flag definitions used across
// mcveil's command-line interface.
package shared

import (
	"github.com/urfave/cli/v3"
)

const categoryCommon = "common"

// VerboseFlag is the name of the flag to enable verbose logging.
const VerboseFlag = "verbose"

// ServerFlag is the name of the flag carrying the tunnel server address.
const ServerFlag = "server"

// GetCommonFlags returns the flags every command accepts.
func GetCommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:     VerboseFlag,
			Aliases:  []string{"v"},
			Usage:    "Enable verbose logging",
			Category: categoryCommon,
			Value:    false,
			Required: false,
		},
	}
}
