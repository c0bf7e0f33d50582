package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/heimdex/mediacrop/internal/config"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "mediacrop %s (commit %s, built %s, %s/%s)\n",
				config.Version, config.GitCommit, config.BuildTime, runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
