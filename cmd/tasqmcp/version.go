package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			v := version
			if v == "" {
				v = "dev"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tasqmcp %s\n", v)
			if gitCommit != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "commit: %s\n", gitCommit)
			}
			if buildTime != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "built: %s\n", buildTime)
			}
		},
	}
}
