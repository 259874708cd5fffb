package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/tasq/tasqmcp/internal/config"
)

type rootOptions struct {
	configFile string
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "tasqmcp",
		Short: "MCP server exposing tasq task management to agents",
		Long: `tasqmcp serves the tasq CLI as a set of MCP tools.

Each tool call runs tasq in the project directory found by walking up from the
working directory to the nearest .tasq directory, or in an explicit project_dir.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default $HOME/.config/tasqmcp/config.yaml)")

	root.AddCommand(
		newServeCmd(opts),
		newToolsCmd(),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

func (o *rootOptions) load() (*config.Config, error) {
	return config.Load(config.Options{File: o.configFile})
}
