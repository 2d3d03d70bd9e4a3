package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "checkexplorer",
		Short:        "timepoint explorer for synthetic monitoring checks",
		Long:         `checkexplorer aligns probe execution logs with the expected schedule of a check and serves the result over HTTP.`,
		SilenceUsage: true,
	}

	var configPath string
	cmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to configuration file (YAML)")

	cmd.AddCommand(
		newServeCommand(&configPath),
		newTimepointsCommand(),
		newCheckCommand(&configPath),
	)
	return cmd
}
