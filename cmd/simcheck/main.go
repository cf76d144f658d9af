// Command simcheck serves the similarity analysis API and compares files from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/simcheck/internal/version"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "simcheck",
		Short:         "Detect near-duplicate texts with embedding similarity",
		Long:          "simcheck embeds a batch of texts, builds the pairwise similarity matrix and reports clone pairs above a threshold.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to a config file (default: config/$ENV.yaml)")

	root.AddCommand(newServeCommand(&configPath))
	root.AddCommand(newCompareCommand(&configPath))
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
