package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd creates the root command and attaches subcommands.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "siteintel",
		Short: "Website traffic and technology analysis API.",
		Long: `siteintel serves an HTTP API that gathers traffic analytics for a list of
websites through an Apify actor, enriches each site with its BuiltWith
technology profile, and stores the results per user.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().String("config", "", "path to a config file (yaml, json or toml)")
	cmd.AddCommand(newServeCmd(), newVersionCmd())
	return cmd
}
