package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version information
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewRootCommand creates the root command for the hotmod host
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hotmod",
		Short: "hotmod - live module host with zero-downtime reloads",
		Long: `hotmod loads module manifests into a running HTTP host, serves the routes
they declare and replaces modules in place when their manifests change.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// NewVersionCommand prints build information
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), PrintVersion())
		},
	}
}

// PrintVersion returns version information
func PrintVersion() string {
	return fmt.Sprintf("hotmod v%s (commit: %s, built on: %s)", Version, Commit, Date)
}
