// Package cmd implements the councilmesh command line interface.
package cmd

import "github.com/spf13/cobra"

// Execute runs the root command and returns its error.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "councilmesh",
		Short:         "councilmesh: multi-advisor deliberation runs from the terminal",
		Long:          "councilmesh runs a council of advisor personas against a scenario: hub-and-spoke deliberation (every advisor recommends, the decision-maker decides) or sequential one-on-one meetings ending in a synthesized policy document. Session reports are written to an output directory.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newDeliberateCmd(),
		newMeetingsCmd(),
		newRosterCmd(),
	)

	return rootCmd
}
