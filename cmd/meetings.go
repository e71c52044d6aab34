package cmd

import (
	"fmt"

	"github.com/hupe1980/councilmesh/core"
	"github.com/spf13/cobra"
)

func newMeetingsCmd() *cobra.Command {
	cfg := defaultRunConfig()

	cmd := &cobra.Command{
		Use:   "meetings <scenario> [scenario...]",
		Short: "Run sequential one-on-one meetings ending in a synthesized policy document",
		Long:  "Each scenario argument runs one meeting cycle: the decision-maker meets every advisor one-on-one in a permuted order (advisor presents three problems, decision-maker selects one and asks a question, advisor answers), then synthesizes all meetings into a policy document. Scenarios in one invocation share participant memory.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveRunConfig(cmd, &cfg); err != nil {
				return err
			}
			a, err := wireApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			mesh, err := newMesh(a, cfg)
			if err != nil {
				return err
			}

			var total core.Usage
			for _, scenario := range args {
				state, err := mesh.DeliberateSequential(cmd.Context(), scenario)
				if err != nil {
					return err
				}
				dir, err := a.writer.SaveSequential(state)
				if err != nil {
					return err
				}
				total.Merge(state.Usage)
				fmt.Fprintf(cmd.OutOrStdout(), "%d meetings held, policy document synthesized by %s.\nReport: %s\n",
					len(state.Completed), state.Policy.Person, dir)
			}
			printUsage(cmd, total, a.modelName)
			return nil
		},
	}

	addRunFlags(cmd, &cfg)
	return cmd
}
