package cmd

import (
	"fmt"
	"math/rand"

	"github.com/hupe1980/councilmesh"
	"github.com/hupe1980/councilmesh/core"
	"github.com/spf13/cobra"
)

func newDeliberateCmd() *cobra.Command {
	cfg := defaultRunConfig()

	cmd := &cobra.Command{
		Use:   "deliberate <scenario> [scenario...]",
		Short: "Run hub-and-spoke deliberations: every advisor recommends, the decision-maker decides",
		Long:  "Each scenario argument runs one deliberation: advisors are consulted in roster order, each sees the recommendations produced before it, and the decision-maker weighs them into a final decision. Scenarios in one invocation share participant memory.",
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
				state, err := mesh.Deliberate(cmd.Context(), scenario)
				if err != nil {
					return err
				}
				dir, err := a.writer.SaveDeliberation(state)
				if err != nil {
					return err
				}
				total.Merge(state.Usage)
				fmt.Fprintf(cmd.OutOrStdout(), "%s decided after %d consultations.\nReport: %s\n",
					state.Decision.Person, len(state.Recommendations), dir)
			}
			printUsage(cmd, total, a.modelName)
			return nil
		},
	}

	addRunFlags(cmd, &cfg)
	return cmd
}

func newMesh(a *app, cfg runConfig) (*councilmesh.CouncilMesh, error) {
	return councilmesh.New(a.roster.Decider, a.roster.Advisors, a.gen, func(o *councilmesh.Options) {
		o.Retriever = a.retriever
		o.Memory = a.memory
		o.Temperature = cfg.Temperature
		o.Logger = a.logger
		if cfg.Seed != 0 {
			o.Rand = rand.New(rand.NewSource(cfg.Seed))
		}
	})
}

func printUsage(cmd *cobra.Command, u core.Usage, modelName string) {
	fmt.Fprintf(cmd.OutOrStdout(), "Tokens: %d in / %d out over %d calls (est. $%.4f on %s)\n",
		u.InputTokens, u.OutputTokens, u.Calls, u.EstimateCost(modelName), modelName)
}
