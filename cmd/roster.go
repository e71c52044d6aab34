package cmd

import (
	"fmt"

	"github.com/hupe1980/councilmesh/roster"
	"github.com/spf13/cobra"
)

func newRosterCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Validate a council roster and print its composition",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := roster.Load(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Decision-maker: %s (%s)\n", r.Decider.Person, r.Decider.Role)
			fmt.Fprintf(out, "Advisors (%d, consultation order):\n", len(r.Advisors))
			for i, a := range r.Advisors {
				fmt.Fprintf(out, "  %d. %s (%s), relationship %.2f\n",
					i+1, a.Person, a.Role, r.Decider.Relationships[a.Role])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "roster", defaultRunConfig().RosterPath, "path to the council roster YAML")
	return cmd
}
