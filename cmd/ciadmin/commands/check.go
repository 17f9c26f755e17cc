package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Fail when the live service differs from the desired state",
		Long: `Compute the plan and exit with status 2 when it is not empty.

Use check in CI to detect manual changes to managed resources or desired
state that has not been applied yet. Errors loading either side exit with
status 1.`,
		Example: `  # Check for drift
  ciadmin check

  # Check and print the differences as JSON
  ciadmin check --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnvironment(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := env.context(cmd.Context())
			rec, err := env.reconciler(ctx)
			if err != nil {
				return err
			}

			plan, err := env.plan(ctx, rec)
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout())
			if jsonOutput {
				if err := p.json(newPlanResult(plan, false)); err != nil {
					return err
				}
			} else {
				p.plan(plan, false)
			}

			if !plan.Empty() {
				return fmt.Errorf("%w: %d operations pending", errDrift, plan.Summary.Total())
			}
			return nil
		},
	}

	return cmd
}
