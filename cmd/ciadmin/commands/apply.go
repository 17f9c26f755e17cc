package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ciadmin/ciadmin/pkg/engine"
	"github.com/ciadmin/ciadmin/pkg/stores"
	"github.com/ciadmin/ciadmin/pkg/telemetry"
)

// applyResult is the JSON output of apply.
type applyResult struct {
	Plan planResult  `json:"plan"`
	Run  *engine.Run `json:"run,omitempty"`
}

func newApplyCommand() *cobra.Command {
	var (
		dryRun        bool
		noHistory     bool
		timelineLevel string
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Bring the live service in line with the desired state",
		Long: `Compute the plan, check it against policy and apply it.

This command:
  - Loads the desired state and lists the managed live resources
  - Computes the creates, updates and deletes required to converge
  - Evaluates the built-in and configured policies against the plan
  - Applies the operations one at a time in resource id order
  - Stops at the first failed operation; running apply again resumes
  - Records the run and every attempted operation in the state database`,
		Example: `  # Apply the plan
  ciadmin apply

  # Compute the plan and check it against policy only
  ciadmin apply --dry-run

  # Apply without recording history
  ciadmin apply --no-history

  # Stream failures to stderr as they happen
  ciadmin apply --timeline error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch timelineLevel {
			case "", "info", "warning", "error":
			default:
				return fmt.Errorf("invalid timeline level %q: must be info, warning or error", timelineLevel)
			}

			env, err := newEnvironment(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			if timelineLevel != "" {
				env.tel.Events.Subscribe(timeline(cmd.ErrOrStderr()), telemetry.FilterByLevel(timelineLevel))
			}

			ctx := env.context(cmd.Context())
			p := newPrinter(cmd.OutOrStdout())

			var sinks []engine.Notifier
			if !jsonOutput {
				sinks = append(sinks, p)
			}
			if !noHistory && !dryRun {
				store, err := env.openStore(ctx)
				if err != nil {
					return err
				}
				defer store.Close()
				sinks = append(sinks, stores.NewRecorder(store, env.logger))
			}

			rec, err := env.reconciler(ctx, sinks...)
			if err != nil {
				return err
			}

			plan, err := env.plan(ctx, rec)
			if err != nil {
				return err
			}

			if plan.Empty() {
				if jsonOutput {
					return p.json(applyResult{Plan: newPlanResult(plan, false)})
				}
				p.plan(plan, false)
				return nil
			}

			if dryRun {
				err := rec.Admit(engine.ContextWithDryRun(ctx), plan)
				if jsonOutput {
					if jerr := p.json(applyResult{Plan: newPlanResult(plan, false)}); jerr != nil {
						return jerr
					}
				} else {
					p.plan(plan, false)
				}
				if err != nil {
					return fmt.Errorf("plan denied: %w", err)
				}
				if !jsonOutput {
					fmt.Fprint(p.out, pterm.Success.Sprintln("Plan admitted by policy. Nothing was changed."))
				}
				return nil
			}

			if !jsonOutput {
				p.plan(plan, false)
				fmt.Fprintln(p.out)
			}

			run, err := rec.Apply(ctx, plan)

			if jsonOutput {
				if jerr := p.json(applyResult{Plan: newPlanResult(plan, false), Run: run}); jerr != nil {
					return jerr
				}
			} else {
				p.run(run)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "stop after the policy check")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record the run in the state database")
	cmd.Flags().StringVar(&timelineLevel, "timeline", "", "stream run events of at least this level (info, warning, error) to stderr")

	return cmd
}
