package commands

import (
	"context"
	"fmt"
	"sync"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ciadmin/ciadmin/pkg/config"
	"github.com/ciadmin/ciadmin/pkg/engine"
)

// planResult is the JSON output of diff and check.
type planResult struct {
	*engine.Plan
	Operations []operationResult `json:"operations"`
	Admission  *admissionResult  `json:"admission,omitempty"`
}

// admissionResult is the policy verdict on a plan that diff shows.
type admissionResult struct {
	Admitted bool   `json:"admitted"`
	Reason   string `json:"reason,omitempty"`
}

func newAdmissionResult(err error) *admissionResult {
	if err != nil {
		return &admissionResult{Reason: err.Error()}
	}
	return &admissionResult{Admitted: true}
}

type operationResult struct {
	Action     engine.Action `json:"action"`
	Kind       engine.Kind   `json:"kind"`
	ResourceID string        `json:"resource_id"`
	Diff       string        `json:"diff,omitempty"`
}

func newPlanResult(plan *engine.Plan, details bool) planResult {
	out := planResult{Plan: plan, Operations: make([]operationResult, 0, len(plan.Operations))}
	for _, op := range plan.Operations {
		or := operationResult{
			Action:     op.Action,
			Kind:       op.Resource.Kind(),
			ResourceID: op.Resource.ID(),
		}
		if details {
			or.Diff = operationDiff(plan, op)
		}
		out.Operations = append(out.Operations, or)
	}
	return out
}

func newDiffCommand() *cobra.Command {
	var (
		details bool
		watch   bool
	)

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show the changes apply would make",
		Long: `Compare the desired state with the live service and print the plan.

Nothing is changed remotely. Each line names one remote call:
  + creates a resource present only in the desired state
  ~ updates a resource whose live form differs
  - deletes a managed resource absent from the desired state

A non-empty plan is checked against policy as a dry run, and the verdict
is printed after the plan.

With --watch the plan is recomputed whenever a source file, generator
script or policy file changes, and metrics are served if a metrics
address is configured. The settings file itself is read once.`,
		Example: `  # Show the plan
  ciadmin diff

  # Show the plan with a line diff of every resource
  ciadmin diff --details

  # Recompute the plan on every configuration change
  ciadmin diff --watch`,
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

			p := newPrinter(cmd.OutOrStdout())

			// Source and policy changes are reported from different
			// watcher goroutines.
			var mu sync.Mutex
			show := func(ctx context.Context) error {
				mu.Lock()
				defer mu.Unlock()

				plan, err := env.plan(ctx, rec)
				if err != nil {
					return err
				}

				var admission *admissionResult
				if !plan.Empty() {
					admission = newAdmissionResult(rec.Admit(engine.ContextWithDryRun(ctx), plan))
				}

				if jsonOutput {
					result := newPlanResult(plan, details)
					result.Admission = admission
					return p.json(result)
				}
				p.plan(plan, details)
				p.admission(admission)
				return nil
			}
			reshow := func(ctx context.Context, reason string) {
				if !jsonOutput {
					fmt.Fprint(p.out, pterm.DefaultSection.Sprintln(reason))
				}
				if err := show(ctx); err != nil {
					env.logger.Error().Err(err).Msg("Failed to compute plan")
				}
			}

			if !watch {
				return show(ctx)
			}

			if err := env.tel.Metrics.StartMetricsServer(ctx, env.tel.Logger); err != nil {
				return err
			}

			if err := show(ctx); err != nil {
				env.logger.Error().Err(err).Msg("Failed to compute plan")
			}

			if paths := env.settings.Policies.Paths; len(paths) > 0 {
				if err := env.gate.Watch(ctx, paths, func() {
					reshow(ctx, "Policies changed")
				}); err != nil {
					return fmt.Errorf("failed to watch policies: %w", err)
				}
			}

			watcher := config.NewWatcher(env.logger, 0)
			return watcher.Watch(ctx, env.settings.WatchPaths(), func(ctx context.Context) {
				reshow(ctx, "Configuration changed")
			})
		},
	}

	cmd.Flags().BoolVar(&details, "details", false, "show a line diff of every changed resource")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "recompute the plan when configuration or policy files change")

	return cmd
}
