package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ciadmin/ciadmin/pkg/stores"
)

// runDetail is the JSON output of history for a single run.
type runDetail struct {
	Run        *stores.RunRecord         `json:"run"`
	Operations []*stores.OperationRecord `json:"operations"`
	Events     []*stores.Event           `json:"events,omitempty"`
}

func newHistoryCommand() *cobra.Command {
	var (
		limit  int
		events bool
		prune  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs",
		Long: `Show the runs recorded by apply.

Without arguments the most recent runs are listed. Given a run id, the
operations attempted by that run are shown, and with --events its full
timeline.`,
		Example: `  # List recent runs
  ciadmin history

  # Show the operations of one run
  ciadmin history 5f0c8a1e-4f7b-4d5e-9a55-0b1a8f3c2d10

  # Delete runs older than 30 days
  ciadmin history --prune 720h`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnvironment(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := env.context(cmd.Context())
			store, err := env.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			p := newPrinter(cmd.OutOrStdout())

			if prune > 0 {
				deleted, err := store.DeleteRunsBefore(ctx, time.Now().Add(-prune))
				if err != nil {
					return err
				}
				env.logger.Info().Int64("runs", deleted).Dur("older_than", prune).Msg("Pruned run history")
				if !jsonOutput {
					fmt.Fprint(p.out, pterm.Success.Sprintfln("Deleted %d runs.", deleted))
				}
				if len(args) == 0 {
					return nil
				}
			}

			if len(args) == 0 {
				runs, err := store.ListRuns(ctx, limit, 0)
				if err != nil {
					return err
				}
				if jsonOutput {
					return p.json(runs)
				}
				return p.runs(runs)
			}

			runID := args[0]
			run, err := store.GetRun(ctx, runID)
			if err != nil {
				return err
			}
			ops, err := store.ListOperations(ctx, runID)
			if err != nil {
				return err
			}

			detail := runDetail{Run: run, Operations: ops}
			if events {
				detail.Events, err = store.GetEvents(ctx, &runID, nil, -1, 0)
				if err != nil {
					return err
				}
			}

			if jsonOutput {
				return p.json(detail)
			}
			if err := p.operations(run, ops); err != nil {
				return err
			}
			p.events(detail.Events)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	cmd.Flags().BoolVar(&events, "events", false, "show the event timeline of the run")
	cmd.Flags().DurationVar(&prune, "prune", 0, "delete runs older than this before listing")

	return cmd
}
