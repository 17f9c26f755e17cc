package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ciadmin/ciadmin/pkg/engine"
	"github.com/ciadmin/ciadmin/pkg/telemetry"
)

// validateResult is the JSON output of validate.
type validateResult struct {
	Valid     bool                `json:"valid"`
	Resources int                 `json:"resources"`
	Kinds     map[engine.Kind]int `json:"kinds"`
	Policies  int                 `json:"policies"`
}

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the desired state without contacting the service",
		Long: `Load the desired state and check it without calling the management service.

This command checks:
  - CUE syntax and schema conformance of every source file
  - Starlark generators run and emit well-formed resources
  - Every resource is valid and inside a managed id prefix
  - Resource ids are unique
  - Policy files compile`,
		Example: `  # Validate using ./ciadmin.yaml
  ciadmin validate

  # Validate a specific settings file
  ciadmin validate --config deploy/ciadmin.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnvironment(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := env.context(cmd.Context())
			env.logger.Info().
				Strs("sources", env.settings.Sources).
				Int("generators", len(env.settings.Generators)).
				Msg("Validating desired state")

			phase := telemetry.StartOperation(ctx, "validate")
			desired, err := env.desired.Resources(phase.Ctx)
			if err == nil {
				_, err = engine.NewCollection("desired", desired)
			}
			phase.End(err)
			if err != nil {
				return err
			}

			gate, err := env.policyEngine(ctx)
			if err != nil {
				return err
			}

			result := validateResult{
				Valid:     true,
				Resources: len(desired),
				Kinds:     make(map[engine.Kind]int),
				Policies:  len(gate.ListPolicies()),
			}
			for _, r := range desired {
				result.Kinds[r.Kind()]++
			}

			p := newPrinter(cmd.OutOrStdout())
			if jsonOutput {
				return p.json(result)
			}

			fmt.Fprint(p.out, pterm.Success.Sprintfln("Desired state is valid: %d roles, %d hooks, %d worker types (%d policies).",
				result.Kinds[engine.KindRole], result.Kinds[engine.KindHook], result.Kinds[engine.KindWorkerType], result.Policies))
			return nil
		},
	}

	return cmd
}
