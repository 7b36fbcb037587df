package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/isometry/ldap-verifier/internal/preflight"
)

func newPreflightCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight CHECKS_FILE",
		Short: "Compare resolved groups with expected groups",
		Long: `Run the user group checks in CHECKS_FILE and print one line per check.

CHECKS_FILE is YAML:

  ldap-group-manager:
    users:
      - alice:
          groups: [kafka-admins]

A check passes when the user belongs to at least the listed groups.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			checks, err := preflight.LoadChecks(args[0])
			if err != nil {
				return err
			}

			r, err := opts.resolver()
			if err != nil {
				return err
			}

			report, err := preflight.Run(cmd.Context(), r, checks, opts.logger)
			if err != nil {
				return err
			}
			if err := report.Render(cmd.OutOrStdout()); err != nil {
				return err
			}

			if !report.Passed() {
				return fmt.Errorf("%w: %d of %d", ErrChecksFailed, report.Failed(), len(report.Results))
			}
			return nil
		},
	}
}
