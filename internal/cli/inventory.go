package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/isometry/ldap-verifier/internal/config"
)

func newInventoryCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inventory",
		Short: "Print the ldap.* properties as they will be used",
		Long: `Print the ldap.* properties after replacements and environment overrides,
one key=value per line. Credentials are redacted and keys this tool does not
use are marked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			props, err := config.LoadProperties(opts.source, opts.logger.Named("config"))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, key := range props.Keys() {
				if !strings.HasPrefix(key, config.KeyPrefix) {
					continue
				}
				line := fmt.Sprintf("%s=%s", key, redact(key, props[key]))
				if !config.KnownKey(key) {
					line += " # unused"
				}
				if _, err := fmt.Fprintln(w, line); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
