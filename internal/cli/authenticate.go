package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/isometry/ldap-verifier/internal/ldap"
)

// PasswordEnv supplies the authenticate password when --password is not set.
const PasswordEnv = "LDAP_VERIFIER_PASSWORD"

func newAuthenticateCommand(opts *globalOptions) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "authenticate",
		Short: "Check that a user can bind with a password",
		Long: `Locate the user's entry in the user subtree and bind as it with the password.

The password is taken from --password, then $` + PasswordEnv + `, and is read
from the first line of standard input otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv(PasswordEnv)
			}
			if password == "" {
				p, err := readPassword(cmd.InOrStdin())
				if err != nil {
					return err
				}
				password = p
			}

			r, err := opts.resolver()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var dn string
			err = withRetry(ctx, opts.retries, opts.logger, func() error {
				var err error
				dn, err = r.Authenticate(ctx, username, password)
				return err
			})
			if err != nil {
				if dn != "" {
					return fmt.Errorf("bind failed for user DN %s: %w", dn, err)
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "User %s has been authenticated as %s\n", username, dn)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "user name, matched against the user name attribute")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password; prefer $"+PasswordEnv+" or standard input")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("%w: no password given", ldap.ErrInvalidConfig)
	}
	return line, nil
}
