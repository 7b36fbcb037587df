package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/isometry/ldap-verifier/internal/ldap"
)

func newGroupsCommand(opts *globalOptions) *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List every group with its members",
		Long: `List every group with its members using the configured search mode.

In GROUPS mode the group subtree is searched once. In USERS mode every user is
looked up and the member-of values are inverted; users that cannot be resolved
are reported and skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := opts.resolver()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var (
				membership ldap.GroupMembership
				failures   []ldap.UserFailure
			)
			err = withRetry(ctx, opts.retries, opts.logger, func() error {
				var err error
				membership, failures, err = r.ResolveAll(ctx)
				return err
			})
			if err != nil {
				return err
			}

			for _, f := range failures {
				opts.logger.Warn("skipped user", "user", f.User, "error", f.Err)
			}

			return render(cmd.OutOrStdout(), membership, asYAML)
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "render output as YAML")
	return cmd
}

func newUserGroupsCommand(opts *globalOptions) *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "user-groups USER...",
		Short: "List the groups of the given users",
		Long: `List the groups of the given users.

In USERS mode each user's member-of attribute is read. In GROUPS mode the
group subtree is searched once and the users are looked up in the result, so
an unknown user simply has no groups.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.resolver()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			result := make(ldap.GroupMembership)
			var errs []error

			if r.Mode() == ldap.SearchModeGroups {
				var membership ldap.GroupMembership
				err := withRetry(ctx, opts.retries, opts.logger, func() error {
					var err error
					membership, err = r.FindGroupsByQuery(ctx)
					return err
				})
				if err != nil {
					return err
				}
				for _, user := range args {
					result[user] = membership.MemberOf(user)
				}
			} else {
				for _, user := range args {
					var groups ldap.Set
					err := withRetry(ctx, opts.retries, opts.logger, func() error {
						var err error
						groups, err = r.Groups(ctx, user)
						return err
					})
					if err != nil {
						if !ldap.IsUserLevel(err) {
							return err
						}
						opts.logger.Error("user lookup failed", "user", user, "error", err)
						errs = append(errs, err)
						continue
					}
					result[user] = groups
				}
			}

			if err := render(cmd.OutOrStdout(), result, asYAML); err != nil {
				return err
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "render output as YAML")
	return cmd
}
