// Package cli implements the ldap-verifier command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/isometry/ldap-verifier/internal/config"
	"github.com/isometry/ldap-verifier/internal/ldap"
)

// LogLevelEnv sets the log level when --log-level is not given.
const LogLevelEnv = "LDAP_VERIFIER_LOG"

type globalOptions struct {
	source   config.Source
	logLevel string
	retries  uint64

	logger hclog.Logger
}

// NewRootCommand builds the ldap-verifier command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "ldap-verifier",
		Short: "Verify Kafka LDAP authorizer settings against a directory",
		Long: `ldap-verifier resolves users to groups exactly as the Kafka LDAP authorizer
would, using the authorizer's ldap.* properties taken from a properties file
or a cp-ansible inventory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(opts.logLevel, cmd)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.source.ConfigFile, "config", "c", "", "authorizer properties file")
	flags.StringVarP(&opts.source.InventoryFile, "inventory", "i", "", "cp-ansible inventory file")
	flags.StringVarP(&opts.source.ReplacementFile, "replacement", "r", "", "properties file of {{ ... }} replacements")
	flags.StringVar(&opts.source.EnvFile, "env-file", "", "dotenv file loaded into the environment first")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: trace, debug, info, warn, error (default $"+LogLevelEnv+" or warn)")
	flags.Uint64Var(&opts.retries, "retries", 0, "retries when the directory is unavailable")

	_ = cmd.MarkPersistentFlagFilename("config", "properties")
	_ = cmd.MarkPersistentFlagFilename("inventory", "yml", "yaml")
	_ = cmd.MarkPersistentFlagFilename("replacement", "properties")
	cmd.MarkFlagsMutuallyExclusive("config", "inventory")

	cmd.AddCommand(
		newGroupsCommand(opts),
		newUserGroupsCommand(opts),
		newAuthenticateCommand(opts),
		newPreflightCommand(opts),
		newInventoryCommand(opts),
	)

	return cmd
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	return run(ctx, cmd)
}

func run(ctx context.Context, cmd *cobra.Command) int {
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return ExitCode(err)
}

func newLogger(level string, cmd *cobra.Command) (hclog.Logger, error) {
	if level == "" {
		level = os.Getenv(LogLevelEnv)
	}
	if level == "" {
		level = "warn"
	}

	l := hclog.LevelFromString(level)
	if l == hclog.NoLevel {
		return nil, fmt.Errorf("%w: unknown log level %q", ldap.ErrInvalidConfig, level)
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:   "ldap-verifier",
		Level:  l,
		Output: cmd.ErrOrStderr(),
	}), nil
}

// resolver loads the configuration and builds a resolver for it.
func (o *globalOptions) resolver() (*ldap.Resolver, error) {
	cfg, err := config.Load(o.source, o.logger)
	if err != nil {
		return nil, err
	}
	return ldap.NewResolver(cfg, ldap.WithLogger(o.logger.Named("ldap")))
}

func redact(key, value string) string {
	if strings.HasSuffix(key, ".credentials") && value != "" {
		return "[REDACTED]"
	}
	return value
}
