// Package preflight verifies that a directory configuration resolves users to
// the groups an operator expects before it is rolled out to the brokers.
package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v3"

	"github.com/isometry/ldap-verifier/internal/ldap"
)

// ComponentName prefixes every check title and names the checks file section.
const ComponentName = "ldap-group-manager"

// Resolver is the subset of *ldap.Resolver the checks need.
type Resolver interface {
	Mode() ldap.SearchMode
	Groups(ctx context.Context, user string) (ldap.Set, error)
	FindGroupsByQuery(ctx context.Context) (ldap.GroupMembership, error)
}

// Check expects User to be a member of at least Groups.
type Check struct {
	User   string
	Groups ldap.Set
}

// Title describes the check in the report.
func (c Check) Title() string {
	return fmt.Sprintf("%s: find groups for [%s]", ComponentName, c.User)
}

type checksFile struct {
	Component *struct {
		Users []map[string]struct {
			Groups []string `yaml:"groups"`
		} `yaml:"users"`
	} `yaml:"ldap-group-manager"`
}

// LoadChecks reads checks from a YAML file of the form
//
//	ldap-group-manager:
//	  users:
//	    - alice:
//	        groups: [ops, dev]
func LoadChecks(path string) ([]Check, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checks file: %w", err)
	}
	return ParseChecks(data)
}

// ParseChecks decodes the checks document. Users keep their file order.
func ParseChecks(data []byte) ([]Check, error) {
	var doc checksFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid checks YAML: %w", err)
	}
	if doc.Component == nil {
		return nil, fmt.Errorf("checks file has no %q section", ComponentName)
	}

	checks := make([]Check, 0, len(doc.Component.Users))
	for i, item := range doc.Component.Users {
		if len(item) != 1 {
			return nil, fmt.Errorf("users[%d]: expected exactly one user name, got %d", i, len(item))
		}
		for name, expected := range item {
			checks = append(checks, Check{User: name, Groups: ldap.NewSet(expected.Groups...)})
		}
	}
	return checks, nil
}

// Run evaluates every check against r. Resolution failures become failed
// checks; only cancellation of ctx stops the run early.
func Run(ctx context.Context, r Resolver, checks []Check, logger hclog.Logger) (*Report, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("preflight")

	lookup := func(ctx context.Context, user string) (ldap.Set, error) {
		return r.Groups(ctx, user)
	}

	if r.Mode() == ldap.SearchModeGroups && len(checks) > 0 {
		membership, err := r.FindGroupsByQuery(ctx)
		lookup = func(_ context.Context, user string) (ldap.Set, error) {
			if err != nil {
				return nil, err
			}
			return membership.MemberOf(user), nil
		}
		if err == nil {
			logger.Debug("group search completed", "groups", len(membership))
		}
	}

	report := &Report{}
	for _, check := range checks {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		result := evaluate(ctx, check, lookup)
		if result.Passed {
			logger.Debug("check passed", "user", check.User)
		} else {
			logger.Warn("check failed", "user", check.User, "reason", result.Reason)
		}
		report.Add(result)
	}
	return report, nil
}

func evaluate(ctx context.Context, check Check, lookup func(context.Context, string) (ldap.Set, error)) CheckResult {
	title := check.Title()

	found, err := lookup(ctx, check.User)
	if err != nil {
		return CheckResult{Title: title, Reason: err.Error(), Err: err}
	}
	if !found.ContainsAll(check.Groups) {
		missing := found.Missing(check.Groups)
		return CheckResult{
			Title: title,
			Reason: fmt.Sprintf("not all groups found for user %s: expected [%s], found [%s], missing [%s]",
				check.User,
				strings.Join(check.Groups.Sorted(), ", "),
				strings.Join(found.Sorted(), ", "),
				strings.Join(missing, ", ")),
		}
	}
	return CheckResult{Title: title, Passed: true}
}
