package ldap

import (
	"context"
)

// GroupSource resolves the groups of a single user.
type GroupSource interface {
	Groups(ctx context.Context, user string) (Set, error)
}

// UserFailure records why one user could not be resolved.
type UserFailure struct {
	User string
	Err  error
}

func (f UserFailure) Error() string {
	return (&UserError{User: f.User, Err: f.Err}).Error()
}

// Aggregate inverts per-user group lists into a group to members map. Users
// that are missing or ambiguous are reported as failures and skipped; any
// other error aborts the aggregation. Users are resolved one at a time, each
// with its own directory round trip.
func Aggregate(ctx context.Context, src GroupSource, users Set) (GroupMembership, []UserFailure, error) {
	result := make(GroupMembership)
	var failures []UserFailure

	for _, user := range users.Sorted() {
		if err := ctx.Err(); err != nil {
			return nil, failures, err
		}

		groups, err := src.Groups(ctx, user)
		if err != nil {
			if IsUserLevel(err) {
				failures = append(failures, UserFailure{User: user, Err: unwrapUserError(err)})
				continue
			}
			return nil, failures, err
		}

		for group := range groups {
			result.Add(group, user)
		}
	}

	return result, failures, nil
}

// unwrapUserError strips a UserError label so the failure is not labelled twice.
func unwrapUserError(err error) error {
	if ue, ok := err.(*UserError); ok {
		return ue.Err
	}
	return err
}
