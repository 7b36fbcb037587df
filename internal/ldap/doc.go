/*
Package ldap resolves directory users to group memberships the way the Kafka
LDAP authorizer does, so that an authorizer configuration can be verified
before it is deployed.

# Architecture Overview

The package is organized into a few small components:

  - Config: the fully resolved directory configuration (connection, search
    mode, per-entity search base, filter, scope, attributes and patterns)
  - Session: one bound connection, opened per operation and always closed.
    Provider URLs without a host (ldap:///dc=example,dc=com) are expanded
    through the _ldap._tcp SRV records of the domain named by their DN.
  - Resolver: the USERS and GROUPS resolution strategies
  - ExtractAttribute: capture-pattern normalization of raw attribute values

# Search Modes

In USERS mode the groups of a user are read from the member-of attribute of
the user's entry. Exactly one entry must match the user; zero matches fail
with ErrUserNotFound and several with ErrAmbiguousUser.

In GROUPS mode a single search over the group subtree returns every group
together with its member attribute. Group names and member values that do not
match their capture pattern are dropped.

Aggregate inverts per-user results into a group to members map, collecting
missing or ambiguous users as failures instead of aborting.

# Error Handling

Errors are classified into ErrDirectoryUnavailable, ErrDirectoryAuthFailure,
ErrUserNotFound, ErrAmbiguousUser and ErrInvalidConfig, all testable with
errors.Is. LDAPError keeps the LDAP result code and server message.

# Example Usage

	cfg, err := ldap.NewConfig()
	if err != nil {
		return err
	}
	cfg.URLs = []string{"ldaps://ldap.example.com"}
	cfg.SearchMode = ldap.SearchModeUsers

	resolver, err := ldap.NewResolver(cfg, ldap.WithLogger(logger))
	if err != nil {
		return err
	}

	groups, err := resolver.Groups(ctx, "alice")
	if errors.Is(err, ldap.ErrUserNotFound) {
		// ...
	}
*/
package ldap
