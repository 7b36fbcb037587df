package ldap

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/hashicorp/go-hclog"
)

// Resolver resolves users to groups against one directory configuration.
// It keeps no state between calls; every operation opens its own session.
type Resolver struct {
	cfg    Config
	opts   []Option
	logger hclog.Logger
}

// NewResolver validates a private copy of cfg and returns a resolver for it.
func NewResolver(cfg *Config, opts ...Option) (*Resolver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: configuration cannot be nil", ErrInvalidConfig)
	}

	c := *cfg
	c.URLs = slices.Clone(cfg.URLs)
	if err := c.Validate(); err != nil {
		return nil, err
	}

	o := getOptions(opts...)
	return &Resolver{
		cfg:    c,
		opts:   opts,
		logger: o.logger.Named("resolver"),
	}, nil
}

// Mode returns the configured search mode.
func (r *Resolver) Mode() SearchMode {
	return r.cfg.SearchMode
}

func (r *Resolver) open(ctx context.Context, cfg *Config) (*Session, error) {
	s, err := Open(ctx, cfg, r.opts...)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("session opened", "provider_url", s.ProviderURL(), "principal", cfg.BindDN)
	return s, nil
}

// Groups returns the groups user belongs to, read from the member-of
// attribute of the user's entry. It fails with ErrUserNotFound when no entry
// matches and with ErrAmbiguousUser when more than one does.
func (r *Resolver) Groups(ctx context.Context, user string) (Set, error) {
	var groups Set

	err := LogOperation(r.logger, "groups", map[string]any{"user": user}, func() error {
		if r.cfg.UserMemberOfAttribute == "" {
			return fmt.Errorf("%w: user member-of attribute is required", ErrInvalidConfig)
		}

		entry, err := r.lookupUser(ctx, user, []string{r.cfg.UserMemberOfAttribute})
		if err != nil {
			return err
		}

		groups = NewSet()
		actx := AttributeContext{Parent: entry.DN, Kind: "member-of", Mode: SearchModeUsers}
		for _, v := range entry.Values(r.cfg.UserMemberOfAttribute) {
			if group, ok := ExtractAttribute(r.logger, &v, r.cfg.memberOfPattern, actx); ok {
				groups.Add(group)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return groups, nil
}

// lookupUser finds the single entry for user in the user subtree.
func (r *Resolver) lookupUser(ctx context.Context, user string, attributes []string) (*Entry, error) {
	if err := r.cfg.RequireUserSearch(); err != nil {
		return nil, err
	}

	s, err := r.open(ctx, &r.cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = s.Close()
	}()

	it, err := s.Search(ctx, SearchRequest{
		BaseDN:     r.cfg.UserSearchBase,
		Scope:      r.cfg.UserSearchScope,
		Filter:     r.cfg.UserFilter(user),
		Attributes: attributes,
	})
	if err != nil {
		return nil, err
	}

	if !it.Next() {
		return nil, &UserError{User: user, Err: ErrUserNotFound}
	}
	entry := it.Entry()
	if it.Next() {
		return nil, &UserError{User: user, Err: ErrAmbiguousUser}
	}

	return entry, nil
}

// FindGroupsByQuery reads every group in the group subtree together with its
// members. Groups whose name cannot be extracted are skipped, as are member
// values that fail extraction.
func (r *Resolver) FindGroupsByQuery(ctx context.Context) (GroupMembership, error) {
	var result GroupMembership

	err := LogOperation(r.logger, "find_groups", map[string]any{"base_dn": r.cfg.GroupSearchBase}, func() error {
		if errs := r.cfg.groupFieldErrors(); len(errs) > 0 {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
		}

		s, err := r.open(ctx, &r.cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = s.Close()
		}()

		it, err := s.Search(ctx, SearchRequest{
			BaseDN:     r.cfg.GroupSearchBase,
			Scope:      r.cfg.GroupSearchScope,
			Filter:     r.cfg.GroupsFilter(),
			Attributes: []string{r.cfg.GroupNameAttribute, r.cfg.GroupMemberAttribute},
		})
		if err != nil {
			return err
		}

		result = make(GroupMembership)
		for it.Next() {
			r.addGroupEntry(result, it.Entry())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// addGroupEntry merges one group entry into result. Entries sharing a name
// contribute the union of their members.
func (r *Resolver) addGroupEntry(result GroupMembership, e *Entry) {
	name, ok := ExtractAttribute(r.logger, e.FirstValue(r.cfg.GroupNameAttribute), r.cfg.groupNamePattern,
		AttributeContext{Parent: e.DN, Kind: "group name", Mode: SearchModeGroups})
	if !ok {
		return
	}

	members := result.AddGroup(name)
	actx := AttributeContext{Parent: name, Kind: "member", Mode: SearchModeGroups}
	for _, v := range e.Values(r.cfg.GroupMemberAttribute) {
		if member, ok := ExtractAttribute(r.logger, &v, r.cfg.groupMemberPattern, actx); ok {
			members.Add(member)
		}
	}
}

// Users lists every user identifier in the user subtree.
func (r *Resolver) Users(ctx context.Context) (Set, error) {
	var users Set

	err := LogOperation(r.logger, "users", map[string]any{"base_dn": r.cfg.UserSearchBase}, func() error {
		if err := r.cfg.RequireUserSearch(); err != nil {
			return err
		}

		s, err := r.open(ctx, &r.cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = s.Close()
		}()

		it, err := s.Search(ctx, SearchRequest{
			BaseDN:     r.cfg.UserSearchBase,
			Scope:      r.cfg.UserSearchScope,
			Filter:     r.cfg.UsersFilter(),
			Attributes: []string{r.cfg.UserNameAttribute},
		})
		if err != nil {
			return err
		}

		users = NewSet()
		for it.Next() {
			e := it.Entry()
			name, ok := ExtractAttribute(r.logger, e.FirstValue(r.cfg.UserNameAttribute), nil,
				AttributeContext{Parent: e.DN, Kind: "user name", Mode: SearchModeUsers})
			if ok {
				users.Add(name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return users, nil
}

// ResolveAll builds the complete group membership using the configured
// search mode. In USERS mode every user is resolved individually and
// per-user failures are returned alongside the partial result.
func (r *Resolver) ResolveAll(ctx context.Context) (GroupMembership, []UserFailure, error) {
	switch r.cfg.SearchMode {
	case SearchModeGroups:
		groups, err := r.FindGroupsByQuery(ctx)
		return groups, nil, err
	case SearchModeUsers:
		users, err := r.Users(ctx)
		if err != nil {
			return nil, nil, err
		}
		return Aggregate(ctx, r, users)
	default:
		return nil, nil, fmt.Errorf("%w: unsupported search mode %d", ErrInvalidConfig, r.cfg.SearchMode)
	}
}

// Authenticate locates user's entry and binds as it with password. It
// returns the DN that was bound.
func (r *Resolver) Authenticate(ctx context.Context, user, password string) (string, error) {
	var dn string

	err := LogOperation(r.logger, "authenticate", map[string]any{"user": user}, func() error {
		entry, err := r.lookupUser(ctx, user, []string{r.cfg.UserNameAttribute})
		if err != nil {
			return err
		}
		dn = entry.DN

		if password == "" {
			return newBindError(dn, errors.New("empty password not allowed"))
		}

		authCfg := r.cfg
		authCfg.Authentication = AuthMethodSimpleBind
		authCfg.BindDN = dn
		authCfg.BindPassword = password

		s, err := r.open(ctx, &authCfg)
		if err != nil {
			return err
		}
		_ = s.Close()
		return nil
	})

	return dn, err
}
