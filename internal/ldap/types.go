package ldap

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// SearchMode selects the group-resolution strategy.
type SearchMode int

const (
	SearchModeGroups SearchMode = iota // One search over the group subtree
	SearchModeUsers                    // One search per user over the user subtree
)

// String returns the configuration spelling of the search mode.
func (m SearchMode) String() string {
	switch m {
	case SearchModeGroups:
		return "GROUPS"
	case SearchModeUsers:
		return "USERS"
	default:
		return "unknown"
	}
}

// ParseSearchMode parses GROUPS or USERS, case-insensitively.
func ParseSearchMode(s string) (SearchMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GROUPS":
		return SearchModeGroups, nil
	case "USERS":
		return SearchModeUsers, nil
	default:
		return 0, fmt.Errorf("%w: unsupported search mode %q", ErrInvalidConfig, s)
	}
}

// SearchScope defines LDAP search scope.
type SearchScope int

const (
	ScopeBaseObject SearchScope = iota
	ScopeSingleLevel
	ScopeWholeSubtree
)

func (s SearchScope) String() string {
	switch s {
	case ScopeBaseObject:
		return "base"
	case ScopeSingleLevel:
		return "one"
	case ScopeWholeSubtree:
		return "sub"
	default:
		return "unknown"
	}
}

func (s SearchScope) valid() bool {
	return s >= ScopeBaseObject && s <= ScopeWholeSubtree
}

// ParseSearchScope accepts the JNDI numeric form (0, 1, 2) as well as the
// LDAP URL names (base, one, sub).
func ParseSearchScope(s string) (SearchScope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "base", "object":
		return ScopeBaseObject, nil
	case "one", "onelevel", "single":
		return ScopeSingleLevel, nil
	case "sub", "subtree":
		return ScopeWholeSubtree, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || !SearchScope(n).valid() {
		return 0, fmt.Errorf("%w: unsupported search scope %q", ErrInvalidConfig, s)
	}
	return SearchScope(n), nil
}

// AuthMethod defines authentication method types.
type AuthMethod int

const (
	AuthMethodSimpleBind AuthMethod = iota // Username/password authentication
	AuthMethodKerberos                     // GSSAPI/Kerberos authentication
	AuthMethodNone                         // Anonymous bind
)

// String returns string representation of authentication method.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodSimpleBind:
		return "simple"
	case AuthMethodKerberos:
		return "GSSAPI"
	case AuthMethodNone:
		return "none"
	default:
		return "unknown"
	}
}

// ParseAuthMethod parses the java.naming.security.authentication spelling.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "simple":
		return AuthMethodSimpleBind, nil
	case "gssapi", "kerberos":
		return AuthMethodKerberos, nil
	case "none", "anonymous":
		return AuthMethodNone, nil
	default:
		return 0, fmt.Errorf("%w: unsupported authentication mechanism %q", ErrInvalidConfig, s)
	}
}

// SearchRequest encapsulates LDAP search parameters.
type SearchRequest struct {
	BaseDN     string
	Scope      SearchScope
	Filter     string
	Attributes []string
}

// Entry is a single search result: a DN and its attribute values.
// Attribute names are matched case-insensitively.
type Entry struct {
	DN         string
	Attributes map[string][]string
}

// Values returns every value of the named attribute, or nil when absent.
func (e *Entry) Values(name string) []string {
	if e == nil {
		return nil
	}
	if v, ok := e.Attributes[name]; ok {
		return v
	}
	for k, v := range e.Attributes {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}

// FirstValue returns the first value of the named attribute, or nil when absent.
func (e *Entry) FirstValue(name string) *string {
	values := e.Values(name)
	if len(values) == 0 {
		return nil
	}
	return &values[0]
}

// Set is an unordered collection of distinct identifiers.
type Set map[string]struct{}

// NewSet returns a set holding the given values.
func NewSet(values ...string) Set {
	s := make(Set, len(values))
	for _, v := range values {
		s.Add(v)
	}
	return s
}

func (s Set) Add(v string) {
	s[v] = struct{}{}
}

func (s Set) Has(v string) bool {
	_, ok := s[v]
	return ok
}

func (s Set) Len() int {
	return len(s)
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Missing returns the members of want that are not in s, sorted.
func (s Set) Missing(want Set) []string {
	var missing []string
	for v := range want {
		if !s.Has(v) {
			missing = append(missing, v)
		}
	}
	slices.Sort(missing)
	return missing
}

// ContainsAll reports whether every member of want is in s.
func (s Set) ContainsAll(want Set) bool {
	return len(s.Missing(want)) == 0
}

// MarshalYAML renders the set as a sorted sequence.
func (s Set) MarshalYAML() (any, error) {
	return s.Sorted(), nil
}

// GroupMembership maps a group identifier to its member identifiers.
type GroupMembership map[string]Set

// Add records user as a member of group.
func (m GroupMembership) Add(group, user string) {
	m.AddGroup(group).Add(user)
}

// AddGroup ensures group is present and returns its member set.
func (m GroupMembership) AddGroup(group string) Set {
	members, ok := m[group]
	if !ok {
		members = make(Set)
		m[group] = members
	}
	return members
}

// Groups returns the group identifiers in lexical order.
func (m GroupMembership) Groups() []string {
	out := make([]string, 0, len(m))
	for g := range m {
		out = append(out, g)
	}
	slices.Sort(out)
	return out
}

// MemberOf returns the groups that list user as a member.
func (m GroupMembership) MemberOf(user string) Set {
	groups := NewSet()
	for group, members := range m {
		if members.Has(user) {
			groups.Add(group)
		}
	}
	return groups
}
