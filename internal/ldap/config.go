package ldap

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-ldap/ldap/v3"
)

// Config holds the fully resolved directory configuration consumed by the
// resolver. Values are copied into a Resolver at construction and never
// modified afterwards.
type Config struct {
	// Connection settings
	URLs           []string      // Provider URLs, tried in order
	UseTLS         bool          // Dial ldap:// URLs with TLS (java.naming.security.protocol=SSL)
	StartTLS       bool          // Upgrade plain connections with StartTLS
	TLSCACertFile  string        // PEM bundle used to verify the server certificate
	TLSSkipVerify  bool          // Skip certificate verification (not recommended)
	ConnectTimeout time.Duration `default:"30s"`
	ReadTimeout    time.Duration `default:"30s"`
	PageSize       uint32        // Paged search size; 0 disables paging

	// Authentication settings
	Authentication AuthMethod
	BindDN         string // Principal for simple or GSSAPI bind
	BindPassword   string
	KerberosRealm  string // Kerberos realm for GSSAPI authentication
	KerberosKeytab string // Path to Kerberos keytab file
	KerberosConfig string // Path to Kerberos config file (krb5.conf)
	KerberosCCache string // Path to Kerberos credential cache
	KerberosSPN    string // Overrides the ldap/<host> service principal

	SearchMode SearchMode `default:"0"`

	// User subtree
	UserSearchBase        string      `default:"ou=users"`
	UserSearchFilter      string      // Extra filter ANDed into user searches
	UserSearchScope       SearchScope `default:"1"`
	UserObjectClass       string      `default:"organizationalRole"`
	UserNameAttribute     string      `default:"uid"`
	UserMemberOfAttribute string      `default:"memberof"`
	UserMemberOfPattern   string      // Capture pattern applied to member-of values

	// Group subtree
	GroupSearchBase      string      `default:"ou=groups"`
	GroupSearchFilter    string      // Extra filter ANDed into group searches
	GroupSearchScope     SearchScope `default:"1"`
	GroupObjectClass     string      `default:"groupOfNames"`
	GroupNameAttribute   string      `default:"cn"`
	GroupNamePattern     string      // Capture pattern applied to group names
	GroupMemberAttribute string      `default:"member"`
	GroupMemberPattern   string      // Capture pattern applied to member values

	memberOfPattern    *Pattern
	groupNamePattern   *Pattern
	groupMemberPattern *Pattern
}

// NewConfig returns a configuration populated with the authorizer defaults.
func NewConfig() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to set default values: %w", err)
	}
	return cfg, nil
}

// Validate checks the connection settings and the fields used by the active
// search mode, and compiles every configured capture pattern.
func (c *Config) Validate() error {
	var errs []error

	if len(c.URLs) == 0 {
		errs = append(errs, errors.New("at least one provider URL is required"))
	}
	for _, raw := range c.URLs {
		u, err := url.Parse(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid provider URL %q: %w", raw, err))
			continue
		}
		if isDiscoveryURL(u) {
			if _, err := domainFromDN(strings.TrimPrefix(u.Path, "/")); err != nil {
				errs = append(errs, fmt.Errorf("provider URL %q: %w", raw, err))
			}
		}
		switch u.Scheme {
		case "ldap":
		case "ldaps":
			if c.StartTLS {
				errs = append(errs, fmt.Errorf("StartTLS cannot be used with %q", raw))
			}
		default:
			errs = append(errs, fmt.Errorf("unsupported provider URL scheme %q", raw))
		}
	}

	if c.Authentication == AuthMethodSimpleBind && c.BindDN != "" && c.BindPassword == "" {
		errs = append(errs, errors.New("simple authentication with a principal requires credentials"))
	}
	if c.ConnectTimeout < 0 || c.ReadTimeout < 0 {
		errs = append(errs, errors.New("timeouts cannot be negative"))
	}

	switch c.SearchMode {
	case SearchModeUsers:
		errs = append(errs, c.userFieldErrors()...)
		errs = append(errs, requireFields(map[string]string{
			"user member-of attribute": c.UserMemberOfAttribute,
		})...)
	case SearchModeGroups:
		errs = append(errs, c.groupFieldErrors()...)
	default:
		errs = append(errs, fmt.Errorf("unsupported search mode %d", c.SearchMode))
	}

	for _, p := range []struct {
		name string
		expr string
		dst  **Pattern
	}{
		{"user member-of attribute pattern", c.UserMemberOfPattern, &c.memberOfPattern},
		{"group name attribute pattern", c.GroupNamePattern, &c.groupNamePattern},
		{"group member attribute pattern", c.GroupMemberPattern, &c.groupMemberPattern},
	} {
		compiled, err := CompilePattern(p.expr)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
			continue
		}
		*p.dst = compiled
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// RequireUserSearch reports an error when the user subtree is not fully
// configured. Operations that look users up outside USERS mode call it lazily.
func (c *Config) RequireUserSearch() error {
	if errs := c.userFieldErrors(); len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (c *Config) userFieldErrors() []error {
	errs := requireFields(map[string]string{
		"user search base":    c.UserSearchBase,
		"user object class":   c.UserObjectClass,
		"user name attribute": c.UserNameAttribute,
	})
	if !c.UserSearchScope.valid() {
		errs = append(errs, fmt.Errorf("unsupported user search scope %d", c.UserSearchScope))
	}
	return errs
}

func (c *Config) groupFieldErrors() []error {
	errs := requireFields(map[string]string{
		"group search base":      c.GroupSearchBase,
		"group object class":     c.GroupObjectClass,
		"group name attribute":   c.GroupNameAttribute,
		"group member attribute": c.GroupMemberAttribute,
	})
	if !c.GroupSearchScope.valid() {
		errs = append(errs, fmt.Errorf("unsupported group search scope %d", c.GroupSearchScope))
	}
	return errs
}

func requireFields(fields map[string]string) []error {
	var errs []error
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		if strings.TrimSpace(fields[name]) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	return errs
}

// UserFilter returns the filter locating a single user by identifier.
func (c *Config) UserFilter(user string) string {
	return fmt.Sprintf("(&(objectClass=%s)(%s=%s)%s)",
		c.UserObjectClass, c.UserNameAttribute, ldap.EscapeFilter(user), wrapFilter(c.UserSearchFilter))
}

// UsersFilter returns the filter enumerating every user.
func (c *Config) UsersFilter() string {
	return fmt.Sprintf("(&(objectClass=%s)(%s=*)%s)",
		c.UserObjectClass, c.UserNameAttribute, wrapFilter(c.UserSearchFilter))
}

// GroupsFilter returns the filter enumerating every group.
func (c *Config) GroupsFilter() string {
	return fmt.Sprintf("(&(objectClass=%s)%s)", c.GroupObjectClass, wrapFilter(c.GroupSearchFilter))
}

// wrapFilter parenthesises a bare filter component such as "uid=a*".
func wrapFilter(f string) string {
	f = strings.TrimSpace(f)
	if f == "" || strings.HasPrefix(f, "(") {
		return f
	}
	return "(" + f + ")"
}
