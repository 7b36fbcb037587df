package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/isometry/ldap-verifier/internal/ldap"
)

// KeyPrefix is the prefix of every authorizer LDAP property.
const KeyPrefix = "ldap."

type setter func(cfg *ldap.Config, value string) error

func str(dst func(*ldap.Config) *string) setter {
	return func(cfg *ldap.Config, value string) error {
		*dst(cfg) = value
		return nil
	}
}

func boolean(dst func(*ldap.Config) *bool) setter {
	return func(cfg *ldap.Config, value string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("invalid boolean %q", value)
		}
		*dst(cfg) = b
		return nil
	}
}

func millis(dst func(*ldap.Config) *time.Duration) setter {
	return func(cfg *ldap.Config, value string) error {
		ms, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || ms < 0 {
			return fmt.Errorf("invalid duration in milliseconds %q", value)
		}
		*dst(cfg) = time.Duration(ms) * time.Millisecond
		return nil
	}
}

func scope(dst func(*ldap.Config) *ldap.SearchScope) setter {
	return func(cfg *ldap.Config, value string) error {
		s, err := ldap.ParseSearchScope(value)
		if err != nil {
			return err
		}
		*dst(cfg) = s
		return nil
	}
}

// setters maps property names, without KeyPrefix, onto Config fields.
var setters = map[string]setter{
	"java.naming.provider.url": func(cfg *ldap.Config, value string) error {
		cfg.URLs = strings.Fields(value)
		return nil
	},
	"java.naming.security.principal":   str(func(c *ldap.Config) *string { return &c.BindDN }),
	"java.naming.security.credentials": str(func(c *ldap.Config) *string { return &c.BindPassword }),
	"java.naming.security.authentication": func(cfg *ldap.Config, value string) error {
		m, err := ldap.ParseAuthMethod(value)
		if err != nil {
			return err
		}
		cfg.Authentication = m
		return nil
	},
	"java.naming.security.protocol": func(cfg *ldap.Config, value string) error {
		cfg.UseTLS = strings.EqualFold(strings.TrimSpace(value), "SSL")
		return nil
	},

	"search.mode": func(cfg *ldap.Config, value string) error {
		m, err := ldap.ParseSearchMode(value)
		if err != nil {
			return err
		}
		cfg.SearchMode = m
		return nil
	},
	"search.page.size": func(cfg *ldap.Config, value string) error {
		n, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
		if err != nil {
			return fmt.Errorf("invalid page size %q", value)
		}
		cfg.PageSize = uint32(n)
		return nil
	},

	"user.search.base":                str(func(c *ldap.Config) *string { return &c.UserSearchBase }),
	"user.search.filter":              str(func(c *ldap.Config) *string { return &c.UserSearchFilter }),
	"user.search.scope":               scope(func(c *ldap.Config) *ldap.SearchScope { return &c.UserSearchScope }),
	"user.object.class":               str(func(c *ldap.Config) *string { return &c.UserObjectClass }),
	"user.name.attribute":             str(func(c *ldap.Config) *string { return &c.UserNameAttribute }),
	"user.memberof.attribute":         str(func(c *ldap.Config) *string { return &c.UserMemberOfAttribute }),
	"user.memberof.attribute.pattern": str(func(c *ldap.Config) *string { return &c.UserMemberOfPattern }),

	"group.search.base":              str(func(c *ldap.Config) *string { return &c.GroupSearchBase }),
	"group.search.filter":            str(func(c *ldap.Config) *string { return &c.GroupSearchFilter }),
	"group.search.scope":             scope(func(c *ldap.Config) *ldap.SearchScope { return &c.GroupSearchScope }),
	"group.object.class":             str(func(c *ldap.Config) *string { return &c.GroupObjectClass }),
	"group.name.attribute":           str(func(c *ldap.Config) *string { return &c.GroupNameAttribute }),
	"group.name.attribute.pattern":   str(func(c *ldap.Config) *string { return &c.GroupNamePattern }),
	"group.member.attribute":         str(func(c *ldap.Config) *string { return &c.GroupMemberAttribute }),
	"group.member.attribute.pattern": str(func(c *ldap.Config) *string { return &c.GroupMemberPattern }),

	"connect.timeout.ms":       millis(func(c *ldap.Config) *time.Duration { return &c.ConnectTimeout }),
	"read.timeout.ms":          millis(func(c *ldap.Config) *time.Duration { return &c.ReadTimeout }),
	"starttls":                 boolean(func(c *ldap.Config) *bool { return &c.StartTLS }),
	"tls.ca.file":              str(func(c *ldap.Config) *string { return &c.TLSCACertFile }),
	"tls.insecure.skip.verify": boolean(func(c *ldap.Config) *bool { return &c.TLSSkipVerify }),

	"kerberos.realm":  str(func(c *ldap.Config) *string { return &c.KerberosRealm }),
	"kerberos.keytab": str(func(c *ldap.Config) *string { return &c.KerberosKeytab }),
	"kerberos.config": str(func(c *ldap.Config) *string { return &c.KerberosConfig }),
	"kerberos.ccache": str(func(c *ldap.Config) *string { return &c.KerberosCCache }),
	"kerberos.spn":    str(func(c *ldap.Config) *string { return &c.KerberosSPN }),
}

// KnownKey reports whether name, with or without KeyPrefix, is understood.
func KnownKey(name string) bool {
	_, ok := setters[strings.TrimPrefix(name, KeyPrefix)]
	return ok
}

// ToLDAPConfig applies props on top of the authorizer defaults. Unknown
// ldap.* keys are logged and ignored; every malformed value is reported.
// The result still has to pass ldap.Config.Validate.
func ToLDAPConfig(props Properties, logger hclog.Logger) (*ldap.Config, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	cfg, err := ldap.NewConfig()
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, key := range props.Keys() {
		name, ok := strings.CutPrefix(key, KeyPrefix)
		if !ok {
			logger.Trace("skipping non-LDAP property", "key", key)
			continue
		}
		set, ok := setters[name]
		if !ok {
			logger.Debug("ignoring unsupported property", "key", key)
			continue
		}
		if err := set(cfg, props[key]); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ldap.ErrInvalidConfig, errors.Join(errs...))
	}
	return cfg, nil
}
