package ldap

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := NewConfig()
	require.NoError(t, err)
	cfg.URLs = []string{"ldap://ldap.example.com:389"}
	return cfg
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, SearchModeGroups, cfg.SearchMode)
	assert.Equal(t, AuthMethodSimpleBind, cfg.Authentication)
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)

	assert.Equal(t, "ou=users", cfg.UserSearchBase)
	assert.Equal(t, ScopeSingleLevel, cfg.UserSearchScope)
	assert.Equal(t, "organizationalRole", cfg.UserObjectClass)
	assert.Equal(t, "uid", cfg.UserNameAttribute)
	assert.Equal(t, "memberof", cfg.UserMemberOfAttribute)
	assert.Empty(t, cfg.UserMemberOfPattern)

	assert.Equal(t, "ou=groups", cfg.GroupSearchBase)
	assert.Equal(t, ScopeSingleLevel, cfg.GroupSearchScope)
	assert.Equal(t, "groupOfNames", cfg.GroupObjectClass)
	assert.Equal(t, "cn", cfg.GroupNameAttribute)
	assert.Equal(t, "member", cfg.GroupMemberAttribute)
	assert.Zero(t, cfg.PageSize)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing URL",
			mutate:  func(c *Config) { c.URLs = nil },
			wantErr: "at least one provider URL is required",
		},
		{
			name:    "unsupported scheme",
			mutate:  func(c *Config) { c.URLs = []string{"http://ldap.example.com"} },
			wantErr: "unsupported provider URL scheme",
		},
		{
			name:   "discovery URL",
			mutate: func(c *Config) { c.URLs = []string{"ldap:///dc=example,dc=com"} },
		},
		{
			name:    "discovery URL without domain",
			mutate:  func(c *Config) { c.URLs = []string{"ldap:///ou=people"} },
			wantErr: "no dc= components",
		},
		{
			name: "StartTLS with ldaps",
			mutate: func(c *Config) {
				c.URLs = []string{"ldaps://ldap.example.com"}
				c.StartTLS = true
			},
			wantErr: "StartTLS cannot be used",
		},
		{
			name:    "principal without credentials",
			mutate:  func(c *Config) { c.BindDN = "cn=admin,dc=example,dc=com" },
			wantErr: "requires credentials",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.ReadTimeout = -time.Second },
			wantErr: "timeouts cannot be negative",
		},
		{
			name:    "groups mode needs group member attribute",
			mutate:  func(c *Config) { c.GroupMemberAttribute = "" },
			wantErr: "group member attribute is required",
		},
		{
			name: "groups mode ignores user fields",
			mutate: func(c *Config) {
				c.UserSearchBase = ""
				c.UserMemberOfAttribute = ""
			},
		},
		{
			name: "users mode needs member-of attribute",
			mutate: func(c *Config) {
				c.SearchMode = SearchModeUsers
				c.UserMemberOfAttribute = ""
			},
			wantErr: "user member-of attribute is required",
		},
		{
			name: "users mode ignores group fields",
			mutate: func(c *Config) {
				c.SearchMode = SearchModeUsers
				c.GroupSearchBase = ""
			},
		},
		{
			name:    "invalid scope",
			mutate:  func(c *Config) { c.GroupSearchScope = SearchScope(7) },
			wantErr: "unsupported group search scope 7",
		},
		{
			name:    "pattern without capture group",
			mutate:  func(c *Config) { c.GroupMemberPattern = "uid=.*" },
			wantErr: "group member attribute pattern",
		},
		{
			name:    "invalid pattern",
			mutate:  func(c *Config) { c.UserMemberOfPattern = "cn=(" },
			wantErr: "user member-of attribute pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := testConfig(t)
	cfg.URLs = nil
	cfg.GroupNameAttribute = ""
	cfg.GroupMemberPattern = "no-group"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one provider URL is required")
	assert.Contains(t, err.Error(), "group name attribute is required")
	assert.Contains(t, err.Error(), "no capture group")
}

func TestConfig_ValidateCompilesPatterns(t *testing.T) {
	cfg := testConfig(t)
	cfg.GroupMemberPattern = "uid=(.*),ou=users"
	require.NoError(t, cfg.Validate())

	require.NotNil(t, cfg.groupMemberPattern)
	assert.Nil(t, cfg.groupNamePattern)
	got, ok := cfg.groupMemberPattern.Match("uid=bob,ou=users")
	assert.True(t, ok)
	assert.Equal(t, "bob", got)
}

func TestConfig_RequireUserSearch(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.RequireUserSearch())

	cfg.UserNameAttribute = " "
	err := cfg.RequireUserSearch()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Contains(t, err.Error(), "user name attribute is required")
}

func TestConfig_Filters(t *testing.T) {
	cfg := testConfig(t)

	assert.Equal(t, "(&(objectClass=organizationalRole)(uid=alice))", cfg.UserFilter("alice"))
	assert.Equal(t, `(&(objectClass=organizationalRole)(uid=a\2a\28b\29))`, cfg.UserFilter("a*(b)"))
	assert.Equal(t, "(&(objectClass=organizationalRole)(uid=*))", cfg.UsersFilter())
	assert.Equal(t, "(&(objectClass=groupOfNames))", cfg.GroupsFilter())

	cfg.UserSearchFilter = "l=London"
	cfg.GroupSearchFilter = "(cn=kafka-*)"
	assert.Equal(t, "(&(objectClass=organizationalRole)(uid=alice)(l=London))", cfg.UserFilter("alice"))
	assert.Equal(t, "(&(objectClass=groupOfNames)(cn=kafka-*))", cfg.GroupsFilter())
}
