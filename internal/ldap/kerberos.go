package ldap

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	"github.com/hashicorp/go-hclog"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

const defaultKrb5Conf = "/etc/krb5.conf"

// kerberosSettings is the resolved view of the Kerberos fields of a Config.
type kerberosSettings struct {
	Principal string
	Realm     string
	Password  string
	Keytab    string
	CCache    string
	Krb5Conf  string
	SPN       string

	// DiscoverKDC is set when no krb5.conf was configured; a missing default
	// file is then replaced by one that finds the KDCs through DNS.
	DiscoverKDC bool
}

// prepareKerberosConfig validates the Kerberos fields of cfg and fills in
// defaults. cfg itself is left untouched.
func prepareKerberosConfig(cfg *Config) (*kerberosSettings, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	ks := &kerberosSettings{
		Principal: cfg.BindDN,
		Realm:     cfg.KerberosRealm,
		Password:  cfg.BindPassword,
		Keytab:    cfg.KerberosKeytab,
		CCache:    cfg.KerberosCCache,
		Krb5Conf:  cfg.KerberosConfig,
		SPN:       cfg.KerberosSPN,
	}

	if ks.Krb5Conf == "" {
		ks.Krb5Conf = defaultKrb5Conf
		ks.DiscoverKDC = true
	}

	// user@REALM carries its own realm
	if user, realm, ok := strings.Cut(ks.Principal, "@"); ok && !strings.Contains(realm, "@") {
		ks.Principal = user
		if ks.Realm == "" {
			ks.Realm = realm
		}
	}

	hasExplicitCCache := ks.CCache != "" && fileExists(ks.CCache)
	hasDefaultCCache := fileExists(getDefaultCCachePath())

	// A credential cache names its own principal
	if hasExplicitCCache || hasDefaultCCache {
		return ks, nil
	}

	if ks.Realm == "" {
		return nil, fmt.Errorf("kerberos realm is required (set ldap.kerberos.realm or use a user@REALM principal)")
	}
	if ks.Principal == "" {
		return nil, fmt.Errorf("principal is required for Kerberos authentication")
	}

	hasExplicitKeytab := ks.Keytab != "" && fileExists(ks.Keytab)
	hasDefaultKeytab := fileExists(getDefaultKeytabPath())
	if !hasExplicitKeytab && !hasDefaultKeytab && ks.Password == "" {
		return nil, fmt.Errorf("no suitable Kerberos credentials found: provide a credential cache, a keytab or a password")
	}

	return ks, nil
}

// createGSSAPIClient creates a GSSAPI client from the resolved settings.
// Priority order: credential cache, keytab, password.
func createGSSAPIClient(logger hclog.Logger, ks *kerberosSettings) (ldap.GSSAPIClient, error) {
	logger = loggerOrNull(logger)

	if !fileExists(ks.Krb5Conf) {
		if !ks.DiscoverKDC || ks.Realm == "" {
			return nil, fmt.Errorf("%w: kerberos configuration file not found at %s; "+
				"create it or set ldap.kerberos.config, for example:\n%s",
				ErrInvalidConfig, ks.Krb5Conf, generateExampleKrb5Conf(ks.Realm))
		}

		path, cleanup, err := writeRuntimeKrb5Conf(ks.Realm)
		if err != nil {
			return nil, err
		}
		defer cleanup()

		LogKerberosEvent(logger, "runtime_config", map[string]any{"realm": ks.Realm, "missing": ks.Krb5Conf})
		resolved := *ks
		resolved.Krb5Conf = path
		ks = &resolved
	}

	// Priority 1: Explicit credential cache
	if ks.CCache != "" && fileExists(ks.CCache) {
		LogKerberosEvent(logger, "client_created", map[string]any{"source": "ccache", "path": ks.CCache})
		return gssapi.NewClientFromCCache(ks.CCache, ks.Krb5Conf, krb5client.DisablePAFXFAST(true))
	}

	// Priority 2: Default credential cache
	if defaultCCache := getDefaultCCachePath(); fileExists(defaultCCache) {
		LogKerberosEvent(logger, "client_created", map[string]any{"source": "default_ccache", "path": defaultCCache})
		return gssapi.NewClientFromCCache(defaultCCache, ks.Krb5Conf, krb5client.DisablePAFXFAST(true))
	}

	// Priority 3: Explicit keytab
	if ks.Keytab != "" && fileExists(ks.Keytab) {
		LogKerberosEvent(logger, "client_created", map[string]any{"source": "keytab", "path": ks.Keytab})
		return gssapi.NewClientWithKeytab(ks.Principal, ks.Realm, ks.Keytab, ks.Krb5Conf, krb5client.DisablePAFXFAST(true))
	}

	// Priority 4: Default keytab
	if defaultKeytab := getDefaultKeytabPath(); ks.Principal != "" && fileExists(defaultKeytab) {
		LogKerberosEvent(logger, "client_created", map[string]any{"source": "default_keytab", "path": defaultKeytab})
		return gssapi.NewClientWithKeytab(ks.Principal, ks.Realm, defaultKeytab, ks.Krb5Conf, krb5client.DisablePAFXFAST(true))
	}

	// Priority 5: Password
	if ks.Principal != "" && ks.Password != "" {
		LogKerberosEvent(logger, "client_created", map[string]any{"source": "password", "principal": ks.Principal})
		return gssapi.NewClientWithPassword(ks.Principal, ks.Realm, ks.Password, ks.Krb5Conf, krb5client.DisablePAFXFAST(true))
	}

	return nil, fmt.Errorf("no suitable credentials found for Kerberos authentication")
}

// buildServicePrincipal returns the SPN override, or ldap/<host> for the
// provider URL the session connected to.
func buildServicePrincipal(ks *kerberosSettings, providerURL string) (string, error) {
	if ks.SPN != "" {
		return ks.SPN, nil
	}

	host, err := extractHostFromURL(providerURL)
	if err != nil {
		return "", err
	}
	return "ldap/" + host, nil
}

// extractHostFromURL extracts the hostname (without port) from an LDAP URL.
func extractHostFromURL(ldapURL string) (string, error) {
	if ldapURL == "" {
		return "", fmt.Errorf("LDAP URL cannot be empty")
	}

	parsedURL, err := url.Parse(ldapURL)
	if err != nil {
		return "", fmt.Errorf("invalid LDAP URL: %w", err)
	}

	hostname := parsedURL.Hostname()
	if hostname == "" {
		return "", fmt.Errorf("no hostname found in URL: %s", ldapURL)
	}

	return hostname, nil
}

// getDefaultCCachePath returns the default credential cache location.
func getDefaultCCachePath() string {
	if ccache := os.Getenv("KRB5CCNAME"); ccache != "" {
		return strings.TrimPrefix(ccache, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}

// getDefaultKeytabPath returns the default keytab location.
func getDefaultKeytabPath() string {
	if keytab := os.Getenv("KRB5_KTNAME"); keytab != "" {
		return strings.TrimPrefix(keytab, "FILE:")
	}
	return "/etc/krb5.keytab"
}

// fileExists checks if a file exists and is readable.
func fileExists(path string) bool {
	if path == "" {
		return false
	}
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	_ = file.Close()
	return true
}

// generateExampleKrb5Conf generates example krb5.conf content for error messages.
func generateExampleKrb5Conf(realm string) string {
	if realm == "" {
		realm = "EXAMPLE.COM"
	}
	domain := strings.ToLower(realm)

	return fmt.Sprintf(`[libdefaults]
    default_realm = %s
    dns_lookup_kdc = false

[realms]
    %s = {
        kdc = dc.%s:88
    }

[domain_realm]
    .%s = %s`, realm, realm, domain, domain, realm)
}
