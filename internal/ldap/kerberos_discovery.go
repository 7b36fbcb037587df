package ldap

import (
	"fmt"
	"os"
	"strings"
)

// runtimeKrb5Conf returns a krb5.conf that locates the KDCs of realm through
// DNS SRV records. It stands in for a missing /etc/krb5.conf.
func runtimeKrb5Conf(realm string) string {
	realm = strings.ToUpper(realm)
	domain := strings.ToLower(realm)

	return fmt.Sprintf(`[libdefaults]
    default_realm = %s
    dns_lookup_kdc = true
    dns_lookup_realm = false
    rdns = false
    udp_preference_limit = 1

[domain_realm]
    .%s = %s
    %s = %s
`, realm, domain, realm, domain, realm)
}

// writeRuntimeKrb5Conf writes runtimeKrb5Conf to a temporary file. The
// caller removes it with the returned cleanup once the client is built.
func writeRuntimeKrb5Conf(realm string) (path string, cleanup func(), err error) {
	if realm == "" {
		return "", nil, fmt.Errorf("kerberos realm is required for KDC discovery")
	}

	f, err := os.CreateTemp("", "ldap-verifier-krb5-*.conf")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create runtime krb5.conf: %w", err)
	}
	cleanup = func() {
		_ = os.Remove(f.Name())
	}

	if _, err := f.WriteString(runtimeKrb5Conf(realm)); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write runtime krb5.conf: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write runtime krb5.conf: %w", err)
	}

	return f.Name(), cleanup, nil
}
