package ldap

import (
	"cmp"
	"context"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/go-hclog"
)

// SRVResolver looks up DNS SRV records. *net.Resolver satisfies it.
type SRVResolver interface {
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
}

// serverInfo is one directory server advertised in DNS.
type serverInfo struct {
	Host     string
	Port     int
	UseTLS   bool
	Priority int
	Weight   int
}

func (s serverInfo) URL() string {
	scheme := "ldap"
	if s.UseTLS {
		scheme = "ldaps"
	}
	return scheme + "://" + net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// isDiscoveryURL reports whether a provider URL names no host and so has to
// be resolved through DNS.
func isDiscoveryURL(u *url.URL) bool {
	return u.Host == ""
}

// domainFromDN maps the dc= components of dn onto a DNS domain, so that
// dc=corp,dc=example,dc=com becomes corp.example.com.
func domainFromDN(dn string) (string, error) {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return "", fmt.Errorf("invalid DN %q: %w", dn, err)
	}

	var labels []string
	for _, rdn := range parsed.RDNs {
		for _, attr := range rdn.Attributes {
			if strings.EqualFold(attr.Type, "dc") {
				labels = append(labels, attr.Value)
			}
		}
	}
	if len(labels) == 0 {
		return "", fmt.Errorf("DN %q has no dc= components to derive a domain from", dn)
	}
	return strings.ToLower(strings.Join(labels, ".")), nil
}

// discoverProviders expands provider URLs without a host into the servers
// published under _ldap._tcp (or _ldaps._tcp) for the domain of their DN.
// URLs with a host are kept in place. A failed lookup contributes no servers.
func discoverProviders(ctx context.Context, urls []string, useTLS bool, resolver SRVResolver, logger hclog.Logger) ([]string, error) {
	out := make([]string, 0, len(urls))

	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid provider URL %q: %w", raw, err)
		}
		if !isDiscoveryURL(u) {
			out = append(out, raw)
			continue
		}

		domain, err := domainFromDN(strings.TrimPrefix(u.Path, "/"))
		if err != nil {
			return nil, fmt.Errorf("provider URL %q: %w", raw, err)
		}

		servers, err := lookupServers(ctx, resolver, domain, useTLS || u.Scheme == "ldaps", logger)
		if err != nil {
			logger.Warn("server discovery failed", "url", raw, "domain", domain, "error", err)
			continue
		}
		for _, s := range servers {
			out = append(out, s.URL())
		}
	}

	return out, nil
}

func lookupServers(ctx context.Context, resolver SRVResolver, domain string, useTLS bool, logger hclog.Logger) ([]serverInfo, error) {
	service := "ldap"
	if useTLS {
		service = "ldaps"
	}

	start := time.Now()
	_, records, err := resolver.LookupSRV(ctx, service, "tcp", domain)
	if err != nil {
		return nil, fmt.Errorf("SRV lookup failed for _%s._tcp.%s: %w", service, domain, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no SRV records found for _%s._tcp.%s", service, domain)
	}

	servers := make([]serverInfo, 0, len(records))
	for _, srv := range records {
		servers = append(servers, serverInfo{
			Host:     strings.TrimSuffix(srv.Target, "."),
			Port:     int(srv.Port),
			UseTLS:   useTLS,
			Priority: int(srv.Priority),
			Weight:   int(srv.Weight),
		})
	}
	sortServersByPriority(servers)

	logger.Debug("servers discovered",
		"domain", domain,
		"service", service,
		"count", len(servers),
		"duration", time.Since(start).String(),
	)
	return servers, nil
}

// sortServersByPriority orders servers by ascending priority and, within a
// priority, by descending weight (RFC 2782).
func sortServersByPriority(servers []serverInfo) {
	slices.SortStableFunc(servers, func(a, b serverInfo) int {
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		return cmp.Compare(b.Weight, a.Weight)
	})
}
