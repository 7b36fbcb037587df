package cli

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/jimlambrt/gldap"
	"github.com/stretchr/testify/require"
)

const (
	serviceDN     = "cn=kafka,ou=services,dc=example,dc=com"
	servicePass   = "s3cret"
	usersBaseDN   = "ou=users,dc=example,dc=com"
	groupsBaseDN  = "ou=groups,dc=example,dc=com"
	alicePassword = "alice-password"
)

type fixture struct {
	dn    string
	attrs map[string][]string
}

var (
	testUsers = []fixture{
		{
			dn: "uid=alice," + usersBaseDN,
			attrs: map[string][]string{
				"uid":          {"alice"},
				"userPassword": {alicePassword},
				"memberOf":     {"cn=ops," + groupsBaseDN, "cn=dev," + groupsBaseDN},
			},
		},
		{
			dn: "uid=bob," + usersBaseDN,
			attrs: map[string][]string{
				"uid":      {"bob"},
				"memberOf": {"cn=ops," + groupsBaseDN},
			},
		},
	}
	testGroups = []fixture{
		{
			dn: "cn=ops," + groupsBaseDN,
			attrs: map[string][]string{
				"cn":     {"ops"},
				"member": {"uid=alice," + usersBaseDN, "uid=bob," + usersBaseDN},
			},
		},
		{
			dn: "cn=dev," + groupsBaseDN,
			attrs: map[string][]string{
				"cn":     {"dev"},
				"member": {"uid=alice," + usersBaseDN},
			},
		},
	}
)

// uidAssertion finds the user name equality in the filters the resolver builds.
var uidAssertion = regexp.MustCompile(`\(uid=([^()*]+)\)`)

// startDirectory runs an in-process directory and returns its URL.
func startDirectory(t *testing.T) string {
	t.Helper()

	s, err := gldap.NewServer(gldap.WithLogger(hclog.NewNullLogger()))
	require.NoError(t, err)

	mux, err := gldap.NewMux()
	require.NoError(t, err)
	require.NoError(t, mux.Bind(handleBind))
	require.NoError(t, mux.Search(handleSearch(testUsers), gldap.WithBaseDN(usersBaseDN), gldap.WithLabel("users")))
	require.NoError(t, mux.Search(handleSearch(testGroups), gldap.WithBaseDN(groupsBaseDN), gldap.WithLabel("groups")))
	require.NoError(t, s.Router(mux))

	addr := fmt.Sprintf("127.0.0.1:%d", freePort(t))
	go func() {
		_ = s.Run(addr)
	}()
	t.Cleanup(func() { _ = s.Stop() })

	deadline := time.Now().Add(5 * time.Second)
	for !s.Ready() {
		require.True(t, time.Now().Before(deadline), "directory did not start")
		time.Sleep(time.Millisecond)
	}
	return "ldap://" + addr
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func handleBind(w *gldap.ResponseWriter, r *gldap.Request) {
	resp := r.NewBindResponse(gldap.WithResponseCode(gldap.ResultInvalidCredentials))
	defer func() {
		_ = w.Write(resp)
	}()

	m, err := r.GetSimpleBindMessage()
	if err != nil {
		return
	}
	switch {
	case m.UserName == serviceDN && string(m.Password) == servicePass:
		resp.SetResultCode(gldap.ResultSuccess)
	case m.UserName == testUsers[0].dn && string(m.Password) == alicePassword:
		resp.SetResultCode(gldap.ResultSuccess)
	}
}

// handleSearch returns the user named by a (uid=...) assertion, or every
// fixture when the filter names none.
func handleSearch(entries []fixture) func(w *gldap.ResponseWriter, r *gldap.Request) {
	return func(w *gldap.ResponseWriter, r *gldap.Request) {
		res := r.NewSearchDoneResponse(gldap.WithResponseCode(gldap.ResultOperationsError))
		defer func() {
			_ = w.Write(res)
		}()

		m, err := r.GetSearchMessage()
		if err != nil {
			return
		}

		var uid string
		if match := uidAssertion.FindStringSubmatch(m.Filter); match != nil {
			uid = match[1]
		}
		for _, e := range entries {
			if uid != "" {
				values := e.attrs["uid"]
				if len(values) == 0 || !strings.EqualFold(values[0], uid) {
					continue
				}
			}
			entry := r.NewSearchResponseEntry(e.dn)
			for name, values := range e.attrs {
				entry.AddAttribute(name, values)
			}
			if err := w.Write(entry); err != nil {
				return
			}
		}
		res.SetResultCode(gldap.ResultSuccess)
	}
}
