package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isometry/ldap-verifier/internal/ldap"
)

func testMembership() ldap.GroupMembership {
	m := make(ldap.GroupMembership)
	m.Add("ops", "u2")
	m.Add("ops", "u1")
	m.Add("dev", "u2")
	m.AddGroup("empty")
	return m
}

func TestRenderPlain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, testMembership(), false))
	assert.Equal(t, "dev:\n\tu2\nempty:\nops:\n\tu1\n\tu2\n", buf.String())
}

func TestRenderYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, testMembership(), true))
	assert.Equal(t, "dev:\n  - u2\nempty: []\nops:\n  - u1\n  - u2\n", buf.String())
}

func TestRenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, ldap.GroupMembership{}, false))
	assert.Empty(t, buf.String())
}
