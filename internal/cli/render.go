package cli

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/isometry/ldap-verifier/internal/ldap"
)

// renderPlain writes each key followed by its tab-indented members.
func renderPlain(w io.Writer, m ldap.GroupMembership) error {
	for _, key := range m.Groups() {
		if _, err := fmt.Fprintf(w, "%s:\n", key); err != nil {
			return err
		}
		for _, member := range m[key].Sorted() {
			if _, err := fmt.Fprintf(w, "\t%s\n", member); err != nil {
				return err
			}
		}
	}
	return nil
}

// renderYAML writes m as a mapping of sorted sequences.
func renderYAML(w io.Writer, m ldap.GroupMembership) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]ldap.Set(m)); err != nil {
		return err
	}
	return enc.Close()
}

func render(w io.Writer, m ldap.GroupMembership, asYAML bool) error {
	if asYAML {
		return renderYAML(w, m)
	}
	return renderPlain(w, m)
}
