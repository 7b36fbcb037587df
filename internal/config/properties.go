package config

import (
	"fmt"
	"maps"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/magiconair/properties"
)

// Properties is a flat key/value view of an authorizer configuration.
type Properties map[string]string

// Keys returns the property names in lexical order.
func (p Properties) Keys() []string {
	return slices.Sorted(maps.Keys(p))
}

// loader reads the java.util.Properties text format. Values are taken
// literally: capture patterns end in '$' and must not be expanded.
var loader = properties.Loader{
	Encoding:         properties.ISO_8859_1,
	DisableExpansion: true,
}

// LoadPropertiesFile reads a Java properties file.
func LoadPropertiesFile(path string) (Properties, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open properties file: %w", err)
	}

	props, err := ReadProperties(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return props, nil
}

// ReadProperties parses properties text: '#' and '!' comments, '=', ':' or
// whitespace separators, backslash line continuation and backslash escapes
// including \uXXXX.
func ReadProperties(data []byte) (Properties, error) {
	p, err := loader.LoadBytes(data)
	if err != nil {
		return nil, err
	}
	return Properties(p.Map()), nil
}

// replacementToken finds the last {{...}} template expression in a value.
var replacementToken = regexp.MustCompile(`^.*(\{\{.*}}).*$`)

// ApplyReplacements substitutes a {{...}} template expression in each value
// when replacements has an entry for the exact expression. Values without a
// known expression are left untouched.
func (p Properties) ApplyReplacements(replacements Properties) {
	if len(replacements) == 0 {
		return
	}
	for key, value := range p {
		m := replacementToken.FindStringSubmatch(value)
		if m == nil {
			continue
		}
		if repl, ok := replacements[m[1]]; ok {
			p[key] = strings.ReplaceAll(value, m[1], repl)
		}
	}
}
