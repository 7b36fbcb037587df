package ldap

import (
	"fmt"
	"regexp"

	"github.com/hashicorp/go-hclog"
)

// Pattern is a compiled capture pattern. A value is accepted only when it
// matches the whole expression; the extracted identifier is capture group 1.
type Pattern struct {
	expr string
	re   *regexp.Regexp
}

// CompilePattern compiles expr anchored at both ends. An empty expression
// means no pattern and yields nil.
func CompilePattern(expr string) (*Pattern, error) {
	if expr == "" {
		return nil, nil
	}
	// expr must parse on its own, otherwise "a)|(b" escapes the anchors.
	raw, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid pattern %q: %w", ErrInvalidConfig, expr, err)
	}
	if raw.NumSubexp() < 1 {
		return nil, fmt.Errorf("%w: pattern %q has no capture group", ErrInvalidConfig, expr)
	}
	re, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid pattern %q: %w", ErrInvalidConfig, expr, err)
	}
	return &Pattern{expr: expr, re: re}, nil
}

// String returns the expression as configured.
func (p *Pattern) String() string {
	if p == nil {
		return ""
	}
	return p.expr
}

// Match returns capture group 1 when v matches the whole pattern. A group
// that took no part in the match yields no value.
func (p *Pattern) Match(v string) (string, bool) {
	loc := p.re.FindStringSubmatchIndex(v)
	if loc == nil || loc[2] < 0 {
		return "", false
	}
	return v[loc[2]:loc[3]], true
}

// AttributeContext labels an extraction for diagnostics only.
type AttributeContext struct {
	Parent string     // Entry the value belongs to, if known
	Kind   string     // e.g. "group name", "member"
	Mode   SearchMode // Active search mode
}

// ExtractAttribute normalizes a raw attribute value into a canonical
// identifier. A nil value, or one that does not match pattern, yields no
// value; neither case is an error.
func ExtractAttribute(logger hclog.Logger, value *string, pattern *Pattern, actx AttributeContext) (string, bool) {
	if value == nil {
		loggerOrNull(logger).Error("ignoring null attribute",
			"kind", actx.Kind, "mode", actx.Mode.String(), "parent", actx.Parent)
		return "", false
	}
	if pattern == nil {
		return *value, true
	}
	v, ok := pattern.Match(*value)
	if !ok {
		loggerOrNull(logger).Debug("ignoring attribute that does not match pattern",
			"kind", actx.Kind, "mode", actx.Mode.String(), "parent", actx.Parent,
			"value", *value, "pattern", pattern.String())
		return "", false
	}
	return v, true
}
