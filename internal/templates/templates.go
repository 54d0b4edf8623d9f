package templates

import (
	"fmt"
	"strings"
)

// Parser is an in-process template repository. Templates are organised by
// group and name, and carry $name placeholders that are filled from the
// substitutions map on retrieval.
type Parser struct {
	locale string
	groups map[string]map[string]string
}

// NewParser creates a Parser for the given locale, falling back to "en"
// when the locale is unknown.
func NewParser(locale string) *Parser {
	groups, ok := locales[locale]
	if !ok {
		locale = DefaultLocale
		groups = locales[locale]
	}
	return &Parser{locale: locale, groups: groups}
}

// Get returns the template identified by group and name with every $key
// placeholder replaced by its substitution value.
func (p *Parser) Get(group, name string, substitutions map[string]string) (string, error) {
	g, ok := p.groups[group]
	if !ok {
		return "", fmt.Errorf("unknown template group: %s", group)
	}
	tmpl, ok := g[name]
	if !ok {
		return "", fmt.Errorf("unknown template %s in group %s", name, group)
	}

	for key, value := range substitutions {
		tmpl = strings.ReplaceAll(tmpl, "$"+key, value)
	}
	return tmpl, nil
}

// Locale returns the locale this parser serves.
func (p *Parser) Locale() string {
	return p.locale
}
