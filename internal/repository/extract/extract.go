// Package extract turns node properties into store fields and fulltext
// fragments according to configured per-type rules.
package extract

import (
	"fmt"
	"strings"

	"github.com/treedex/treedex/internal/config"
	"github.com/treedex/treedex/internal/domain"
)

// Rules answers node-type capability lookups and drives property extraction.
type Rules struct {
	defaults config.NodeTypeConfig
	rules    map[string]config.NodeTypeConfig
}

// NewRules builds extraction rules from configuration.
func NewRules(cfg config.TypesConfig) *Rules {
	return &Rules{defaults: cfg.Default, rules: cfg.Rules}
}

func (r *Rules) forType(nodeType string) config.NodeTypeConfig {
	if rule, ok := r.rules[nodeType]; ok {
		return rule
	}
	return r.defaults
}

// FulltextEnabled reports whether the node type participates in indexing.
// Types participate unless explicitly disabled.
func (r *Rules) FulltextEnabled(nodeType string) bool {
	rule := r.forType(nodeType)
	if rule.Fulltext == nil {
		return true
	}
	return *rule.Fulltext
}

// FulltextRoot reports whether the node type owns an aggregate document.
func (r *Rules) FulltextRoot(nodeType string) bool {
	return r.forType(nodeType).FulltextRoot
}

// Extract maps scalar node properties onto store fields and collects the
// configured text properties into the fulltext fragment. diag fires for
// every property no rule covers.
func (r *Rules) Extract(node *domain.Node, diag func(property string)) (map[string]any, domain.Fragment, error) {
	rule := r.forType(node.Type)
	skip := toSet(rule.SkipProps)
	text := toSet(rule.TextProps)

	fields := make(map[string]any, len(node.Properties))
	fragment := domain.Fragment{}

	for name, value := range node.Properties {
		if skip[name] {
			continue
		}
		scalar, ok := scalarValue(value)
		if !ok {
			if diag != nil {
				diag(name)
			}
			continue
		}
		fields[name] = scalar
		if text[name] {
			str, ok := scalar.(string)
			if !ok {
				return nil, nil, fmt.Errorf("text property %s of %s is not a string", name, node.Identifier)
			}
			fragment[name] = stripMarkup(str)
		}
	}
	return fields, fragment, nil
}

func toSet(props []string) map[string]bool {
	if len(props) == 0 {
		return nil
	}
	set := make(map[string]bool, len(props))
	for _, p := range props {
		set[p] = true
	}
	return set
}

// scalarValue admits the property shapes the store can hold directly.
func scalarValue(value any) (any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case string, bool, int, int64, float64:
		return v, true
	case []string:
		return v, true
	case []any:
		// string lists survive JSON round-trips as []any
		for _, item := range v {
			if _, ok := item.(string); !ok {
				return nil, false
			}
		}
		return v, true
	default:
		return nil, false
	}
}

// stripMarkup flattens HTML-ish property values to plain text. Tags become
// separators so adjacent blocks do not run together.
func stripMarkup(s string) string {
	if !strings.ContainsRune(s, '<') {
		return strings.TrimSpace(s)
	}
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Mapper derives store-safe type identifiers from CMS node type names.
type Mapper struct{}

// StoreType lowercases the node type name and replaces separators the store
// rejects. "Acme.Site:Document" becomes "acme-site-document".
func (Mapper) StoreType(nodeType string) string {
	var b strings.Builder
	b.Grow(len(nodeType))
	for _, r := range strings.ToLower(nodeType) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
