package domain

import "strings"

// Well-known document fields. The double-underscore prefix keeps them clear
// of extracted content properties.
const (
	FieldIdentifier    = "__identifier"
	FieldPath          = "__path"
	FieldType          = "__type"
	FieldWorkspace     = "__workspace"
	FieldDimensions    = "__dimensionCombinations"
	FieldDimensionHash = "__dimensionCombinationHash"
	FieldFulltext      = "__fulltext"
	FieldFulltextParts = "__fulltextParts"
)

// Fragment is one node's field-name → text contribution to its fulltext
// root's aggregate.
type Fragment map[string]string

// Empty reports whether the fragment carries no text at all.
func (f Fragment) Empty() bool {
	for _, text := range f {
		if strings.TrimSpace(text) != "" {
			return false
		}
	}
	return true
}

// Trimmed returns a copy with surrounding whitespace stripped and blank
// entries dropped.
func (f Fragment) Trimmed() Fragment {
	out := make(Fragment, len(f))
	for field, text := range f {
		if t := strings.TrimSpace(text); t != "" {
			out[field] = t
		}
	}
	return out
}
