package domain

import (
	"sort"
	"strings"
)

// FulltextParts is the ordered contributor-id → fragment map held on a
// fulltext root document. Insertion order is significant: the aggregate is
// rebuilt by concatenating contributions in the order they first appeared.
type FulltextParts struct {
	order []string
	parts map[string]Fragment
}

// NewFulltextParts creates an empty parts map.
func NewFulltextParts() *FulltextParts {
	return &FulltextParts{parts: make(map[string]Fragment)}
}

// Set stores or replaces the contribution for a node. A replacement keeps the
// contributor's original position.
func (p *FulltextParts) Set(contributor string, fragment Fragment) {
	if _, ok := p.parts[contributor]; !ok {
		p.order = append(p.order, contributor)
	}
	p.parts[contributor] = fragment
}

// Remove drops a contribution. Removing an absent contributor is a no-op.
func (p *FulltextParts) Remove(contributor string) {
	if _, ok := p.parts[contributor]; !ok {
		return
	}
	delete(p.parts, contributor)
	for i, id := range p.order {
		if id == contributor {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// Has reports whether the contributor has an entry.
func (p *FulltextParts) Has(contributor string) bool {
	_, ok := p.parts[contributor]
	return ok
}

// Len returns the number of contributors.
func (p *FulltextParts) Len() int { return len(p.order) }

// Contributors returns contributor ids in insertion order.
func (p *FulltextParts) Contributors() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Fragment returns the stored contribution for a node.
func (p *FulltextParts) Fragment(contributor string) (Fragment, bool) {
	f, ok := p.parts[contributor]
	return f, ok
}

// Fulltext derives the aggregate field map from scratch: per field, each
// contributor's trimmed text joined with single spaces, in insertion order.
func (p *FulltextParts) Fulltext() map[string]string {
	out := make(map[string]string)
	for _, contributor := range p.order {
		// fragment fields walk in sorted order to keep the derivation
		// deterministic within one contributor
		for _, field := range sortedFields(p.parts[contributor]) {
			text := strings.TrimSpace(p.parts[contributor][field])
			if text == "" {
				continue
			}
			if existing, ok := out[field]; ok {
				out[field] = existing + " " + text
			} else {
				out[field] = text
			}
		}
	}
	return out
}

func sortedFields(f Fragment) []string {
	fields := make([]string, 0, len(f))
	for field := range f {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// ToMap serializes the parts for embedding in a document source.
func (p *FulltextParts) ToMap() map[string]any {
	out := make(map[string]any, len(p.order))
	for _, contributor := range p.order {
		fragment := p.parts[contributor]
		entry := make(map[string]any, len(fragment))
		for field, text := range fragment {
			entry[field] = text
		}
		out[contributor] = entry
	}
	return out
}
