package domain

import (
	"crypto/sha1" //nolint:gosec // identifier derivation, not authentication
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// LiveWorkspace is the distinguished workspace the restriction policy keys on.
const LiveWorkspace = "live"

// Node is one resolved variant of a content node. Instances are transient and
// rebuilt per indexing call; the content tree itself is externally owned.
type Node struct {
	Identifier string
	Path       string
	Workspace  string
	Dimensions DimensionCombination
	Type       string
	ParentID   string
	Removed    bool
	Hidden     bool
	Properties map[string]any
}

// ContextPath returns the node's fully qualified context path.
func (n *Node) ContextPath() ContextPath {
	return ContextPath{NodePath: n.Path, Workspace: n.Workspace, Dimensions: n.Dimensions}
}

// DimensionCombination maps a dimension axis (e.g. "language") to its ordered
// value chain. A nil or empty combination is the default variant.
type DimensionCombination map[string][]string

// Selector serializes the combination canonically: axes sorted, values kept
// in chain order, e.g. "country=us&language=en_US,en".
func (c DimensionCombination) Selector() string {
	if len(c) == 0 {
		return ""
	}
	axes := make([]string, 0, len(c))
	for axis := range c {
		axes = append(axes, axis)
	}
	sort.Strings(axes)

	parts := make([]string, 0, len(axes))
	for _, axis := range axes {
		parts = append(parts, axis+"="+strings.Join(c[axis], ","))
	}
	return strings.Join(parts, "&")
}

// Hash returns a stable digest of the canonical selector, used to tag
// documents so one node yields one document per combination.
func (c DimensionCombination) Hash() string {
	sum := sha1.Sum([]byte(c.Selector())) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// ContextPath is the structured form of "<node path>@<workspace>[;<selector>]".
// Workspace substitution happens on this structure, never via string
// replacement on the serialized form.
type ContextPath struct {
	NodePath   string
	Workspace  string
	Dimensions DimensionCombination
}

// ParseContextPath parses a serialized context path.
func ParseContextPath(s string) (ContextPath, error) {
	if s == "" {
		return ContextPath{}, fmt.Errorf("empty context path: %w", ErrInvalidContextPath)
	}

	nodePath, rest, hasContext := strings.Cut(s, "@")
	if !strings.HasPrefix(nodePath, "/") {
		return ContextPath{}, fmt.Errorf("context path %q must be absolute: %w", s, ErrInvalidContextPath)
	}

	p := ContextPath{NodePath: nodePath, Workspace: LiveWorkspace}
	if !hasContext {
		return p, nil
	}

	workspace, selector, hasSelector := strings.Cut(rest, ";")
	if workspace == "" {
		return ContextPath{}, fmt.Errorf("context path %q has an empty workspace: %w", s, ErrInvalidContextPath)
	}
	p.Workspace = workspace

	if hasSelector && selector != "" {
		dims, err := parseSelector(selector)
		if err != nil {
			return ContextPath{}, fmt.Errorf("context path %q: %w", s, err)
		}
		p.Dimensions = dims
	}
	return p, nil
}

func parseSelector(selector string) (DimensionCombination, error) {
	dims := DimensionCombination{}
	for _, part := range strings.Split(selector, "&") {
		axis, values, ok := strings.Cut(part, "=")
		if !ok || axis == "" || values == "" {
			return nil, fmt.Errorf("malformed dimension selector %q: %w", part, ErrInvalidContextPath)
		}
		dims[axis] = strings.Split(values, ",")
	}
	return dims, nil
}

// String serializes the context path canonically.
func (p ContextPath) String() string {
	var b strings.Builder
	b.WriteString(p.NodePath)
	b.WriteByte('@')
	b.WriteString(p.Workspace)
	if sel := p.Dimensions.Selector(); sel != "" {
		b.WriteByte(';')
		b.WriteString(sel)
	}
	return b.String()
}

// WithWorkspace returns a copy with the workspace segment replaced.
func (p ContextPath) WithWorkspace(workspace string) ContextPath {
	if workspace == "" {
		return p
	}
	p.Workspace = workspace
	return p
}
