package treedex

import (
	"context"

	"github.com/treedex/treedex/internal/domain"
)

// LiveWorkspace is the name of the publicly visible workspace.
const LiveWorkspace = domain.LiveWorkspace

// Node is one variant of a content node as the caller's CMS sees it.
type Node struct {
	Identifier string
	Path       string
	Workspace  string
	Dimensions map[string][]string
	Type       string
	ParentID   string
	Removed    bool
	Hidden     bool
	Properties map[string]any
}

// NodeSource resolves node variants from the caller's content tree.
type NodeSource interface {
	// Resolve returns the node's variant in the given workspace and dimension
	// combination, hidden variants included, or ErrNodeNotFound.
	Resolve(ctx context.Context, identifier, workspace string, dims map[string][]string) (*Node, error)
	// Parent returns the node's parent in the same scope, or ErrNodeNotFound
	// when the chain is exhausted.
	Parent(ctx context.Context, node *Node) (*Node, error)
}

// DimensionSource enumerates the dimension combinations to index.
type DimensionSource interface {
	Combinations(ctx context.Context) ([]map[string][]string, error)
}

// TypeRules answers node-type capability lookups.
type TypeRules interface {
	FulltextEnabled(nodeType string) bool
	FulltextRoot(nodeType string) bool
}

// Extractor turns a node into store fields and a fulltext fragment. diag
// fires once per property the extraction has no rule for.
type Extractor interface {
	Extract(node *Node, diag func(property string)) (fields map[string]any, fragment map[string]string, err error)
}

// ErrNodeNotFound signals that a node has no variant in the requested scope.
// NodeSource implementations must return it (or wrap it) for missing variants.
var ErrNodeNotFound = domain.ErrNodeNotFound

// ErrMissingCollaborator signals incomplete client wiring.
var ErrMissingCollaborator = domain.ErrMissingCollaborator

// DocumentID computes the search-store document identifier for a context
// path such as "/sites/about@user-alice;language=en,de&country=us".
func DocumentID(contextPath string) (string, error) {
	return domain.DocumentIDForPath(contextPath, "")
}

// DocumentIDInWorkspace computes the document identifier the same context
// path has in another workspace.
func DocumentIDInWorkspace(contextPath, workspace string) (string, error) {
	return domain.DocumentIDForPath(contextPath, workspace)
}
