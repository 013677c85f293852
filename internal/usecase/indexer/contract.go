package indexer

import (
	"context"

	"github.com/treedex/treedex/internal/domain"
	"github.com/treedex/treedex/internal/repository/batch"
)

// NodeStore provides read access to the externally-owned content tree.
type NodeStore interface {
	// Resolve returns the node's variant within the given workspace and
	// dimension combination, hidden nodes included. Returns
	// domain.ErrNodeNotFound when the node has no variant in that scope.
	Resolve(ctx context.Context, identifier, workspace string, dims domain.DimensionCombination) (*domain.Node, error)
	// Parent returns the node's parent in the same scope, or
	// domain.ErrNodeNotFound when the chain is exhausted.
	Parent(ctx context.Context, node *domain.Node) (*domain.Node, error)
}

// DimensionSource enumerates the dimension combinations to index.
type DimensionSource interface {
	Combinations(ctx context.Context) ([]domain.DimensionCombination, error)
}

// Extractor turns a resolved node into store fields and a fulltext fragment.
// diag fires once per property the extraction has no rule for.
type Extractor interface {
	Extract(node *domain.Node, diag func(property string)) (map[string]any, domain.Fragment, error)
}

// TypeMapper maps node type names to store-safe type identifiers.
type TypeMapper interface {
	StoreType(nodeType string) string
}

// TypeRegistry answers node-type capability lookups.
type TypeRegistry interface {
	FulltextEnabled(nodeType string) bool
	FulltextRoot(nodeType string) bool
}

// Aggregator queues the fulltext merge for a node's fragment.
type Aggregator interface {
	Aggregate(ctx context.Context, sess *batch.Session, node *domain.Node, fragment domain.Fragment, targetWorkspace string) error
}
