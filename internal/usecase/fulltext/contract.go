package fulltext

import (
	"context"

	"github.com/treedex/treedex/internal/domain"
)

// NodeWalker resolves parent nodes within the contributing node's
// workspace/dimension scope.
type NodeWalker interface {
	// Parent returns the node's parent variant, or domain.ErrNodeNotFound
	// when the chain is exhausted.
	Parent(ctx context.Context, node *domain.Node) (*domain.Node, error)
}

// TypeRegistry answers node-type capability lookups.
type TypeRegistry interface {
	FulltextRoot(nodeType string) bool
}
