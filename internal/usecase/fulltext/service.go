// Package fulltext rolls per-node text fragments up into the owning
// fulltext root's aggregate document.
package fulltext

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/treedex/treedex/internal/db"
	"github.com/treedex/treedex/internal/domain"
	"github.com/treedex/treedex/internal/repository/batch"
)

// maxAncestorDepth bounds the parent walk; deeper chains indicate a cycle in
// externally-owned parent references.
const maxAncestorDepth = 128

// Service queues fulltext merge operations against root documents.
type Service struct {
	walker   NodeWalker
	registry TypeRegistry
	logger   *zap.Logger
}

// New creates a fulltext aggregation service.
func New(walker NodeWalker, registry TypeRegistry, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{walker: walker, registry: registry, logger: logger}
}

// Aggregate walks from the node to its owning fulltext root and queues one
// merge operation carrying the node's fragment. A missing or removed root
// aborts silently: the contribution has nowhere to live, which is a content
// modeling situation, not an indexing failure.
func (s *Service) Aggregate(
	ctx context.Context,
	sess *batch.Session,
	node *domain.Node,
	fragment domain.Fragment,
	targetWorkspace string,
) error {
	root, err := s.findRoot(ctx, node)
	if err != nil {
		return err
	}
	if root == nil {
		s.logger.Debug("No fulltext root in ancestry, skipping aggregation",
			zap.String("node", node.Identifier),
			zap.String("path", node.Path),
		)
		return nil
	}
	if root.Removed {
		s.logger.Debug("Fulltext root is removed, skipping aggregation",
			zap.String("node", node.Identifier),
			zap.String("root", root.Identifier),
		)
		return nil
	}

	rootID := domain.DocumentID(root.ContextPath().WithWorkspace(targetWorkspace))
	remove := node.Removed || node.Hidden || fragment.Empty()

	fragmentMap := make(map[string]any, len(fragment))
	for field, text := range fragment {
		fragmentMap[field] = text
	}

	upsert := map[string]any{
		domain.FieldFulltextParts: map[string]any{},
		domain.FieldFulltext:      map[string]any{},
	}
	if !remove {
		trimmed := fragment.Trimmed()
		seed := make(map[string]any, len(trimmed))
		for field, text := range trimmed {
			seed[field] = text
		}
		upsert = map[string]any{
			domain.FieldFulltextParts: map[string]any{node.Identifier: fragmentMap},
			domain.FieldFulltext:      seed,
		}
	}

	sess.Queue(batch.Operation{
		Kind: batch.OpUpdate,
		ID:   rootID,
		Script: &db.Script{
			Source: db.ScriptSourceFulltextMerge,
			Params: map[string]any{
				"contributor": node.Identifier,
				"fragment":    fragmentMap,
				"remove":      remove,
			},
		},
		Upsert: upsert,
	})
	return nil
}

// findRoot walks the parent chain iteratively. Returns nil without error
// when the chain holds no fulltext root.
func (s *Service) findRoot(ctx context.Context, node *domain.Node) (*domain.Node, error) {
	current := node
	for depth := 0; depth < maxAncestorDepth; depth++ {
		if s.registry.FulltextRoot(current.Type) {
			return current, nil
		}
		parent, err := s.walker.Parent(ctx, current)
		if err != nil {
			if errors.Is(err, domain.ErrNodeNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("resolve parent of %s: %w", current.Identifier, err)
		}
		if parent == nil {
			return nil, nil
		}
		current = parent
	}
	s.logger.Warn("Ancestor walk exceeded depth bound",
		zap.String("node", node.Identifier),
		zap.Int("depth", maxAncestorDepth),
	)
	return nil, nil
}
