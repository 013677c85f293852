// Package indexer fans node mutations out across workspace and dimension
// variants and turns each resolved variant into store operations.
package indexer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/treedex/treedex/internal/db"
	"github.com/treedex/treedex/internal/domain"
	"github.com/treedex/treedex/internal/metrics"
	"github.com/treedex/treedex/internal/repository/batch"
)

// Service builds store documents for node mutations. Variant resolution and
// document construction stay separate units: resolution decides which
// variants exist, construction decides what each one looks like in the store.
type Service struct {
	nodes      NodeStore
	dims       DimensionSource
	extractor  Extractor
	typeMapper TypeMapper
	registry   TypeRegistry
	aggregator Aggregator
	cleaner    db.DocumentCleaner
	liveOnly   bool
	logger     *zap.Logger
}

// New creates an indexing service.
func New(
	nodes NodeStore,
	dims DimensionSource,
	extractor Extractor,
	typeMapper TypeMapper,
	registry TypeRegistry,
	aggregator Aggregator,
	cleaner db.DocumentCleaner,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		nodes:      nodes,
		dims:       dims,
		extractor:  extractor,
		typeMapper: typeMapper,
		registry:   registry,
		aggregator: aggregator,
		cleaner:    cleaner,
		logger:     logger,
	}
}

// WithLiveWorkspaceOnly restricts indexing to the live workspace.
func (s *Service) WithLiveWorkspaceOnly(enabled bool) *Service {
	s.liveOnly = enabled
	return s
}

// IndexNode expands a node mutation across all dimension combinations and
// queues one document per resolvable variant into the session. The caller
// flushes the session.
func (s *Service) IndexNode(ctx context.Context, sess *batch.Session, node *domain.Node, targetWorkspace string) error {
	workspace := effectiveWorkspace(node, targetWorkspace)
	if s.skipWorkspace(workspace) {
		s.logger.Debug("Skipping node outside live workspace",
			zap.String("node", node.Identifier),
			zap.String("workspace", workspace),
		)
		metrics.NodesIndexedTotal.WithLabelValues("skip").Inc()
		return nil
	}

	combinations, err := s.combinations(ctx)
	if err != nil {
		return err
	}

	for _, combo := range combinations {
		variant, err := s.nodes.Resolve(ctx, node.Identifier, workspace, combo)
		switch {
		case errors.Is(err, domain.ErrNodeNotFound):
			if node.Removed {
				if err := s.removeVariant(ctx, sess, node, workspace, combo, targetWorkspace); err != nil {
					return err
				}
				continue
			}
			s.logger.Debug("Node has no variant in dimension combination",
				zap.String("node", node.Identifier),
				zap.String("workspace", workspace),
				zap.String("dimensions", combo.Selector()),
			)
			metrics.NodesIndexedTotal.WithLabelValues("skip").Inc()
		case err != nil:
			return fmt.Errorf("resolve %s in %s: %w", node.Identifier, workspace, err)
		default:
			if err := s.indexVariant(ctx, sess, variant, targetWorkspace); err != nil {
				return err
			}
		}
	}
	return nil
}

// RemoveNode queues deletes for every dimension variant of the node and
// purges its fulltext contributions.
func (s *Service) RemoveNode(ctx context.Context, sess *batch.Session, node *domain.Node, targetWorkspace string) error {
	workspace := effectiveWorkspace(node, targetWorkspace)
	if s.skipWorkspace(workspace) {
		s.logger.Debug("Skipping removal outside live workspace",
			zap.String("node", node.Identifier),
			zap.String("workspace", workspace),
		)
		metrics.NodesIndexedTotal.WithLabelValues("skip").Inc()
		return nil
	}

	combinations, err := s.combinations(ctx)
	if err != nil {
		return err
	}
	for _, combo := range combinations {
		if err := s.removeVariant(ctx, sess, node, workspace, combo, targetWorkspace); err != nil {
			return err
		}
	}
	return nil
}

// indexVariant builds and queues the document for one resolved variant.
func (s *Service) indexVariant(ctx context.Context, sess *batch.Session, variant *domain.Node, targetWorkspace string) error {
	contextPath := variant.ContextPath().WithWorkspace(targetWorkspace)
	docID := domain.DocumentID(contextPath)
	storeType := s.typeMapper.StoreType(variant.Type)

	// A node-type change leaves a document with the same identifier but the
	// old type behind; clean it up synchronously unless a bulk rebuild
	// suppressed the per-document roundtrip.
	if !sess.InBulk() {
		if _, err := s.cleaner.DeleteOtherTypeDocuments(ctx, sess.Index(), docID, storeType); err != nil {
			return fmt.Errorf("cleanup stale types for %s: %w", docID, err)
		}
	}

	fields, fragment, err := s.extractor.Extract(variant, func(property string) {
		s.logger.Debug("No indexing rule for property",
			zap.String("node", variant.Identifier),
			zap.String("property", property),
		)
	})
	if err != nil {
		return fmt.Errorf("extract %s: %w", variant.Identifier, err)
	}

	if !s.registry.FulltextEnabled(variant.Type) {
		s.logger.Debug("Node type not fulltext enabled, not indexed",
			zap.String("node", variant.Identifier),
			zap.String("type", variant.Type),
		)
		metrics.NodesIndexedTotal.WithLabelValues("skip").Inc()
		return nil
	}

	payload := s.assemblePayload(variant, fields, storeType, targetWorkspace)

	if s.registry.FulltextRoot(variant.Type) {
		// Re-indexing a root must not wipe the aggregate its descendants
		// have built up on the stored document.
		sess.Queue(batch.Operation{
			Kind:    batch.OpUpdate,
			ID:      docID,
			DocType: storeType,
			Script: &db.Script{
				Source: db.ScriptSourceNodeMerge,
				Params: map[string]any{"document": payload},
			},
			Upsert: payload,
		})
		metrics.NodesIndexedTotal.WithLabelValues("update").Inc()
	} else {
		sess.Queue(batch.Operation{
			Kind:    batch.OpIndex,
			ID:      docID,
			DocType: storeType,
			Payload: payload,
		})
		metrics.NodesIndexedTotal.WithLabelValues("index").Inc()
	}

	return s.aggregator.Aggregate(ctx, sess, variant, fragment, targetWorkspace)
}

// removeVariant queues the delete for one variant and purges its fulltext
// contribution from the owning root.
func (s *Service) removeVariant(
	ctx context.Context,
	sess *batch.Session,
	node *domain.Node,
	workspace string,
	combo domain.DimensionCombination,
	targetWorkspace string,
) error {
	// Mutation events may carry only identifier and path. Re-resolve the
	// variant so the removal aggregate still knows its type and parent and
	// can walk to the owning fulltext root while the snapshot exists.
	snapshot := node
	variant, err := s.nodes.Resolve(ctx, node.Identifier, workspace, combo)
	switch {
	case errors.Is(err, domain.ErrNodeNotFound):
	case err != nil:
		return fmt.Errorf("resolve %s in %s: %w", node.Identifier, workspace, err)
	default:
		snapshot = variant
	}

	removed := *snapshot
	removed.Workspace = workspace
	removed.Dimensions = combo
	removed.Removed = true
	if removed.Path == "" {
		removed.Path = node.Path
	}

	contextPath := domain.ContextPath{NodePath: removed.Path, Workspace: workspace, Dimensions: combo}
	docID := domain.DocumentID(contextPath)

	sess.Queue(batch.Operation{
		Kind:    batch.OpDelete,
		ID:      docID,
		DocType: s.typeMapper.StoreType(removed.Type),
	})
	metrics.NodesIndexedTotal.WithLabelValues("delete").Inc()

	return s.aggregator.Aggregate(ctx, sess, &removed, domain.Fragment{}, targetWorkspace)
}

func (s *Service) assemblePayload(
	variant *domain.Node,
	fields map[string]any,
	storeType, targetWorkspace string,
) map[string]any {
	payload := make(map[string]any, len(fields)+6)
	for k, v := range fields {
		payload[k] = v
	}
	payload[domain.FieldIdentifier] = variant.Identifier
	payload[domain.FieldPath] = variant.Path
	payload[domain.FieldType] = storeType
	// The workspace tag marks documents stored under a foreign workspace's
	// identity; untagged documents live in their node's own workspace.
	if targetWorkspace != "" {
		payload[domain.FieldWorkspace] = targetWorkspace
	}
	payload[domain.FieldDimensions] = variant.Dimensions
	payload[domain.FieldDimensionHash] = variant.Dimensions.Hash()
	return payload
}

func (s *Service) combinations(ctx context.Context) ([]domain.DimensionCombination, error) {
	combinations, err := s.dims.Combinations(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate dimension combinations: %w", err)
	}
	if len(combinations) == 0 {
		combinations = []domain.DimensionCombination{nil}
	}
	return combinations, nil
}

func (s *Service) skipWorkspace(workspace string) bool {
	return s.liveOnly && workspace != domain.LiveWorkspace
}

func effectiveWorkspace(node *domain.Node, targetWorkspace string) string {
	if targetWorkspace != "" {
		return targetWorkspace
	}
	return node.Workspace
}
