// Package treedex indexes hierarchical, multi-variant CMS content trees
// into an Elasticsearch-compatible search store: one document per workspace
// and dimension variant, fulltext rolled up into root documents, alias-based
// atomic index rotation.
package treedex

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/treedex/treedex/internal/config"
	"github.com/treedex/treedex/internal/db"
	"github.com/treedex/treedex/internal/db/elastic"
	"github.com/treedex/treedex/internal/db/memory"
	"github.com/treedex/treedex/internal/domain"
	"github.com/treedex/treedex/internal/repository/batch"
	"github.com/treedex/treedex/internal/repository/extract"
	"github.com/treedex/treedex/internal/repository/indices"
	"github.com/treedex/treedex/internal/repository/nodestore"
	fulltextuc "github.com/treedex/treedex/internal/usecase/fulltext"
	indexeruc "github.com/treedex/treedex/internal/usecase/indexer"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the treedex SDK entry point.
type Client struct {
	store      db.Store
	mirror     *nodestore.Store
	indexName  string
	indexerSvc *indexeruc.Service
	indicesMgr *indices.Manager
	logger     *zap.Logger
}

// New creates a treedex client and connects to the search store.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{indexName: "treedex"}
	for _, o := range opts {
		o(cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}
	if !cfg.memoryStore {
		ctx := context.Background()
		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("treedex: search store not ready: %w", err)
		}
	}

	client, err := wireClient(store, cfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return client, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch {
	case cfg.memoryStore:
		return memory.NewStore(), nil
	case len(cfg.elasticAddrs) > 0:
		s, err := elastic.NewStore(elastic.Config{
			Addrs:    cfg.elasticAddrs,
			Username: cfg.elasticUsername,
			Password: cfg.elasticPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("treedex: create elastic store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("treedex: search store required (use WithElastic or WithMemoryStore): %w", domain.ErrMissingCollaborator)
	}
}

func wireClient(store db.Store, cfg *clientConfig, logger *zap.Logger) (*Client, error) {
	var (
		nodes  indexeruc.NodeStore
		walker fulltextuc.NodeWalker
		dims   indexeruc.DimensionSource
		mirror *nodestore.Store
	)
	switch {
	case cfg.redisMirror != nil:
		m, err := nodestore.New(*cfg.redisMirror)
		if err != nil {
			return nil, fmt.Errorf("treedex: create redis mirror: %w", err)
		}
		mirror, nodes, walker = m, m, m
		dims = m
	case cfg.nodes != nil:
		adapter := &nodeSourceAdapter{inner: cfg.nodes}
		nodes, walker = adapter, adapter
	default:
		return nil, fmt.Errorf("treedex: node source required (use WithNodeSource or WithRedisMirror): %w", domain.ErrMissingCollaborator)
	}
	if cfg.dims != nil {
		dims = &dimensionSourceAdapter{inner: cfg.dims}
	}
	if dims == nil {
		dims = staticDimensions{}
	}

	// One rule set serves as registry and default extractor; without
	// configuration every type is indexed and nothing contributes text.
	defaultRules := extract.NewRules(config.TypesConfig{})
	var rules TypeRules = defaultRules
	if cfg.rules != nil {
		rules = cfg.rules
	}
	var extractor indexeruc.Extractor = defaultRules
	if cfg.extractor != nil {
		extractor = &extractorAdapter{inner: cfg.extractor}
	}

	aggregator := fulltextuc.New(walker, rules, logger)
	svc := indexeruc.New(nodes, dims, extractor, extract.Mapper{}, rules, aggregator, store, logger)
	if cfg.liveOnly {
		svc.WithLiveWorkspaceOnly(true)
	}

	return &Client{
		store:      store,
		mirror:     mirror,
		indexName:  cfg.indexName,
		indexerSvc: svc,
		indicesMgr: indices.New(store, logger),
		logger:     logger,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.mirror != nil {
		c.mirror.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks search store connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// NewSession opens an operation batch against the client's index alias.
// Queued operations go out on Flush as one bulk request.
func (c *Client) NewSession() *Session {
	return &Session{inner: batch.NewSession(c.store, c.indexName, c.logger)}
}

// NewSessionFor opens an operation batch against a specific physical index,
// typically a freshly created generation during a rebuild.
func (c *Client) NewSessionFor(index string) *Session {
	return &Session{inner: batch.NewSession(c.store, index, c.logger)}
}

// Index expands the node across its dimension variants and queues one
// document per resolvable variant. targetWorkspace, when non-empty, stores
// the documents under that workspace's identity instead of the node's own.
func (c *Client) Index(ctx context.Context, sess *Session, node *Node, targetWorkspace string) error {
	return c.indexerSvc.IndexNode(ctx, sess.inner, node.toDomain(), targetWorkspace)
}

// Remove queues deletes for every dimension variant of the node and purges
// its fulltext contributions.
func (c *Client) Remove(ctx context.Context, sess *Session, node *Node, targetWorkspace string) error {
	return c.indexerSvc.RemoveNode(ctx, sess.inner, node.toDomain(), targetWorkspace)
}

// Indices returns the index lifecycle service.
func (c *Client) Indices() *IndicesService {
	return &IndicesService{mgr: c.indicesMgr, alias: c.indexName}
}

// IndicesService manages physical index generations behind the alias.
type IndicesService struct {
	mgr   *indices.Manager
	alias string
}

// CreateGeneration creates the physical index <alias>-<postfix>.
func (s *IndicesService) CreateGeneration(ctx context.Context, postfix string) (string, error) {
	return s.mgr.CreateGeneration(ctx, s.alias, postfix)
}

// UpdateAlias atomically repoints the alias at <alias>-<postfix>.
func (s *IndicesService) UpdateAlias(ctx context.Context, postfix string) error {
	return s.mgr.UpdateAlias(ctx, s.alias, postfix)
}

// RemoveStaleIndices deletes generations no longer bound to the alias and
// returns their names.
func (s *IndicesService) RemoveStaleIndices(ctx context.Context) ([]string, error) {
	return s.mgr.RemoveStaleIndices(ctx, s.alias)
}

// --- adapters between the public surface and internal services ---

func (n *Node) toDomain() *domain.Node {
	return &domain.Node{
		Identifier: n.Identifier,
		Path:       n.Path,
		Workspace:  n.Workspace,
		Dimensions: domain.DimensionCombination(n.Dimensions),
		Type:       n.Type,
		ParentID:   n.ParentID,
		Removed:    n.Removed,
		Hidden:     n.Hidden,
		Properties: n.Properties,
	}
}

func fromDomainNode(n *domain.Node) *Node {
	return &Node{
		Identifier: n.Identifier,
		Path:       n.Path,
		Workspace:  n.Workspace,
		Dimensions: n.Dimensions,
		Type:       n.Type,
		ParentID:   n.ParentID,
		Removed:    n.Removed,
		Hidden:     n.Hidden,
		Properties: n.Properties,
	}
}

// nodeSourceAdapter wraps the public NodeSource for the internal services.
type nodeSourceAdapter struct {
	inner NodeSource
}

func (a *nodeSourceAdapter) Resolve(ctx context.Context, identifier, workspace string, dims domain.DimensionCombination) (*domain.Node, error) {
	node, err := a.inner.Resolve(ctx, identifier, workspace, dims)
	if err != nil {
		return nil, err
	}
	return node.toDomain(), nil
}

func (a *nodeSourceAdapter) Parent(ctx context.Context, node *domain.Node) (*domain.Node, error) {
	parent, err := a.inner.Parent(ctx, fromDomainNode(node))
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, domain.ErrNodeNotFound
	}
	return parent.toDomain(), nil
}

type dimensionSourceAdapter struct {
	inner DimensionSource
}

func (a *dimensionSourceAdapter) Combinations(ctx context.Context) ([]domain.DimensionCombination, error) {
	combos, err := a.inner.Combinations(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.DimensionCombination, 0, len(combos))
	for _, c := range combos {
		out = append(out, domain.DimensionCombination(c))
	}
	return out, nil
}

type staticDimensions struct{}

func (staticDimensions) Combinations(context.Context) ([]domain.DimensionCombination, error) {
	return nil, nil
}

type extractorAdapter struct {
	inner Extractor
}

func (a *extractorAdapter) Extract(node *domain.Node, diag func(property string)) (map[string]any, domain.Fragment, error) {
	fields, fragment, err := a.inner.Extract(fromDomainNode(node), diag)
	if err != nil {
		return nil, nil, err
	}
	return fields, domain.Fragment(fragment), nil
}
