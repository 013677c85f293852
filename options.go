package treedex

import (
	"go.uber.org/zap"

	"github.com/treedex/treedex/internal/repository/nodestore"
)

// Option configures the client.
type Option func(*clientConfig)

type clientConfig struct {
	elasticAddrs    []string
	elasticUsername string
	elasticPassword string
	memoryStore     bool

	redisMirror *nodestore.Config

	indexName string
	liveOnly  bool

	nodes     NodeSource
	dims      DimensionSource
	rules     TypeRules
	extractor Extractor

	logger *zap.Logger
}

// WithElastic connects to an Elasticsearch-compatible search store.
func WithElastic(addrs ...string) Option {
	return func(c *clientConfig) {
		c.elasticAddrs = addrs
	}
}

// WithElasticAuth sets basic-auth credentials for the search store.
func WithElasticAuth(username, password string) Option {
	return func(c *clientConfig) {
		c.elasticUsername = username
		c.elasticPassword = password
	}
}

// WithMemoryStore runs against an in-process store. Intended for tests and
// small single-process deployments.
func WithMemoryStore() Option {
	return func(c *clientConfig) {
		c.memoryStore = true
	}
}

// WithIndexName sets the public index alias. Physical indices are named
// <alias>-<postfix>.
func WithIndexName(name string) Option {
	return func(c *clientConfig) {
		c.indexName = name
	}
}

// WithLiveWorkspaceOnly restricts indexing to the live workspace; nodes in
// other workspaces are skipped silently.
func WithLiveWorkspaceOnly() Option {
	return func(c *clientConfig) {
		c.liveOnly = true
	}
}

// WithNodeSource supplies the content tree accessor.
func WithNodeSource(nodes NodeSource) Option {
	return func(c *clientConfig) {
		c.nodes = nodes
	}
}

// WithRedisMirror resolves nodes and dimension combinations from a Redis
// JSON mirror instead of a caller-supplied NodeSource.
func WithRedisMirror(cfg RedisMirrorConfig) Option {
	return func(c *clientConfig) {
		c.redisMirror = &nodestore.Config{
			Addrs:     cfg.Addrs,
			Username:  cfg.Username,
			Password:  cfg.Password,
			DB:        cfg.DB,
			KeyPrefix: cfg.KeyPrefix,
		}
	}
}

// RedisMirrorConfig holds connection parameters for a Redis node mirror.
type RedisMirrorConfig struct {
	Addrs     []string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
}

// WithDimensionSource supplies the dimension combinations to index.
// Without one, only the default (dimension-less) variant is indexed.
func WithDimensionSource(dims DimensionSource) Option {
	return func(c *clientConfig) {
		c.dims = dims
	}
}

// WithTypeRules supplies node-type capability lookups. Without rules, every
// type is fulltext enabled and no type owns an aggregate document.
func WithTypeRules(rules TypeRules) Option {
	return func(c *clientConfig) {
		c.rules = rules
	}
}

// WithExtractor replaces the default property extractor.
func WithExtractor(extractor Extractor) Option {
	return func(c *clientConfig) {
		c.extractor = extractor
	}
}

// WithLogger attaches a logger; by default the client is silent.
func WithLogger(logger *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}
