package db

import (
	"context"
	"time"
)

// Store is the search-store facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	BulkIndexer
	DocumentCleaner
	AliasManager
	IndexManager
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BulkIndexer submits a pre-serialized newline-delimited operation stream
// against one index and returns one result per submitted operation. A
// returned error means the request as a whole failed; per-operation failures
// surface only in the results.
type BulkIndexer interface {
	Bulk(ctx context.Context, index string, body []byte) ([]BulkResult, error)
}

// BulkResult is the store's verdict on one submitted bulk operation.
type BulkResult struct {
	Kind   string
	ID     string
	Status int
	Error  string
}

// OK reports whether the store accepted the operation. Deleting an absent
// document reports a 404 status without an error and still counts as OK.
func (r BulkResult) OK() bool { return r.Error == "" }

// DocumentCleaner removes documents left behind by node-type changes: same
// derived identifier, different stored type.
type DocumentCleaner interface {
	DeleteOtherTypeDocuments(ctx context.Context, index, docID, docType string) (int64, error)
}

// AliasAction is one step of an atomic alias transaction.
type AliasAction struct {
	Add   bool
	Alias string
	Index string
}

// AliasManager manages logical alias bindings.
type AliasManager interface {
	// AliasIndices returns the physical indices currently bound to the
	// alias. A missing alias is not an error and yields an empty result.
	AliasIndices(ctx context.Context, alias string) ([]string, error)
	// UpdateAliases applies all actions as one atomic transaction.
	UpdateAliases(ctx context.Context, actions []AliasAction) error
}

// IndexManager manages physical indices.
type IndexManager interface {
	IndexExists(ctx context.Context, name string) (bool, error)
	CreateIndex(ctx context.Context, name string) error
	DeleteIndex(ctx context.Context, name string) error
	// DeleteIndices removes several indices in one batched request.
	DeleteIndices(ctx context.Context, names []string) error
	ListIndices(ctx context.Context) ([]string, error)
}

// Script is a server-side partial-update program plus its parameters, sent
// with an upsert fallback document.
type Script struct {
	Source string         `json:"source"`
	Params map[string]any `json:"params,omitempty"`
}
