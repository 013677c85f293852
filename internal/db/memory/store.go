// Package memory implements db.Store in process. It accepts the same
// newline-delimited bulk wire format as the elastic driver and applies the
// well-known partial-update scripts natively, so indexing pipelines can be
// exercised hermetically and small deployments can run without a store.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/treedex/treedex/internal/db"
	"github.com/treedex/treedex/internal/domain"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Store is an in-memory db.Store.
type Store struct {
	mu      sync.Mutex
	indices map[string]*index
	aliases map[string]map[string]bool
}

type index struct {
	docs map[string]*document
}

type document struct {
	docType string
	source  map[string]any
	parts   *domain.FulltextParts
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		indices: make(map[string]*index),
		aliases: make(map[string]map[string]bool),
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// WaitForReady always succeeds.
func (s *Store) WaitForReady(context.Context, time.Duration) error { return nil }

// --- Bulk ---

// Bulk parses the operation stream and applies each operation, returning one
// result per operation in submission order.
func (s *Store) Bulk(_ context.Context, indexName string, body []byte) ([]db.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.ensureIndex(indexName)

	var results []db.BulkResult
	lines := splitLines(body)
	for i := 0; i < len(lines); i++ {
		kind, id, err := parseHeader(lines[i])
		if err != nil {
			results = append(results, db.BulkResult{Error: err.Error()})
			continue
		}

		var opBody []byte
		if kind != "delete" {
			i++
			if i >= len(lines) {
				results = append(results, db.BulkResult{Kind: kind, ID: id, Error: "missing operation body"})
				break
			}
			opBody = lines[i]
		}

		results = append(results, idx.apply(kind, id, opBody))
	}
	return results, nil
}

func splitLines(body []byte) [][]byte {
	raw := strings.Split(strings.TrimRight(string(body), "\n"), "\n")
	lines := make([][]byte, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, []byte(l))
		}
	}
	return lines
}

func parseHeader(line []byte) (kind, id string, err error) {
	var header map[string]struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(line, &header); err != nil {
		return "", "", fmt.Errorf("unparseable bulk header: %w", err)
	}
	for k, meta := range header {
		switch k {
		case "index", "update", "delete":
			return k, meta.ID, nil
		}
	}
	return "", "", fmt.Errorf("unknown bulk action in header %s", line)
}

func (idx *index) apply(kind, id string, body []byte) db.BulkResult {
	result := db.BulkResult{Kind: kind, ID: id}
	switch kind {
	case "index":
		var source map[string]any
		if err := json.Unmarshal(body, &source); err != nil {
			result.Error = "unparseable document: " + err.Error()
			return result
		}
		idx.docs[id] = newDocument(source)
		result.Status = 201
	case "delete":
		if _, ok := idx.docs[id]; !ok {
			result.Status = 404
			return result
		}
		delete(idx.docs, id)
		result.Status = 200
	case "update":
		var op struct {
			Script *db.Script     `json:"script"`
			Upsert map[string]any `json:"upsert"`
		}
		if err := json.Unmarshal(body, &op); err != nil {
			result.Error = "unparseable update: " + err.Error()
			return result
		}
		if err := idx.applyUpdate(id, op.Script, op.Upsert); err != nil {
			result.Error = err.Error()
			return result
		}
		result.Status = 200
	}
	return result
}

func (idx *index) applyUpdate(id string, script *db.Script, upsert map[string]any) error {
	doc, exists := idx.docs[id]
	if !exists {
		if upsert == nil {
			return fmt.Errorf("document %s missing and no upsert given", id)
		}
		idx.docs[id] = newDocument(upsert)
		return nil
	}
	if script == nil {
		return fmt.Errorf("update without script is not supported")
	}

	switch script.Source {
	case db.ScriptSourceNodeMerge:
		source, ok := script.Params["document"].(map[string]any)
		if !ok {
			return fmt.Errorf("node merge: missing document param")
		}
		parts := doc.parts
		*doc = *newDocument(source)
		doc.parts = parts
		return nil
	case db.ScriptSourceFulltextMerge:
		contributor, _ := script.Params["contributor"].(string)
		if contributor == "" {
			return fmt.Errorf("fulltext merge: missing contributor param")
		}
		if remove, _ := script.Params["remove"].(bool); remove {
			doc.parts.Remove(contributor)
			return nil
		}
		fragment, ok := script.Params["fragment"].(map[string]any)
		if !ok {
			return fmt.Errorf("fulltext merge: missing fragment param")
		}
		doc.parts.Set(contributor, toFragment(fragment))
		return nil
	default:
		return fmt.Errorf("unknown script")
	}
}

// newDocument builds a stored document, lifting aggregate fields out of the
// raw source into the ordered part map. JSON objects carry no order, so
// contributors parsed here sort lexicographically; in practice upsert seeds
// hold at most one contributor.
func newDocument(source map[string]any) *document {
	doc := &document{
		source: make(map[string]any, len(source)),
		parts:  domain.NewFulltextParts(),
	}
	for k, v := range source {
		if k == domain.FieldFulltext || k == domain.FieldFulltextParts {
			continue
		}
		doc.source[k] = v
	}
	doc.docType, _ = source[domain.FieldType].(string)

	if rawParts, ok := source[domain.FieldFulltextParts].(map[string]any); ok {
		contributors := make([]string, 0, len(rawParts))
		for contributor := range rawParts {
			contributors = append(contributors, contributor)
		}
		sort.Strings(contributors)
		for _, contributor := range contributors {
			if fragment, ok := rawParts[contributor].(map[string]any); ok {
				doc.parts.Set(contributor, toFragment(fragment))
			}
		}
	}
	return doc
}

func toFragment(raw map[string]any) domain.Fragment {
	fragment := make(domain.Fragment, len(raw))
	for field, value := range raw {
		if text, ok := value.(string); ok {
			fragment[field] = text
		}
	}
	return fragment
}

// --- Documents ---

// DeleteOtherTypeDocuments drops the document with this identifier when its
// stored type differs from docType.
func (s *Store) DeleteOtherTypeDocuments(_ context.Context, indexName, docID, docType string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indices[indexName]
	if !ok {
		return 0, nil
	}
	if doc, ok := idx.docs[docID]; ok && doc.docType != docType {
		delete(idx.docs, docID)
		return 1, nil
	}
	return 0, nil
}

// Document returns a materialized copy of a stored document's source,
// including the derived aggregate fields. Intended for tests and debugging.
func (s *Store) Document(indexName, docID string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indices[indexName]
	if !ok {
		return nil, false
	}
	doc, ok := idx.docs[docID]
	if !ok {
		return nil, false
	}

	out := make(map[string]any, len(doc.source)+2)
	for k, v := range doc.source {
		out[k] = v
	}
	if doc.parts.Len() > 0 {
		out[domain.FieldFulltextParts] = doc.parts.ToMap()
		fulltext := make(map[string]any)
		for field, text := range doc.parts.Fulltext() {
			fulltext[field] = text
		}
		out[domain.FieldFulltext] = fulltext
	}
	return out, true
}

// DocumentCount returns the number of documents in an index.
func (s *Store) DocumentCount(indexName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indices[indexName]; ok {
		return len(idx.docs)
	}
	return 0
}

// --- Indices and aliases ---

func (s *Store) ensureIndex(name string) *index {
	if idx, ok := s.indices[name]; ok {
		return idx
	}
	idx := &index{docs: make(map[string]*document)}
	s.indices[name] = idx
	return idx
}

// IndexExists checks for a physical index.
func (s *Store) IndexExists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.indices[name]
	return ok, nil
}

// CreateIndex creates an empty physical index.
func (s *Store) CreateIndex(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureIndex(name)
	return nil
}

// DeleteIndex removes one physical index.
func (s *Store) DeleteIndex(ctx context.Context, name string) error {
	return s.DeleteIndices(ctx, []string{name})
}

// DeleteIndices removes several physical indices.
func (s *Store) DeleteIndices(_ context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		if _, ok := s.indices[name]; !ok {
			return &db.Error{Op: db.OpDeleteIndex, Err: fmt.Errorf("%s: %w", name, db.ErrIndexNotFound)}
		}
	}
	for _, name := range names {
		delete(s.indices, name)
		for _, bound := range s.aliases {
			delete(bound, name)
		}
	}
	return nil
}

// ListIndices returns all physical index names, sorted.
func (s *Store) ListIndices(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.indices))
	for name := range s.indices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// AliasIndices returns the physical indices bound to the alias.
func (s *Store) AliasIndices(_ context.Context, alias string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bound, ok := s.aliases[alias]
	if !ok || len(bound) == 0 {
		return nil, nil
	}
	indices := make([]string, 0, len(bound))
	for name := range bound {
		indices = append(indices, name)
	}
	sort.Strings(indices)
	return indices, nil
}

// UpdateAliases applies all actions atomically: every action is validated
// before any binding changes.
func (s *Store) UpdateAliases(_ context.Context, actions []db.AliasAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range actions {
		if _, ok := s.indices[a.Index]; !ok {
			return &db.Error{Op: db.OpUpdateAliases, Err: fmt.Errorf("%s: %w", a.Index, db.ErrIndexNotFound)}
		}
	}
	for _, a := range actions {
		if a.Add {
			if s.aliases[a.Alias] == nil {
				s.aliases[a.Alias] = make(map[string]bool)
			}
			s.aliases[a.Alias][a.Index] = true
		} else if bound, ok := s.aliases[a.Alias]; ok {
			delete(bound, a.Index)
		}
	}
	return nil
}
