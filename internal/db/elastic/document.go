package elastic

import (
	"context"
	"net/http"
	"net/url"

	"github.com/treedex/treedex/internal/db"
	"github.com/treedex/treedex/internal/domain"
)

// DeleteOtherTypeDocuments removes documents carrying the given identifier
// but a stored type different from docType. Document identifiers are
// type-independent, so a node-type change leaves such an orphan behind.
func (s *Store) DeleteOtherTypeDocuments(ctx context.Context, index, docID, docType string) (int64, error) {
	query := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"ids": map[string]any{"values": []string{docID}}},
				},
				"must_not": []any{
					map[string]any{"term": map[string]any{domain.FieldType: docType}},
				},
			},
		},
	}

	var out struct {
		Deleted int64 `json:"deleted"`
	}
	path := "/" + url.PathEscape(index) + "/_delete_by_query"
	if _, err := s.doJSON(ctx, http.MethodPost, path, query, &out); err != nil {
		return 0, &db.Error{Op: db.OpDeleteByQuery, Err: err}
	}
	return out.Deleted, nil
}
