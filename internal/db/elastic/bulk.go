package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/treedex/treedex/internal/db"
)

// bulkResponse mirrors the store's bulk endpoint response: one item per
// submitted operation, in submission order.
type bulkResponse struct {
	Errors bool                         `json:"errors"`
	Items  []map[string]bulkItemVerdict `json:"items"`
}

type bulkItemVerdict struct {
	ID     string          `json:"_id"`
	Status int             `json:"status"`
	Error  json.RawMessage `json:"error"`
}

// Bulk submits a newline-delimited operation stream against the index.
func (s *Store) Bulk(ctx context.Context, index string, body []byte) ([]db.BulkResult, error) {
	path := "/" + url.PathEscape(index) + "/_bulk"
	resp, err := s.do(ctx, http.MethodPost, path, body, "application/x-ndjson")
	if err != nil {
		return nil, &db.Error{Op: db.OpBulk, Err: err}
	}
	defer drain(resp)

	if resp.StatusCode >= 300 {
		return nil, &db.Error{Op: db.OpBulk, Err: statusError(resp)}
	}

	var parsed bulkResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &db.Error{Op: db.OpBulk, Err: fmt.Errorf("decode response: %w", err)}
	}

	results := make([]db.BulkResult, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		results = append(results, itemResult(item))
	}
	return results, nil
}

// itemResult flattens the single-key {action: verdict} item shape. A shape
// the client cannot make sense of becomes a failed result, never an error.
func itemResult(item map[string]bulkItemVerdict) db.BulkResult {
	for kind, verdict := range item {
		r := db.BulkResult{Kind: kind, ID: verdict.ID, Status: verdict.Status}
		if len(verdict.Error) > 0 {
			r.Error = string(verdict.Error)
		}
		return r
	}
	return db.BulkResult{Error: "unparseable bulk item"}
}
