package elastic

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/treedex/treedex/internal/db"
)

// IndexExists checks whether a physical index (or alias) exists.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	resp, err := s.do(ctx, http.MethodHead, "/"+url.PathEscape(name), nil, "")
	if err != nil {
		return false, &db.Error{Op: db.OpIndexExists, Err: err}
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 300:
		return false, &db.Error{Op: db.OpIndexExists, Err: statusError(resp)}
	default:
		return true, nil
	}
}

// CreateIndex creates an empty physical index.
func (s *Store) CreateIndex(ctx context.Context, name string) error {
	if _, err := s.doJSON(ctx, http.MethodPut, "/"+url.PathEscape(name), nil, nil); err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// DeleteIndex removes one physical index.
func (s *Store) DeleteIndex(ctx context.Context, name string) error {
	return s.deleteIndices(ctx, name)
}

// DeleteIndices removes several physical indices in one request.
func (s *Store) DeleteIndices(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	return s.deleteIndices(ctx, strings.Join(names, ","))
}

func (s *Store) deleteIndices(ctx context.Context, target string) error {
	status, err := s.doJSON(ctx, http.MethodDelete, "/"+url.PathEscape(target), nil, nil, http.StatusNotFound)
	if err != nil {
		return &db.Error{Op: db.OpDeleteIndex, Err: err}
	}
	if status == http.StatusNotFound {
		return &db.Error{Op: db.OpDeleteIndex, Err: fmt.Errorf("%s: %w", target, db.ErrIndexNotFound)}
	}
	return nil
}

// ListIndices returns the names of all physical indices.
func (s *Store) ListIndices(ctx context.Context) ([]string, error) {
	var rows []struct {
		Index string `json:"index"`
	}
	if _, err := s.doJSON(ctx, http.MethodGet, "/_cat/indices?format=json&h=index", nil, &rows); err != nil {
		return nil, &db.Error{Op: db.OpListIndices, Err: err}
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.Index)
	}
	return names, nil
}

// AliasIndices returns the physical indices bound to the alias. A missing
// alias yields an empty result, not an error.
func (s *Store) AliasIndices(ctx context.Context, alias string) ([]string, error) {
	var bindings map[string]struct {
		Aliases map[string]any `json:"aliases"`
	}
	status, err := s.doJSON(ctx, http.MethodGet, "/_alias/"+url.PathEscape(alias), nil, &bindings, http.StatusNotFound)
	if err != nil {
		return nil, &db.Error{Op: db.OpGetAlias, Err: err}
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	indices := make([]string, 0, len(bindings))
	for index := range bindings {
		indices = append(indices, index)
	}
	return indices, nil
}

// UpdateAliases applies all alias actions as one atomic transaction.
func (s *Store) UpdateAliases(ctx context.Context, actions []db.AliasAction) error {
	if len(actions) == 0 {
		return nil
	}
	steps := make([]map[string]any, 0, len(actions))
	for _, a := range actions {
		verb := "remove"
		if a.Add {
			verb = "add"
		}
		steps = append(steps, map[string]any{
			verb: map[string]any{"index": a.Index, "alias": a.Alias},
		})
	}
	payload := map[string]any{"actions": steps}
	if _, err := s.doJSON(ctx, http.MethodPost, "/_aliases", payload, nil); err != nil {
		return &db.Error{Op: db.OpUpdateAliases, Err: err}
	}
	return nil
}
