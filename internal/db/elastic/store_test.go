package elastic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/treedex/treedex/internal/db"
)

// newTestStore wires a Store against an httptest server running handler.
func newTestStore(t *testing.T, handler http.HandlerFunc) *Store {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	store, err := NewStore(Config{Addrs: []string{srv.URL}})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestNewStore_RequiresAddr(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error without addresses")
	}
}

func TestNewStore_DefaultsScheme(t *testing.T) {
	store, err := NewStore(Config{Addrs: []string{"localhost:9200"}})
	if err != nil {
		t.Fatal(err)
	}
	if store.base != "http://localhost:9200" {
		t.Errorf("unexpected base %q", store.base)
	}
}

func TestPing(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	})
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_ErrorCarriesOp(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})
	err := store.Ping(context.Background())
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpPing {
		t.Fatalf("expected op-tagged error, got %v", err)
	}
}

func TestBulk_SubmitsNDJSONAndParsesItems(t *testing.T) {
	var gotPath, gotContentType, gotBody string
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		_, _ = w.Write([]byte(`{
			"errors": true,
			"items": [
				{"index":  {"_id": "a", "status": 201}},
				{"delete": {"_id": "b", "status": 404}},
				{"update": {"_id": "c", "status": 400, "error": {"type": "mapper_parsing_exception"}}}
			]
		}`))
	})

	body := []byte("{\"index\":{\"_id\":\"a\"}}\n{\"title\":\"A\"}\n")
	results, err := store.Bulk(context.Background(), "content-1", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/content-1/_bulk" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotContentType != "application/x-ndjson" {
		t.Errorf("unexpected content type %q", gotContentType)
	}
	if gotBody != string(body) {
		t.Errorf("body must pass through untouched")
	}

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].OK() || results[0].Kind != "index" || results[0].ID != "a" || results[0].Status != 201 {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	// A 404 on delete has no error object and therefore counts as success.
	if !results[1].OK() || results[1].Status != 404 {
		t.Errorf("unexpected second result: %+v", results[1])
	}
	if results[2].OK() || !strings.Contains(results[2].Error, "mapper_parsing_exception") {
		t.Errorf("unexpected third result: %+v", results[2])
	}
}

func TestBulk_TransportErrorTagged(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "broken", http.StatusInternalServerError)
	})
	_, err := store.Bulk(context.Background(), "idx", []byte("{}\n"))
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpBulk {
		t.Fatalf("expected op-tagged error, got %v", err)
	}
}

func TestDeleteOtherTypeDocuments_QueryShape(t *testing.T) {
	var gotPath string
	var gotQuery map[string]any
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotQuery)
		_, _ = w.Write([]byte(`{"deleted": 1}`))
	})

	n, err := store.DeleteOtherTypeDocuments(context.Background(), "content-1", "doc-1", "site.text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 deletion, got %d", n)
	}
	if gotPath != "/content-1/_delete_by_query" {
		t.Errorf("unexpected path %q", gotPath)
	}

	want := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"ids": map[string]any{"values": []any{"doc-1"}}},
				},
				"must_not": []any{
					map[string]any{"term": map[string]any{"__type": "site.text"}},
				},
			},
		},
	}
	if !reflect.DeepEqual(gotQuery, want) {
		t.Errorf("unexpected query:\n got %v\nwant %v", gotQuery, want)
	}
}

func TestIndexExists(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		if r.URL.Path == "/present" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	exists, err := store.IndexExists(context.Background(), "present")
	if err != nil || !exists {
		t.Errorf("expected present index, got exists=%v err=%v", exists, err)
	}
	exists, err = store.IndexExists(context.Background(), "absent")
	if err != nil {
		t.Fatalf("404 is not an error: %v", err)
	}
	if exists {
		t.Error("absent index must report false")
	}
}

func TestDeleteIndices(t *testing.T) {
	var gotPath string
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})

	if err := store.DeleteIndices(context.Background(), []string{"a-1", "a-2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/a-1,a-2" {
		t.Errorf("batched deletes go out as one request, got %q", gotPath)
	}
}

func TestDeleteIndex_NotFound(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception"}}`))
	})
	err := store.DeleteIndex(context.Background(), "gone")
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestListIndices(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_cat/indices" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[{"index":"content-1"},{"index":"content-2"}]`))
	})

	names, err := store.ListIndices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"content-1", "content-2"}) {
		t.Errorf("unexpected names %v", names)
	}
}

func TestAliasIndices(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_alias/content" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"content-2":{"aliases":{"content":{}}},"content-3":{"aliases":{"content":{}}}}`))
	})

	indices, err := store.AliasIndices(context.Background(), "content")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sort.Strings(indices)
	if !reflect.DeepEqual(indices, []string{"content-2", "content-3"}) {
		t.Errorf("unexpected bindings %v", indices)
	}
}

func TestAliasIndices_MissingAliasIsEmpty(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"alias_missing_exception"},"status":404}`))
	})

	indices, err := store.AliasIndices(context.Background(), "content")
	if err != nil {
		t.Fatalf("a missing alias is not an error: %v", err)
	}
	if len(indices) != 0 {
		t.Errorf("expected no bindings, got %v", indices)
	}
}

func TestUpdateAliases_ActionShape(t *testing.T) {
	var gotPayload map[string]any
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/_aliases" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	})

	err := store.UpdateAliases(context.Background(), []db.AliasAction{
		{Alias: "content", Index: "content-1"},
		{Add: true, Alias: "content", Index: "content-2"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]any{
		"actions": []any{
			map[string]any{"remove": map[string]any{"index": "content-1", "alias": "content"}},
			map[string]any{"add": map[string]any{"index": "content-2", "alias": "content"}},
		},
	}
	if !reflect.DeepEqual(gotPayload, want) {
		t.Errorf("unexpected payload:\n got %v\nwant %v", gotPayload, want)
	}
}

func TestUpdateAliases_EmptyIsNoOp(t *testing.T) {
	called := false
	store := newTestStore(t, func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	if err := store.UpdateAliases(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("no actions, no request")
	}
}

func TestBasicAuthForwarded(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "elastic" || pass != "secret" {
			t.Errorf("missing or wrong basic auth")
		}
		w.WriteHeader(http.StatusOK)
	})
	store.username = "elastic"
	store.password = "secret"

	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
