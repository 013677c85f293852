package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/treedex/treedex/internal/db"
)

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(raw)
}

func bulk(t *testing.T, s *Store, index string, lines ...string) []db.BulkResult {
	t.Helper()
	body := ""
	for _, l := range lines {
		body += l + "\n"
	}
	results, err := s.Bulk(context.Background(), index, []byte(body))
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	return results
}

func fulltextMerge(t *testing.T, contributor string, fragment map[string]any, remove bool) string {
	t.Helper()
	return mustJSON(t, map[string]any{
		"script": db.Script{
			Source: db.ScriptSourceFulltextMerge,
			Params: map[string]any{
				"contributor": contributor,
				"fragment":    fragment,
				"remove":      remove,
			},
		},
		"upsert": map[string]any{
			"__fulltextParts": map[string]any{contributor: fragment},
			"__fulltext":      fragment,
		},
	})
}

func TestBulk_IndexAndDelete(t *testing.T) {
	s := NewStore()

	results := bulk(t, s, "idx",
		`{"index":{"_id":"a"}}`,
		`{"title":"A","__type":"site.text"}`,
		`{"delete":{"_id":"missing"}}`,
	)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].OK() || results[0].Status != 201 {
		t.Errorf("index result: %+v", results[0])
	}
	// Deleting an absent document reports 404 but is not an error.
	if !results[1].OK() || results[1].Status != 404 {
		t.Errorf("delete-absent result: %+v", results[1])
	}

	doc, ok := s.Document("idx", "a")
	if !ok {
		t.Fatal("document must exist after index")
	}
	if doc["title"] != "A" {
		t.Errorf("unexpected document: %v", doc)
	}
}

func TestBulk_DeleteRemovesDocument(t *testing.T) {
	s := NewStore()
	bulk(t, s, "idx", `{"index":{"_id":"a"}}`, `{"title":"A"}`)
	results := bulk(t, s, "idx", `{"delete":{"_id":"a"}}`)

	if !results[0].OK() || results[0].Status != 200 {
		t.Errorf("delete result: %+v", results[0])
	}
	if s.DocumentCount("idx") != 0 {
		t.Error("document must be gone after delete")
	}
}

func TestBulk_UnparseableHeaderIsolated(t *testing.T) {
	s := NewStore()
	results := bulk(t, s, "idx",
		`{"garbage":{}}`,
		`{"index":{"_id":"a"}}`,
		`{"title":"A"}`,
	)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].OK() {
		t.Error("unknown action must fail its own operation")
	}
	if !results[1].OK() {
		t.Errorf("later operations must still apply: %+v", results[1])
	}
}

func TestBulk_NodeMergePreservesAggregate(t *testing.T) {
	s := NewStore()
	bulk(t, s, "idx",
		`{"index":{"_id":"root"}}`,
		`{"title":"Site","__type":"site.document","__fulltextParts":{"child":{"text":"Hello"}}}`,
	)

	update := mustJSON(t, map[string]any{
		"script": db.Script{
			Source: db.ScriptSourceNodeMerge,
			Params: map[string]any{
				"document": map[string]any{"title": "Renamed", "__type": "site.document"},
			},
		},
		"upsert": map[string]any{"title": "Renamed", "__type": "site.document"},
	})
	results := bulk(t, s, "idx", `{"update":{"_id":"root"}}`, update)
	if !results[0].OK() {
		t.Fatalf("update failed: %+v", results[0])
	}

	doc, _ := s.Document("idx", "root")
	if doc["title"] != "Renamed" {
		t.Errorf("own fields must be replaced: %v", doc)
	}
	parts, ok := doc["__fulltextParts"].(map[string]any)
	if !ok {
		t.Fatalf("aggregate must survive a node merge: %v", doc["__fulltextParts"])
	}
	child, _ := parts["child"].(map[string]any)
	if child["text"] != "Hello" {
		t.Errorf("aggregate must survive a node merge: %v", parts)
	}
}

func TestBulk_FulltextMergeUpsertsRoot(t *testing.T) {
	s := NewStore()
	results := bulk(t, s, "idx",
		`{"update":{"_id":"root"}}`,
		fulltextMerge(t, "child", map[string]any{"text": "Hello"}, false),
	)
	if !results[0].OK() {
		t.Fatalf("merge failed: %+v", results[0])
	}
	doc, ok := s.Document("idx", "root")
	if !ok {
		t.Fatal("merge into absent root must create it via upsert")
	}
	fulltext, _ := doc["__fulltext"].(map[string]any)
	if fulltext["text"] != "Hello" {
		t.Errorf("unexpected fulltext: %v", doc["__fulltext"])
	}
}

func TestBulk_FulltextPipelineOrderingAndRemoval(t *testing.T) {
	s := NewStore()

	bulk(t, s, "idx",
		`{"update":{"_id":"root"}}`,
		fulltextMerge(t, "a", map[string]any{"text": "Hello"}, false),
		`{"update":{"_id":"root"}}`,
		fulltextMerge(t, "b", map[string]any{"text": "World"}, false),
	)

	doc, _ := s.Document("idx", "root")
	fulltext, _ := doc["__fulltext"].(map[string]any)
	if fulltext["text"] != "Hello World" {
		t.Fatalf("expected insertion-ordered aggregate, got %v", fulltext)
	}

	// Removing the first contributor leaves only the second.
	bulk(t, s, "idx",
		`{"update":{"_id":"root"}}`,
		fulltextMerge(t, "a", nil, true),
	)
	doc, _ = s.Document("idx", "root")
	fulltext, _ = doc["__fulltext"].(map[string]any)
	if fulltext["text"] != "World" {
		t.Errorf("expected contribution purged, got %v", fulltext)
	}

	// Re-applying the same merge is idempotent.
	before, _ := s.Document("idx", "root")
	bulk(t, s, "idx",
		`{"update":{"_id":"root"}}`,
		fulltextMerge(t, "b", map[string]any{"text": "World"}, false),
	)
	after, _ := s.Document("idx", "root")
	if fmt.Sprint(before["__fulltext"]) != fmt.Sprint(after["__fulltext"]) {
		t.Errorf("merge must be idempotent: %v != %v", before["__fulltext"], after["__fulltext"])
	}
}

func TestDeleteOtherTypeDocuments(t *testing.T) {
	s := NewStore()
	bulk(t, s, "idx", `{"index":{"_id":"a"}}`, `{"__type":"site.text"}`)

	// Same type: nothing to clean.
	n, err := s.DeleteOtherTypeDocuments(context.Background(), "idx", "a", "site.text")
	if err != nil || n != 0 {
		t.Fatalf("expected no-op, got n=%d err=%v", n, err)
	}

	// Different type: the stale document goes away.
	n, err = s.DeleteOtherTypeDocuments(context.Background(), "idx", "a", "site.image")
	if err != nil || n != 1 {
		t.Fatalf("expected one deletion, got n=%d err=%v", n, err)
	}
	if s.DocumentCount("idx") != 0 {
		t.Error("stale document must be gone")
	}
}

func TestAliases_MissingAliasIsEmpty(t *testing.T) {
	s := NewStore()
	indices, err := s.AliasIndices(context.Background(), "nope")
	if err != nil {
		t.Fatalf("missing alias is not an error, got %v", err)
	}
	if len(indices) != 0 {
		t.Errorf("expected no bindings, got %v", indices)
	}
}

func TestUpdateAliases_AtomicValidation(t *testing.T) {
	s := NewStore()
	if err := s.CreateIndex(context.Background(), "content-1"); err != nil {
		t.Fatal(err)
	}

	err := s.UpdateAliases(context.Background(), []db.AliasAction{
		{Add: true, Alias: "content", Index: "content-1"},
		{Add: true, Alias: "content", Index: "content-missing"},
	})
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
	// The valid action must not have been applied.
	indices, _ := s.AliasIndices(context.Background(), "content")
	if len(indices) != 0 {
		t.Errorf("failed transaction must leave no bindings, got %v", indices)
	}
}

func TestUpdateAliases_Rotation(t *testing.T) {
	s := NewStore()
	_ = s.CreateIndex(context.Background(), "content-1")
	_ = s.CreateIndex(context.Background(), "content-2")

	if err := s.UpdateAliases(context.Background(), []db.AliasAction{
		{Add: true, Alias: "content", Index: "content-1"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateAliases(context.Background(), []db.AliasAction{
		{Alias: "content", Index: "content-1"},
		{Add: true, Alias: "content", Index: "content-2"},
	}); err != nil {
		t.Fatal(err)
	}

	indices, _ := s.AliasIndices(context.Background(), "content")
	if !reflect.DeepEqual(indices, []string{"content-2"}) {
		t.Errorf("expected alias moved to content-2, got %v", indices)
	}
}

func TestDeleteIndices_UnbindsAliases(t *testing.T) {
	s := NewStore()
	_ = s.CreateIndex(context.Background(), "content-1")
	_ = s.UpdateAliases(context.Background(), []db.AliasAction{
		{Add: true, Alias: "content", Index: "content-1"},
	})

	if err := s.DeleteIndex(context.Background(), "content-1"); err != nil {
		t.Fatal(err)
	}
	indices, _ := s.AliasIndices(context.Background(), "content")
	if len(indices) != 0 {
		t.Errorf("deleting an index must drop its bindings, got %v", indices)
	}

	if err := s.DeleteIndex(context.Background(), "content-1"); !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestListIndices_Sorted(t *testing.T) {
	s := NewStore()
	for _, name := range []string{"b", "a", "c"} {
		_ = s.CreateIndex(context.Background(), name)
	}
	names, err := s.ListIndices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{"a", "b", "c"}) {
		t.Errorf("expected sorted names, got %v", names)
	}
}
