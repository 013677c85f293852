package domain

import (
	"reflect"
	"testing"
)

func TestFulltextParts_OrderedConcatenation(t *testing.T) {
	parts := NewFulltextParts()
	parts.Set("node-a", Fragment{"title": "Hello"})
	parts.Set("node-b", Fragment{"title": "World"})

	got := parts.Fulltext()
	if got["title"] != "Hello World" {
		t.Errorf("expected %q, got %q", "Hello World", got["title"])
	}

	parts.Remove("node-a")
	got = parts.Fulltext()
	if got["title"] != "World" {
		t.Errorf("after removal expected %q, got %q", "World", got["title"])
	}
}

func TestFulltextParts_ReplaceKeepsPosition(t *testing.T) {
	parts := NewFulltextParts()
	parts.Set("node-a", Fragment{"title": "Hello"})
	parts.Set("node-b", Fragment{"title": "World"})
	parts.Set("node-a", Fragment{"title": "Goodbye"})

	if got := parts.Fulltext()["title"]; got != "Goodbye World" {
		t.Errorf("replacement must keep insertion position, got %q", got)
	}
}

func TestFulltextParts_Idempotent(t *testing.T) {
	parts := NewFulltextParts()
	parts.Set("node-a", Fragment{"title": "Hello", "text": "body"})
	parts.Set("node-b", Fragment{"title": "World"})
	want := parts.Fulltext()

	for i := 0; i < 3; i++ {
		parts.Set("node-a", Fragment{"title": "Hello", "text": "body"})
	}
	if got := parts.Fulltext(); !reflect.DeepEqual(got, want) {
		t.Errorf("reapplying an unchanged fragment changed the aggregate: %v vs %v", got, want)
	}
}

func TestFulltextParts_TrimsContributions(t *testing.T) {
	parts := NewFulltextParts()
	parts.Set("node-a", Fragment{"title": "  Hello  "})
	parts.Set("node-b", Fragment{"title": "\tWorld\n"})

	if got := parts.Fulltext()["title"]; got != "Hello World" {
		t.Errorf("expected trimmed concatenation, got %q", got)
	}
}

func TestFulltextParts_SkipsBlankEntries(t *testing.T) {
	parts := NewFulltextParts()
	parts.Set("node-a", Fragment{"title": "   "})
	parts.Set("node-b", Fragment{"title": "World"})

	got := parts.Fulltext()
	if got["title"] != "World" {
		t.Errorf("blank contributions must not leave separators, got %q", got["title"])
	}
}

func TestFulltextParts_RemoveAbsent(t *testing.T) {
	parts := NewFulltextParts()
	parts.Set("node-a", Fragment{"title": "Hello"})
	parts.Remove("node-x")
	if parts.Len() != 1 || !parts.Has("node-a") {
		t.Error("removing an absent contributor must be a no-op")
	}
}

func TestFulltextParts_ToMap(t *testing.T) {
	parts := NewFulltextParts()
	parts.Set("node-a", Fragment{"title": "Hello"})

	m := parts.ToMap()
	entry, ok := m["node-a"].(map[string]any)
	if !ok {
		t.Fatalf("expected map entry for node-a, got %T", m["node-a"])
	}
	if entry["title"] != "Hello" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestFragment_Empty(t *testing.T) {
	if !(Fragment{}).Empty() {
		t.Error("empty fragment must report empty")
	}
	if !(Fragment{"title": "  "}).Empty() {
		t.Error("whitespace-only fragment must report empty")
	}
	if (Fragment{"title": "x"}).Empty() {
		t.Error("non-blank fragment must not report empty")
	}
}

func TestFragment_Trimmed(t *testing.T) {
	got := Fragment{"title": " Hello ", "text": "   "}.Trimmed()
	if !reflect.DeepEqual(got, Fragment{"title": "Hello"}) {
		t.Errorf("unexpected trimmed fragment: %v", got)
	}
}
