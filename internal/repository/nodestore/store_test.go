package nodestore

import (
	"testing"

	"github.com/treedex/treedex/internal/domain"
)

func TestDecodeNode(t *testing.T) {
	raw := []byte(`{
		"identifier": "n1",
		"path": "/site/about",
		"type": "site.document",
		"parentIdentifier": "n0",
		"hidden": true,
		"properties": {"title": "About"}
	}`)
	dims := domain.DimensionCombination{"language": {"en"}}

	node, err := decodeNode(raw, "live", dims)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node.Identifier != "n1" || node.Path != "/site/about" || node.ParentID != "n0" {
		t.Errorf("unexpected node: %+v", node)
	}
	if !node.Hidden || node.Removed {
		t.Errorf("unexpected flags: %+v", node)
	}
	if node.Workspace != "live" || node.Dimensions.Selector() != dims.Selector() {
		t.Error("scope must come from the lookup, not the snapshot")
	}
	if node.Properties["title"] != "About" {
		t.Errorf("unexpected properties: %v", node.Properties)
	}
}

func TestDecodeNode_RequiresIdentifier(t *testing.T) {
	if _, err := decodeNode([]byte(`{"path":"/x"}`), "live", nil); err == nil {
		t.Fatal("snapshot without identifier must fail")
	}
}

func TestDecodeNode_Unparseable(t *testing.T) {
	if _, err := decodeNode([]byte(`{`), "live", nil); err == nil {
		t.Fatal("invalid JSON must fail")
	}
}

func TestNodeKeyScoping(t *testing.T) {
	s := &Store{prefix: "treedex"}
	en := domain.DimensionCombination{"language": {"en"}}
	de := domain.DimensionCombination{"language": {"de"}}

	k1 := s.nodeKey("n1", "live", en)
	k2 := s.nodeKey("n1", "live", de)
	k3 := s.nodeKey("n1", "user-alice", en)
	if k1 == k2 || k1 == k3 {
		t.Errorf("keys must separate scopes: %s %s %s", k1, k2, k3)
	}
	if k1 != s.nodeKey("n1", "live", en) {
		t.Error("keys must be deterministic")
	}
}

func TestNew_RequiresAddr(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error without addresses")
	}
}
