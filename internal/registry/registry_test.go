package registry

import "testing"

func init() {
	Register(TypeDescriptor{
		Kind:       "widget",
		Tag:        "gadget",
		DefaultKey: "value",
		Schema: map[string]Field{
			"value":   String(""),
			"comment": String(""),
			"count":   Int(1),
		},
		HashSkip: map[string]bool{"comment": true},
	})
}

func TestResolveExplicitType(t *testing.T) {
	r, err := Resolve("widget", map[string]interface{}{"type": "gadget", "value": "x", "count": 3})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r.Tag != "gadget" {
		t.Errorf("Tag = %q, want gadget", r.Tag)
	}
	if r.Fields["value"] != "x" || r.Fields["count"] != 3 {
		t.Errorf("fields = %+v", r.Fields)
	}
}

func TestResolveShorthand(t *testing.T) {
	r, err := Resolve("widget", map[string]interface{}{"gadget": "shorthand-value"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r.Fields["value"] != "shorthand-value" {
		t.Errorf("default_key binding failed: %+v", r.Fields)
	}
}

func TestResolveUnknownType(t *testing.T) {
	_, err := Resolve("widget", map[string]interface{}{"type": "nope"})
	if _, ok := err.(*UnknownTypeError); !ok {
		t.Fatalf("expected UnknownTypeError, got %v", err)
	}
}

func TestResolveUncastable(t *testing.T) {
	_, err := Resolve("widget", map[string]interface{}{"type": "gadget", "count": "not-an-int"})
	if _, ok := err.(*UncastableArgumentError); !ok {
		t.Fatalf("expected UncastableArgumentError, got %v", err)
	}
}

func TestHashStableAcrossHashSkip(t *testing.T) {
	a, err := Resolve("widget", map[string]interface{}{"type": "gadget", "value": "x", "comment": "first"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	b, err := Resolve("widget", map[string]interface{}{"type": "gadget", "value": "x", "comment": "second"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if a.Hash != b.Hash {
		t.Errorf("hash differs despite only hash_skip field changing: %s vs %s", a.Hash, b.Hash)
	}
}

func TestHashDiffersOnNonSkipField(t *testing.T) {
	a, _ := Resolve("widget", map[string]interface{}{"type": "gadget", "value": "x"})
	b, _ := Resolve("widget", map[string]interface{}{"type": "gadget", "value": "y"})
	if a.Hash == b.Hash {
		t.Errorf("expected different hashes for different value field")
	}
}

func TestUpdateHashChangesResult(t *testing.T) {
	base := NewBase("gadget", "abc")
	updated := base.UpdateHash([]byte("iteration-0"))
	if updated.Hash() == base.Hash() {
		t.Errorf("UpdateHash did not change the hash")
	}
}
