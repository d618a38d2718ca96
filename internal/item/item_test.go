package item

import "testing"

func TestCloneDoesNotMutateReceiver(t *testing.T) {
	base := New([]byte("hello"))
	clone := base.Clone([]byte("world"), map[string][]byte{"k": []byte("v")})

	if string(base.Value) != "hello" {
		t.Errorf("receiver Value mutated: got %q", base.Value)
	}
	if base.Vars != nil {
		t.Errorf("receiver Vars mutated: got %v", base.Vars)
	}
	if string(clone.Value) != "world" {
		t.Errorf("clone Value: got %q, want world", clone.Value)
	}
	if string(clone.Vars["k"]) != "v" {
		t.Errorf("clone Vars[k]: got %q, want v", clone.Vars["k"])
	}
}

func TestKeyStableUnderVarOrder(t *testing.T) {
	a := Item{Value: []byte("x"), Vars: map[string][]byte{"a": []byte("1"), "b": []byte("2")}}
	b := Item{Value: []byte("x"), Vars: map[string][]byte{"b": []byte("2"), "a": []byte("1")}}

	if a.Key() != b.Key() {
		t.Errorf("keys differ despite equal content: %s vs %s", a.Key(), b.Key())
	}
}

func TestKeyDiffersOnValue(t *testing.T) {
	a := New([]byte("x"))
	b := New([]byte("y"))
	if a.Key() == b.Key() {
		t.Errorf("expected different keys for different values")
	}
}

func TestEqual(t *testing.T) {
	a := Item{Value: []byte("x"), Vars: map[string][]byte{"a": []byte("1")}}
	b := a.Clone(nil, nil)
	if !a.Equal(b) {
		t.Errorf("expected clone with no overlay to equal receiver")
	}
}
