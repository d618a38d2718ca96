package match

import (
	"strings"
	"testing"

	"github.com/ajxchapman/goswatch/internal/cache"
	gctx "github.com/ajxchapman/goswatch/internal/context"
	"github.com/ajxchapman/goswatch/internal/item"
)

func TestNoneMatchAcceptsNonEmpty(t *testing.T) {
	m, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ok, err := m.Evaluate(gctx.New(), nil, []item.Item{item.New([]byte("x"))})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !ok {
		t.Errorf("none match on non-empty items = false, want true")
	}
	ok, err = m.Evaluate(gctx.New(), nil, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ok {
		t.Errorf("none match on empty items = true, want false")
	}
}

func TestCacheMatchFirstTimeThenStable(t *testing.T) {
	cc, _ := cache.Open("")
	defer cc.Close()
	ctx := gctx.New()

	m, err := New(map[string]interface{}{"type": "cache", "key": "k"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	first, err := m.Evaluate(ctx, cc, []item.Item{item.New([]byte("x"))})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !first {
		t.Errorf("first evaluation = false, want true (first time)")
	}

	m2, err := New(map[string]interface{}{"type": "cache", "key": "k"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	second, err := m2.Evaluate(ctx, cc, []item.Item{item.New([]byte("x"))})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if second {
		t.Errorf("second evaluation = true, want false (already seen)")
	}
}

func TestCacheMatchDiffTriggersOnChangeAndExposesDiffText(t *testing.T) {
	cc, _ := cache.Open("")
	defer cc.Close()
	ctx := gctx.New()

	newWatcher := func() Match {
		m, err := New(map[string]interface{}{"type": "cache", "key": "k-diff", "diff": true})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return m
	}

	first, err := newWatcher().Evaluate(ctx, cc, []item.Item{item.New([]byte("hello"))})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !first {
		t.Errorf("first evaluation = false, want true (first time)")
	}
	if v := ctx.GetVariable(DiffVar, nil); v != nil {
		t.Errorf("diff var set on first-time trigger = %v, want unset (no prior value)", v)
	}

	stable, err := newWatcher().Evaluate(ctx, cc, []item.Item{item.New([]byte("hello"))})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if stable {
		t.Errorf("unchanged value re-evaluation = true, want false")
	}

	changed, err := newWatcher().Evaluate(ctx, cc, []item.Item{item.New([]byte("world"))})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !changed {
		t.Errorf("changed value evaluation = false, want true")
	}
	diff, _ := ctx.GetVariable(DiffVar, nil).(string)
	if diff == "" {
		t.Fatal("expected diff text to be set after a content change")
	}
	if !strings.Contains(diff, "- hello") || !strings.Contains(diff, "+ world") {
		t.Errorf("diff text = %q, want lines for both old and new value", diff)
	}
}

func TestCondShorthandGreaterThan(t *testing.T) {
	m, err := New(map[string]interface{}{"type": "cond", "value": "gt 3"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ok, err := m.Evaluate(gctx.New(), nil, []item.Item{item.New([]byte("5"))})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !ok {
		t.Errorf("5 gt 3 = false, want true")
	}

	ok, err = m.Evaluate(gctx.New(), nil, []item.Item{item.New([]byte("2"))})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ok {
		t.Errorf("2 gt 3 = true, want false")
	}
}

func TestCondEqualityDoesNotRequireIntegers(t *testing.T) {
	m, err := New(map[string]interface{}{"type": "cond", "value": "eq hello"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ok, err := m.Evaluate(gctx.New(), nil, []item.Item{item.New([]byte("hello"))})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !ok {
		t.Errorf("hello eq hello = false, want true")
	}
}

func TestCondUnknownOperatorErrors(t *testing.T) {
	_, err := New(map[string]interface{}{"type": "cond", "operator": "bogus", "value": "1"})
	if err == nil {
		t.Fatal("expected error for unknown operator")
	}
}

func TestCondMultipleItemsErrors(t *testing.T) {
	m, err := New(map[string]interface{}{"type": "cond", "value": "eq x"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = m.Evaluate(gctx.New(), nil, []item.Item{item.New([]byte("x")), item.New([]byte("y"))})
	if err == nil {
		t.Fatal("expected error for multiple items")
	}
}
