package selector

import (
	"testing"

	"github.com/ajxchapman/goswatch/internal/cache"
	gctx "github.com/ajxchapman/goswatch/internal/context"
	"github.com/ajxchapman/goswatch/internal/item"
)

func mustNew(t *testing.T, kwargs map[string]interface{}) Selector {
	t.Helper()
	sel, err := New(kwargs)
	if err != nil {
		t.Fatalf("New(%v): %v", kwargs, err)
	}
	return sel
}

func TestSplitAndJoinRoundTrip(t *testing.T) {
	ctx := gctx.New()
	cc, _ := cache.Open("")
	defer cc.Close()

	split := mustNew(t, map[string]interface{}{"split": ","})
	items, err := Execute(split, ctx, cc, []item.Item{item.New([]byte("a,b,c"))})
	if err != nil {
		t.Fatalf("split Execute: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("split produced %d items, want 3", len(items))
	}

	join := mustNew(t, map[string]interface{}{"join": "-"})
	joined, err := Execute(join, ctx, cc, items)
	if err != nil {
		t.Fatalf("join Execute: %v", err)
	}
	if len(joined) != 1 || string(joined[0].Value) != "a-b-c" {
		t.Errorf("join result = %v, want a-b-c", joined)
	}
}

func TestStripDefaultWhitespace(t *testing.T) {
	ctx := gctx.New()
	cc, _ := cache.Open("")
	defer cc.Close()

	sel := mustNew(t, map[string]interface{}{"strip": ""})
	items, err := Execute(sel, ctx, cc, []item.Item{item.New([]byte("  hi  "))})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if string(items[0].Value) != "hi" {
		t.Errorf("got %q, want hi", items[0].Value)
	}
}

func TestRegexAllFlagControlsMatchCount(t *testing.T) {
	ctx := gctx.New()
	cc, _ := cache.Open("")
	defer cc.Close()

	one := mustNew(t, map[string]interface{}{"regex": `\d+`})
	gotOne, err := Execute(one, ctx, cc, []item.Item{item.New([]byte("a1 b2 c3"))})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(gotOne) != 1 {
		t.Fatalf("without all: %d items, want 1", len(gotOne))
	}

	all := mustNew(t, map[string]interface{}{"regex": `\d+`, "all": true})
	gotAll, err := Execute(all, ctx, cc, []item.Item{item.New([]byte("a1 b2 c3"))})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(gotAll) != 3 {
		t.Fatalf("with all: %d items, want 3", len(gotAll))
	}
}

func TestRegexNamedGroupsBecomeVars(t *testing.T) {
	ctx := gctx.New()
	cc, _ := cache.Open("")
	defer cc.Close()

	sel := mustNew(t, map[string]interface{}{"regex": `(?P<word>\w+)`})
	items, err := Execute(sel, ctx, cc, []item.Item{item.New([]byte("hello"))})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if string(items[0].Vars["word"]) != "hello" {
		t.Errorf("vars[word] = %q, want hello", items[0].Vars["word"])
	}
}

func TestNewSelectorEmitsOnlyUnseen(t *testing.T) {
	ctx := gctx.New()
	cc, _ := cache.Open("")
	defer cc.Close()

	sel := mustNew(t, map[string]interface{}{"type": "new", "cache_key": "k"})
	in := []item.Item{item.New([]byte("a")), item.New([]byte("b")), item.New([]byte("c"))}
	first, err := Execute(sel, ctx, cc, in)
	if err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("first run: %d items, want 3", len(first))
	}

	sel2 := mustNew(t, map[string]interface{}{"type": "new", "cache_key": "k"})
	second, err := Execute(sel2, ctx, cc, []item.Item{item.New([]byte("b")), item.New([]byte("c")), item.New([]byte("d"))})
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if len(second) != 1 || string(second[0].Value) != "d" {
		t.Errorf("second run = %v, want just [d]", second)
	}
}

func TestStoreFieldPassesOriginalItemsThrough(t *testing.T) {
	ctx := gctx.New()
	cc, _ := cache.Open("")
	defer cc.Close()

	sel := mustNew(t, map[string]interface{}{"strip": "", "store": "stripped"})
	in := []item.Item{item.New([]byte("  x  "))}
	out, err := Execute(sel, ctx, cc, in)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(out) != 1 || string(out[0].Value) != "  x  " {
		t.Errorf("Execute with store set should pass through originals, got %v", out)
	}

	stored := ctx.GetVariable("stripped", nil)
	list, ok := stored.([]item.Item)
	if !ok || len(list) != 1 || string(list[0].Value) != "x" {
		t.Errorf("stored variable = %v, want [x]", stored)
	}
}
