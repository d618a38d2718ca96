package selector

import (
	"testing"

	"github.com/ajxchapman/goswatch/internal/cache"
	gctx "github.com/ajxchapman/goswatch/internal/context"
	"github.com/ajxchapman/goswatch/internal/item"
)

func TestLowerFoldsCase(t *testing.T) {
	ctx := gctx.New()
	cc, _ := cache.Open("")
	defer cc.Close()

	lower := mustNew(t, map[string]interface{}{"type": "lower"})
	items, err := Execute(lower, ctx, cc, []item.Item{item.New([]byte("HeLLo World"))})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(items) != 1 || string(items[0].Value) != "hello world" {
		t.Errorf("lower result = %v, want \"hello world\"", items)
	}
}

func TestTruncateCapsLengthAndAppendsSuffix(t *testing.T) {
	ctx := gctx.New()
	cc, _ := cache.Open("")
	defer cc.Close()

	trunc := mustNew(t, map[string]interface{}{"truncate": 8, "suffix": "..."})
	items, err := Execute(trunc, ctx, cc, []item.Item{item.New([]byte("hello world"))})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("truncate produced %d items, want 1", len(items))
	}
	if got, want := string(items[0].Value), "hello..."; got != want {
		t.Errorf("truncate result = %q, want %q", got, want)
	}
}

func TestTruncatePassesShortValuesThrough(t *testing.T) {
	ctx := gctx.New()
	cc, _ := cache.Open("")
	defer cc.Close()

	trunc := mustNew(t, map[string]interface{}{"truncate": 80})
	items, err := Execute(trunc, ctx, cc, []item.Item{item.New([]byte("short"))})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(items) != 1 || string(items[0].Value) != "short" {
		t.Errorf("truncate result = %v, want unchanged \"short\"", items)
	}
}

func TestDiffTextMarksAddedChangedAndRemovedLines(t *testing.T) {
	old := []byte("alpha\nbravo\ncharlie")
	new := []byte("alpha\ndelta\ncharlie\necho")

	diff := DiffText(old, new)
	want := "  alpha\n- bravo\n+ delta\n  charlie\n+ echo"
	if diff != want {
		t.Errorf("DiffText =\n%s\nwant\n%s", diff, want)
	}
}
