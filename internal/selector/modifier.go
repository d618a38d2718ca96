package selector

import (
	"strings"

	"github.com/ajxchapman/goswatch/internal/cache"
	gctx "github.com/ajxchapman/goswatch/internal/context"
	"github.com/ajxchapman/goswatch/internal/item"
	"github.com/ajxchapman/goswatch/internal/registry"
)

// lowerSelector implements `lower`: case-folds the value.
type lowerSelector struct {
	Common
}

func init() {
	register("lower", registry.TypeDescriptor{
		Schema: mergeSchema(registry.Schema{}),
	}, func(r *registry.Resolved) (Selector, error) {
		return &lowerSelector{Common: commonOf(r)}, nil
	})
}

func (s *lowerSelector) RunAll(ctx *gctx.Context, cc *cache.Cache, items []item.Item) ([]item.Item, error) {
	return runElementwise(func(ctx *gctx.Context, cc *cache.Cache, it item.Item) ([]item.Item, error) {
		return []item.Item{it.Clone([]byte(strings.ToLower(string(it.Value))), nil)}, nil
	}, ctx, cc, items)
}

// truncateSelector implements `truncate`: caps the value at `length`
// bytes, appending `suffix` (default "...") in place of the dropped
// tail. Values already within the limit pass through unchanged.
type truncateSelector struct {
	Common
	Length int
	Suffix string
}

func init() {
	register("truncate", registry.TypeDescriptor{
		DefaultKey: "length",
		Schema: mergeSchema(registry.Schema{
			"length": registry.Int(280),
			"suffix": registry.String("..."),
		}),
	}, func(r *registry.Resolved) (Selector, error) {
		return &truncateSelector{
			Common: commonOf(r),
			Length: r.Fields["length"].(int),
			Suffix: stringField(r.Fields, "suffix"),
		}, nil
	})
}

func (s *truncateSelector) RunAll(ctx *gctx.Context, cc *cache.Cache, items []item.Item) ([]item.Item, error) {
	return runElementwise(func(ctx *gctx.Context, cc *cache.Cache, it item.Item) ([]item.Item, error) {
		if s.Length <= 0 || len(it.Value) <= s.Length {
			return []item.Item{it}, nil
		}
		cut := s.Length - len(s.Suffix)
		if cut < 0 {
			cut = 0
		}
		truncated := append(append([]byte{}, it.Value[:cut]...), []byte(s.Suffix)...)
		return []item.Item{it.Clone(truncated, nil)}, nil
	}, ctx, cc, items)
}

// DiffText renders a line-oriented diff between an old and a new value,
// pairing lines by position and marking them "  ", "- " or "+ ", for
// use by Action/Match implementations that want a human-readable
// comment body instead of the raw new value (the `diff` field on the
// cache Match).
func DiffText(oldValue, newValue []byte) string {
	oldLines := splitLines(oldValue, false)
	newLines := splitLines(newValue, false)

	var b strings.Builder
	i, j := 0, 0
	for i < len(oldLines) || j < len(newLines) {
		switch {
		case i >= len(oldLines):
			b.WriteString("+ " + string(newLines[j]) + "\n")
			j++
		case j >= len(newLines):
			b.WriteString("- " + string(oldLines[i]) + "\n")
			i++
		case string(oldLines[i]) == string(newLines[j]):
			b.WriteString("  " + string(oldLines[i]) + "\n")
			i++
			j++
		default:
			b.WriteString("- " + string(oldLines[i]) + "\n")
			b.WriteString("+ " + string(newLines[j]) + "\n")
			i++
			j++
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
