package selector

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/ajxchapman/goswatch/internal/cache"
	gctx "github.com/ajxchapman/goswatch/internal/context"
	"github.com/ajxchapman/goswatch/internal/item"
	"github.com/ajxchapman/goswatch/internal/registry"
)

// decodeSelector implements `decode`: entity-unescape the item's value.
type decodeSelector struct {
	Common
	Encoding string
}

func init() {
	register("decode", registry.TypeDescriptor{
		DefaultKey: "encoding",
		Schema: mergeSchema(registry.Schema{
			"encoding": registry.String("html"),
		}),
	}, func(r *registry.Resolved) (Selector, error) {
		return &decodeSelector{Common: commonOf(r), Encoding: stringField(r.Fields, "encoding")}, nil
	})
}

func (s *decodeSelector) RunAll(ctx *gctx.Context, cc *cache.Cache, items []item.Item) ([]item.Item, error) {
	return runElementwise(func(ctx *gctx.Context, cc *cache.Cache, it item.Item) ([]item.Item, error) {
		if s.Encoding == "html" {
			return []item.Item{it.Clone([]byte(html.UnescapeString(string(it.Value))), nil)}, nil
		}
		return []item.Item{it}, nil
	}, ctx, cc, items)
}

// bytesSelector implements `bytes`: a raw byte slice of the value.
type bytesSelector struct {
	Common
	Start, End int
}

func init() {
	register("bytes", registry.TypeDescriptor{
		DefaultKey: "end",
		Schema: mergeSchema(registry.Schema{
			"start": registry.Int(0),
			"end":   registry.Int(0),
		}),
	}, func(r *registry.Resolved) (Selector, error) {
		return &bytesSelector{Common: commonOf(r), Start: r.Fields["start"].(int), End: r.Fields["end"].(int)}, nil
	})
}

func (s *bytesSelector) RunAll(ctx *gctx.Context, cc *cache.Cache, items []item.Item) ([]item.Item, error) {
	return runElementwise(func(ctx *gctx.Context, cc *cache.Cache, it item.Item) ([]item.Item, error) {
		start, end := sliceBounds(len(it.Value), s.Start, s.End)
		return []item.Item{it.Clone(it.Value[start:end], nil)}, nil
	}, ctx, cc, items)
}

// sliceBounds converts possibly-negative, possibly-zero start/end
// (Python-slice style: end==0 means "to the end") into valid bounds
// for a slice of the given length.
func sliceBounds(length, start, end int) (int, int) {
	if start < 0 {
		start += length
	}
	if start < 0 {
		start = 0
	}
	if start > length {
		start = length
	}

	actualEnd := end
	if end == 0 {
		actualEnd = length
	} else if end < 0 {
		actualEnd = end + length
	}
	if actualEnd > length {
		actualEnd = length
	}
	if actualEnd < start {
		actualEnd = start
	}
	return start, actualEnd
}

// linesSelector implements `lines`: split on line terminators.
type linesSelector struct {
	Common
	KeepEnds bool
	HTML     bool
}

func init() {
	register("lines", registry.TypeDescriptor{
		Schema: mergeSchema(registry.Schema{
			"keepends": registry.Bool(false),
			"html":     registry.Bool(false),
		}),
	}, func(r *registry.Resolved) (Selector, error) {
		return &linesSelector{Common: commonOf(r), KeepEnds: r.Fields["keepends"].(bool), HTML: r.Fields["html"].(bool)}, nil
	})
}

var (
	brTagRe = regexp.MustCompile(`(?i)<br\s*/?>`)
	pEndRe  = regexp.MustCompile(`(?i)</p>`)
)

func (s *linesSelector) RunAll(ctx *gctx.Context, cc *cache.Cache, items []item.Item) ([]item.Item, error) {
	return runElementwise(func(ctx *gctx.Context, cc *cache.Cache, it item.Item) ([]item.Item, error) {
		value := it.Value
		if s.HTML {
			value = pEndRe.ReplaceAll(brTagRe.ReplaceAll(value, []byte("\n")), []byte("\n"))
		}

		var out []item.Item
		for _, line := range splitLines(value, s.KeepEnds) {
			out = append(out, it.Clone(line, nil))
		}
		return out, nil
	}, ctx, cc, items)
}

func splitLines(value []byte, keepEnds bool) [][]byte {
	var out [][]byte
	start := 0
	for i := 0; i < len(value); i++ {
		if value[i] == '\n' {
			end := i + 1
			if !keepEnds {
				end = i
				if end > start && value[end-1] == '\r' {
					end--
				}
			}
			out = append(out, value[start:end])
			start = i + 1
		}
	}
	if start < len(value) {
		out = append(out, value[start:])
	}
	return out
}

// splitSelector implements `split`.
type splitSelector struct {
	Common
	Sep        string
	Start, End int
}

func init() {
	register("split", registry.TypeDescriptor{
		DefaultKey: "sep",
		Schema: mergeSchema(registry.Schema{
			"sep":   registry.String(""),
			"start": registry.Int(0),
			"end":   registry.Int(0),
		}),
	}, func(r *registry.Resolved) (Selector, error) {
		return &splitSelector{
			Common: commonOf(r),
			Sep:    stringField(r.Fields, "sep"),
			Start:  r.Fields["start"].(int),
			End:    r.Fields["end"].(int),
		}, nil
	})
}

func (s *splitSelector) RunAll(ctx *gctx.Context, cc *cache.Cache, items []item.Item) ([]item.Item, error) {
	return runElementwise(func(ctx *gctx.Context, cc *cache.Cache, it item.Item) ([]item.Item, error) {
		var parts []string
		if s.Sep == "" {
			parts = strings.Fields(string(it.Value))
		} else {
			parts = strings.Split(string(it.Value), s.Sep)
		}
		start, end := sliceBounds(len(parts), s.Start, s.End)
		out := make([]item.Item, 0, end-start)
		for _, p := range parts[start:end] {
			out = append(out, it.Clone([]byte(p), nil))
		}
		return out, nil
	}, ctx, cc, items)
}

// joinSelector implements `join`: a genuine aggregate selector.
type joinSelector struct {
	Common
	Sep string
}

func init() {
	register("join", registry.TypeDescriptor{
		DefaultKey: "sep",
		Schema: mergeSchema(registry.Schema{
			"sep": registry.String(""),
		}),
	}, func(r *registry.Resolved) (Selector, error) {
		return &joinSelector{Common: commonOf(r), Sep: stringField(r.Fields, "sep")}, nil
	})
}

func (s *joinSelector) RunAll(ctx *gctx.Context, cc *cache.Cache, items []item.Item) ([]item.Item, error) {
	if len(items) == 0 {
		return nil, nil
	}
	values := make([][]byte, len(items))
	for i, it := range items {
		values[i] = it.Value
	}
	joined := bytes.Join(values, []byte(s.Sep))
	return []item.Item{items[0].Clone(joined, nil)}, nil
}

// stripSelector implements `strip`.
type stripSelector struct {
	Common
	Chars string
}

func init() {
	register("strip", registry.TypeDescriptor{
		DefaultKey: "chars",
		Schema: mergeSchema(registry.Schema{
			"chars": registry.String(""),
		}),
	}, func(r *registry.Resolved) (Selector, error) {
		return &stripSelector{Common: commonOf(r), Chars: stringField(r.Fields, "chars")}, nil
	})
}

func (s *stripSelector) RunAll(ctx *gctx.Context, cc *cache.Cache, items []item.Item) ([]item.Item, error) {
	return runElementwise(func(ctx *gctx.Context, cc *cache.Cache, it item.Item) ([]item.Item, error) {
		var trimmed string
		if s.Chars == "" {
			trimmed = strings.TrimSpace(string(it.Value))
		} else {
			trimmed = strings.Trim(string(it.Value), s.Chars)
		}
		return []item.Item{it.Clone([]byte(trimmed), nil)}, nil
	}, ctx, cc, items)
}

// striptagsSelector implements `striptags`.
type striptagsSelector struct {
	Common
	Replacement string
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

func init() {
	register("striptags", registry.TypeDescriptor{
		DefaultKey: "replacement",
		Schema: mergeSchema(registry.Schema{
			"replacement": registry.String(""),
		}),
	}, func(r *registry.Resolved) (Selector, error) {
		return &striptagsSelector{Common: commonOf(r), Replacement: stringField(r.Fields, "replacement")}, nil
	})
}

func (s *striptagsSelector) RunAll(ctx *gctx.Context, cc *cache.Cache, items []item.Item) ([]item.Item, error) {
	return runElementwise(func(ctx *gctx.Context, cc *cache.Cache, it item.Item) ([]item.Item, error) {
		replaced := tagRe.ReplaceAll(it.Value, []byte(s.Replacement))
		return []item.Item{it.Clone(replaced, nil)}, nil
	}, ctx, cc, items)
}

// replaceSelector implements `replace`: regex substitution.
type replaceSelector struct {
	Common
	Pattern     *regexp.Regexp
	Replacement string
}

func init() {
	register("replace", registry.TypeDescriptor{
		DefaultKey: "regex",
		Schema: mergeSchema(registry.Schema{
			"regex":       registry.String(""),
			"replacement": registry.String(""),
		}),
	}, func(r *registry.Resolved) (Selector, error) {
		re, err := regexp.Compile(stringField(r.Fields, "regex"))
		if err != nil {
			return nil, err
		}
		return &replaceSelector{Common: commonOf(r), Pattern: re, Replacement: stringField(r.Fields, "replacement")}, nil
	})
}

func (s *replaceSelector) RunAll(ctx *gctx.Context, cc *cache.Cache, items []item.Item) ([]item.Item, error) {
	return runElementwise(func(ctx *gctx.Context, cc *cache.Cache, it item.Item) ([]item.Item, error) {
		replaced := s.Pattern.ReplaceAll(it.Value, []byte(s.Replacement))
		return []item.Item{it.Clone(replaced, nil)}, nil
	}, ctx, cc, items)
}

// sliceSelector implements `slice`: slice the ITEM LIST, not a value.
type sliceSelector struct {
	Common
	Start, End int
}

func init() {
	register("slice", registry.TypeDescriptor{
		DefaultKey: "end",
		Schema: mergeSchema(registry.Schema{
			"start": registry.Int(0),
			"end":   registry.Int(0),
		}),
	}, func(r *registry.Resolved) (Selector, error) {
		return &sliceSelector{Common: commonOf(r), Start: r.Fields["start"].(int), End: r.Fields["end"].(int)}, nil
	})
}

func (s *sliceSelector) RunAll(ctx *gctx.Context, cc *cache.Cache, items []item.Item) ([]item.Item, error) {
	start, end := sliceBounds(len(items), s.Start, s.End)
	out := make([]item.Item, end-start)
	copy(out, items[start:end])
	return out, nil
}

// pickSelector implements `pick`: select items by index.
type pickSelector struct {
	Common
	Index []int
}

func init() {
	register("pick", registry.TypeDescriptor{
		DefaultKey: "index",
		Schema: mergeSchema(registry.Schema{
			"index": registry.Any(func() interface{} { return []int{} }),
		}),
	}, func(r *registry.Resolved) (Selector, error) {
		idx, err := toIntSlice(r.Fields["index"])
		if err != nil {
			return nil, err
		}
		return &pickSelector{Common: commonOf(r), Index: idx}, nil
	})
}

func toIntSlice(v interface{}) ([]int, error) {
	switch val := v.(type) {
	case []int:
		return val, nil
	case int:
		return []int{val}, nil
	case []interface{}:
		out := make([]int, 0, len(val))
		for _, e := range val {
			coerced, err := registry.Int(0).Coerce(e)
			if err != nil {
				return nil, err
			}
			out = append(out, coerced.(int))
		}
		return out, nil
	default:
		return nil, nil
	}
}

func (s *pickSelector) RunAll(ctx *gctx.Context, cc *cache.Cache, items []item.Item) ([]item.Item, error) {
	out := make([]item.Item, 0, len(s.Index))
	for _, i := range s.Index {
		idx := i
		if idx < 0 {
			idx += len(items)
		}
		if idx < 0 || idx >= len(items) {
			continue
		}
		out = append(out, items[idx])
	}
	return out, nil
}
