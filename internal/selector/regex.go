package selector

import (
	"regexp"

	"github.com/ajxchapman/goswatch/internal/cache"
	gctx "github.com/ajxchapman/goswatch/internal/context"
	"github.com/ajxchapman/goswatch/internal/item"
	"github.com/ajxchapman/goswatch/internal/registry"
)

// regexSelector implements the `regex` tag: regex matching over an
// item's raw bytes, emitting one Item per match (or per unnamed group,
// or one Item carrying named groups as vars).
type regexSelector struct {
	Common
	Pattern string
	All     bool
}

func init() {
	register("regex", registry.TypeDescriptor{
		DefaultKey: "regex",
		Schema: mergeSchema(registry.Schema{
			"regex": registry.String(""),
			"all":   registry.Bool(false),
		}),
	}, func(r *registry.Resolved) (Selector, error) {
		return &regexSelector{
			Common:  commonOf(r),
			Pattern: stringField(r.Fields, "regex"),
			All:     r.Fields["all"].(bool),
		}, nil
	})
}

func (s *regexSelector) RunAll(ctx *gctx.Context, cc *cache.Cache, items []item.Item) ([]item.Item, error) {
	re, err := regexp.Compile(s.Pattern)
	if err != nil {
		return nil, err
	}
	return runElementwise(func(ctx *gctx.Context, cc *cache.Cache, it item.Item) ([]item.Item, error) {
		return s.run(re, it)
	}, ctx, cc, items)
}

func (s *regexSelector) run(re *regexp.Regexp, it item.Item) ([]item.Item, error) {
	names := re.SubexpNames()
	hasNamed := false
	for _, n := range names {
		if n != "" {
			hasNamed = true
			break
		}
	}

	var out []item.Item
	limit := 1
	if s.All {
		limit = -1
	}

	matches := re.FindAllSubmatchIndex(it.Value, limit)
	for _, m := range matches {
		whole := it.Value[m[0]:m[1]]

		switch {
		case hasNamed:
			vars := map[string][]byte{}
			for i, n := range names {
				if n == "" || 2*i+1 >= len(m) || m[2*i] < 0 {
					continue
				}
				vars[n] = it.Value[m[2*i]:m[2*i+1]]
			}
			out = append(out, it.Clone(whole, vars))
		case len(m) > 2:
			// Unnamed groups present: one Item per group.
			for i := 1; i*2 < len(m); i++ {
				if m[2*i] < 0 {
					continue
				}
				out = append(out, it.Clone(it.Value[m[2*i]:m[2*i+1]], nil))
			}
		default:
			out = append(out, it.Clone(whole, nil))
		}
	}
	return out, nil
}
