package selector

import (
	"github.com/ajxchapman/goswatch/internal/cache"
	gctx "github.com/ajxchapman/goswatch/internal/context"
	"github.com/ajxchapman/goswatch/internal/item"
	"github.com/ajxchapman/goswatch/internal/registry"
)

// formatSelector implements `format`: push the item's vars as a `vars`
// context frame, expand a template against it, then either replace the
// item's value or attach the result into its vars.
type formatSelector struct {
	Common
	Format string
	Var    string
}

func init() {
	register("format", registry.TypeDescriptor{
		DefaultKey: "format",
		Schema: mergeSchema(registry.Schema{
			"format": registry.String(""),
			"var":    registry.String(""),
		}),
	}, func(r *registry.Resolved) (Selector, error) {
		return &formatSelector{
			Common: commonOf(r),
			Format: stringField(r.Fields, "format"),
			Var:    stringField(r.Fields, "var"),
		}, nil
	})
}

func (s *formatSelector) RunAll(ctx *gctx.Context, cc *cache.Cache, items []item.Item) ([]item.Item, error) {
	return runElementwise(func(ctx *gctx.Context, cc *cache.Cache, it item.Item) ([]item.Item, error) {
		varsMap := make(map[string]interface{}, len(it.Vars))
		for k, v := range it.Vars {
			varsMap[k] = string(v)
		}

		ctx.PushFrame("format")
		ctx.PushVariable("vars", varsMap)
		ctx.PushVariable("data", string(it.Value))
		rendered, err := ctx.ExpandString(s.Format)
		if popErr := ctx.PopFrame("format"); popErr != nil && err == nil {
			err = popErr
		}
		if err != nil {
			return nil, err
		}

		if s.Var != "" {
			return []item.Item{it.Clone(nil, map[string][]byte{s.Var: []byte(rendered)})}, nil
		}
		return []item.Item{it.Clone([]byte(rendered), nil)}, nil
	}, ctx, cc, items)
}

// subSelector implements `sub`: a nested pipeline run per input item.
type subSelector struct {
	Common
	Pipeline []Selector
}

func init() {
	register("sub", registry.TypeDescriptor{
		DefaultKey: "value",
		Schema: mergeSchema(registry.Schema{
			"value": registry.Any(func() interface{} { return []interface{}{} }),
		}),
	}, func(r *registry.Resolved) (Selector, error) {
		raw, _ := r.Fields["value"].([]interface{})
		pipeline := make([]Selector, 0, len(raw))
		for _, entry := range raw {
			kwargs, ok := entry.(map[string]interface{})
			if !ok {
				continue
			}
			sel, err := New(kwargs)
			if err != nil {
				return nil, err
			}
			pipeline = append(pipeline, sel)
		}
		return &subSelector{Common: commonOf(r), Pipeline: pipeline}, nil
	})
}

func (s *subSelector) RunAll(ctx *gctx.Context, cc *cache.Cache, items []item.Item) ([]item.Item, error) {
	return runElementwise(func(ctx *gctx.Context, cc *cache.Cache, it item.Item) ([]item.Item, error) {
		current := []item.Item{it}
		for _, sel := range s.Pipeline {
			var err error
			current, err = Execute(sel, ctx, cc, current)
			if err != nil {
				return nil, err
			}
		}
		return current, nil
	}, ctx, cc, items)
}
