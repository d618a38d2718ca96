// Package selector implements the transformation pipeline SPEC_FULL.md
// §5.4 describes: a chain of tagged, registry-resolved stages that turn
// one list of Items into another.
package selector

import (
	"fmt"

	"github.com/ajxchapman/goswatch/internal/cache"
	gctx "github.com/ajxchapman/goswatch/internal/context"
	"github.com/ajxchapman/goswatch/internal/item"
	"github.com/ajxchapman/goswatch/internal/registry"
)

// Kind is the registry kind selectors are registered under.
const Kind = "selector"

// InvalidSelectorResult is returned when a selector's RunAll
// implementation produces something other than a list of Items. In
// this Go port RunAll's signature already enforces that statically, and
// no selector in this package returns it.
type InvalidSelectorResult struct {
	Tag string
}

func (e *InvalidSelectorResult) Error() string {
	return fmt.Sprintf("selector %q: did not produce a valid item list", e.Tag)
}

// Selector is the common contract every concrete selector type
// satisfies. Every selector implements RunAll; most do so elementwise
// via runElementwise, while aggregate selectors (join, slice, pick, the
// Cache family) work on the whole item list.
type Selector interface {
	registry.Loadable
	// Input names a context variable to substitute for the pipeline's
	// current items, or "" to use the items as given.
	Input() string
	// Store names a context variable the result is pushed under,
	// making Execute pass the ORIGINAL items through instead.
	Store() string
	// RunAll transforms items in aggregate.
	RunAll(ctx *gctx.Context, cc *cache.Cache, items []item.Item) ([]item.Item, error)
}

// Common holds the two pass-through fields every selector schema
// includes, plus the resolved tag/hash pair.
type Common struct {
	registry.Base
	InputName string
	StoreName string
}

func (c Common) Input() string { return c.InputName }
func (c Common) Store() string { return c.StoreName }

// Execute implements the generic pipeline contract from SPEC_FULL.md
// §5.4: substitute input, run the selector, and either push the result
// to a stored variable (passing the original items through) or return
// it directly.
func Execute(sel Selector, ctx *gctx.Context, cc *cache.Cache, items []item.Item) ([]item.Item, error) {
	working := items
	if name := sel.Input(); name != "" {
		v := ctx.GetVariable(name, nil)
		switch val := v.(type) {
		case []item.Item:
			working = val
		case item.Item:
			working = []item.Item{val}
		case nil:
			working = nil
		default:
			working = []item.Item{item.New([]byte(gctx.Finalize(val)))}
		}
	}

	result, err := sel.RunAll(ctx, cc, working)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []item.Item{}
	}

	if name := sel.Store(); name != "" {
		ctx.PushVariable(name, result)
		return items, nil
	}
	return result, nil
}

// runElementwise is the shared helper backing elementwise selectors'
// RunAll: map run over every item, concatenating results in order.
func runElementwise(run func(ctx *gctx.Context, cc *cache.Cache, it item.Item) ([]item.Item, error), ctx *gctx.Context, cc *cache.Cache, items []item.Item) ([]item.Item, error) {
	out := make([]item.Item, 0, len(items))
	for _, it := range items {
		results, err := run(ctx, cc, it)
		if err != nil {
			return nil, err
		}
		out = append(out, results...)
	}
	return out, nil
}

// factories maps a registered tag to the function that turns a resolved
// (fields, hash) pair into the concrete Selector. Each concrete
// selector's file registers itself here from its own init().
var factories = map[string]func(*registry.Resolved) (Selector, error){}

// register records both the schema (for registry.Resolve) and the
// constructor (for New) under one tag.
func register(tag string, desc registry.TypeDescriptor, build func(*registry.Resolved) (Selector, error)) {
	desc.Kind = Kind
	desc.Tag = tag
	registry.Register(desc)
	factories[tag] = build
}

// New resolves kwargs against the selector registry and constructs the
// concrete Selector for it.
func New(kwargs map[string]interface{}) (Selector, error) {
	resolved, err := registry.Resolve(Kind, kwargs)
	if err != nil {
		return nil, err
	}
	build, ok := factories[resolved.Tag]
	if !ok {
		return nil, fmt.Errorf("selector: %q has a schema but no constructor registered", resolved.Tag)
	}
	return build(resolved)
}

// commonOf extracts the shared input/store fields and builds the Common
// embed every concrete selector starts from.
func commonOf(r *registry.Resolved) Common {
	return Common{
		Base:      registry.NewBase(r.Tag, r.Hash),
		InputName: stringField(r.Fields, "input"),
		StoreName: stringField(r.Fields, "store"),
	}
}

func stringField(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

// commonSchema returns the input/store fields every selector schema
// shares.
func commonSchema() registry.Schema {
	return registry.Schema{
		"input": registry.String(""),
		"store": registry.String(""),
	}
}

// mergeSchema layers extra on top of commonSchema(), used by every
// concrete selector's descriptor.
func mergeSchema(extra registry.Schema) registry.Schema {
	out := commonSchema()
	for k, v := range extra {
		out[k] = v
	}
	return out
}
