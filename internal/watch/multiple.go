package watch

import (
	"fmt"

	"github.com/ajxchapman/goswatch/internal/cache"
	gctx "github.com/ajxchapman/goswatch/internal/context"
	"github.com/ajxchapman/goswatch/internal/item"
	"github.com/ajxchapman/goswatch/internal/registry"
)

// MultipleWatch is the shared shape for watches that compose other
// watches rather than fetching data themselves. Operator controls how
// the trigger/comment/data of each yielded child is folded into the
// compositor's own result; children is computed fresh on every run so
// a subclass can pick its set lazily (e.g. `conditional` picks exactly
// one of then/else).
type MultipleWatch struct {
	Common
	Operator string
	children func(ctx *gctx.Context, cc *cache.Cache) ([]Watch, error)
}

func (w *MultipleWatch) Process(ctx *gctx.Context, cc *cache.Cache) (ProcessResult, error) {
	return w.Common.Process(w, ctx, cc)
}

func (w *MultipleWatch) run(ctx *gctx.Context, cc *cache.Cache) (ProcessResult, error) {
	children, err := w.children(ctx, cc)
	if err != nil {
		return ProcessResult{}, err
	}
	result, err := combineChildren(children, w.Operator, ctx, cc)
	if err != nil {
		return ProcessResult{}, err
	}
	if !result.Trigger {
		return ProcessResult{}, nil
	}

	if w.Comment != "" {
		rendered, err := ctx.ExpandString(w.Comment)
		if err != nil {
			return ProcessResult{}, err
		}
		result.Comments = nestComment(rendered, result.Comments)
	}
	return result, nil
}

// combineChildren processes each child in order and folds their
// ProcessResults per SPEC_FULL.md §4.7's MultipleWatch operator
// semantics:
//   - all/and: short-circuit on the first non-trigger with (false, [], [])
//   - any/or: OR across, accumulating comments/data from triggered children
//   - last: overall trigger is the LAST child's trigger; its comment/data
//     alone are kept
//   - break: consume children until the first non-trigger, then stop,
//     accumulating comments/data from every triggered child consumed so far
func combineChildren(children []Watch, operator string, ctx *gctx.Context, cc *cache.Cache) (ProcessResult, error) {
	if operator == "" {
		operator = "all"
	}

	var triggeredAny bool
	var comments []interface{}
	var data []map[string]interface{}
	var items []item.Item
	var lastResult ProcessResult

childLoop:
	for _, child := range children {
		result, err := child.Process(ctx, cc)
		if err != nil {
			return ProcessResult{}, err
		}

		switch operator {
		case "all", "and":
			if !result.Trigger {
				return ProcessResult{}, nil
			}
			triggeredAny = true
			comments = append(comments, result.Comments...)
			data = append(data, result.Data...)
			items = append(items, result.Items...)
		case "any", "or":
			if result.Trigger {
				triggeredAny = true
				comments = append(comments, result.Comments...)
				data = append(data, result.Data...)
				items = append(items, result.Items...)
			}
		case "last":
			lastResult = result
		case "break":
			if !result.Trigger {
				break childLoop
			}
			triggeredAny = true
			comments = append(comments, result.Comments...)
			data = append(data, result.Data...)
			items = append(items, result.Items...)
		default:
			return ProcessResult{}, fmt.Errorf("watch: unknown operator %q", operator)
		}
	}

	if operator == "last" {
		return lastResult, nil
	}
	if !triggeredAny {
		return ProcessResult{}, nil
	}
	return ProcessResult{Trigger: true, Comments: comments, Data: data, Items: items}, nil
}

// hashMixedWatch wraps a Watch to report an updated hash from Hash(),
// used by `loop` and `template` so each instance reports a distinct
// hash. Only Hash() changes: the wrapped watch's Process still runs
// under its own unmixed hash (frame id, data variable, action_data id).
type hashMixedWatch struct {
	Watch
	hash string
}

func (h *hashMixedWatch) Hash() string { return h.hash }

// loopIterWatch wraps one `loop` iteration's child so its loop
// variable and index are scoped to the single Process call that
// evaluates it: pushed just before, popped just after, mirroring
// ctx.push_variable/ctx.pop_variable around each yielded watch.
// Using the frame-scoped PushVariable/PopVariable here (rather than
// the process-wide SetVariable) keeps one iteration's value from
// leaking into a sibling or a later re-run of the same loop.
type loopIterWatch struct {
	Watch
	varName string
	value   string
	index   int
}

func (w *loopIterWatch) Process(ctx *gctx.Context, cc *cache.Cache) (ProcessResult, error) {
	ctx.PushVariable(w.varName, w.value)
	ctx.PushVariable("index", w.index)
	result, err := w.Watch.Process(ctx, cc)
	if _, popErr := ctx.PopVariable("index"); err == nil {
		err = popErr
	}
	if _, popErr := ctx.PopVariable(w.varName); err == nil {
		err = popErr
	}
	return result, err
}

func operatorField(fields map[string]interface{}) string {
	op := stringField(fields, "operator")
	if op == "" {
		return "all"
	}
	return op
}

// groupWatch is `group`: an explicit ordered list of sub-watches
// combined with `operator` (default all).
func init() {
	register("group", registry.TypeDescriptor{
		DefaultKey: "group",
		Schema: mergeSchema(registry.Schema{
			"group":    registry.Any(func() interface{} { return []interface{}{} }),
			"operator": registry.String("all"),
		}),
	}, func(r *registry.Resolved) (Watch, error) {
		common, err := buildCommon(r)
		if err != nil {
			return nil, err
		}
		children, err := buildWatchList(r.Fields["group"])
		if err != nil {
			return nil, err
		}
		return &MultipleWatch{
			Common:   common,
			Operator: operatorField(r.Fields),
			children: func(ctx *gctx.Context, cc *cache.Cache) ([]Watch, error) {
				return children, nil
			},
		}, nil
	})
}

// loopWatch is `loop`: runs a generator sub-watch (`loop`), and — if it
// triggers — iterates its produced items through `do` once each,
// pushing `index` and `as` into the context and wrapping each
// iteration's `do` in a hashMixedWatch whose Hash() mixes in the
// iteration's value and index; see hashMixedWatch for what that covers.
func init() {
	register("loop", registry.TypeDescriptor{
		DefaultKey: "loop",
		Schema: mergeSchema(registry.Schema{
			"loop":     registry.Any(func() interface{} { return map[string]interface{}{} }),
			"as":       registry.String("loop"),
			"do":       registry.Any(func() interface{} { return map[string]interface{}{} }),
			"operator": registry.String("all"),
		}),
	}, func(r *registry.Resolved) (Watch, error) {
		common, err := buildCommon(r)
		if err != nil {
			return nil, err
		}
		loopKwargs, _ := r.Fields["loop"].(map[string]interface{})
		generator, err := New(loopKwargs)
		if err != nil {
			return nil, fmt.Errorf("watch loop: generator: %w", err)
		}
		varName := stringField(r.Fields, "as")
		doKwargs, _ := r.Fields["do"].(map[string]interface{})

		return &MultipleWatch{
			Common:   common,
			Operator: operatorField(r.Fields),
			children: func(ctx *gctx.Context, cc *cache.Cache) ([]Watch, error) {
				genResult, err := generator.Process(ctx, cc)
				if err != nil {
					return nil, fmt.Errorf("watch loop: generator: %w", err)
				}
				if !genResult.Trigger {
					return nil, nil
				}

				children := make([]Watch, 0, len(genResult.Items))
				for i, it := range genResult.Items {
					child, err := New(cloneMap(doKwargs))
					if err != nil {
						return nil, err
					}
					children = append(children, &loopIterWatch{
						Watch: &hashMixedWatch{
							Watch: child,
							hash:  registry.UpdateHash(child.Hash(), []byte(fmt.Sprintf("%s-%d", it.Value, i))),
						},
						varName: varName,
						value:   string(it.Value),
						index:   i,
					})
				}
				return children, nil
			},
		}, nil
	})
}

// conditionalWatch is `conditional`: folds its `conditional` list of
// watches with `operator` into a single boolean, then yields `then` on
// trigger or `else` (if configured) otherwise.
func init() {
	register("conditional", registry.TypeDescriptor{
		DefaultKey: "conditional",
		Schema: mergeSchema(registry.Schema{
			"conditional": registry.Any(func() interface{} { return []interface{}{} }),
			"operator":    registry.String("all"),
			"then":        registry.Any(func() interface{} { return map[string]interface{}{} }),
			"else":        registry.Any(func() interface{} { return map[string]interface{}{} }),
		}),
	}, func(r *registry.Resolved) (Watch, error) {
		common, err := buildCommon(r)
		if err != nil {
			return nil, err
		}
		condWatches, err := buildWatchList(r.Fields["conditional"])
		if err != nil {
			return nil, err
		}
		innerOperator := operatorField(r.Fields)
		thenKwargs, _ := r.Fields["then"].(map[string]interface{})
		elseKwargs, hasElseRaw := r.Fields["else"].(map[string]interface{})
		hasElse := hasElseRaw && len(elseKwargs) > 0

		return &MultipleWatch{
			Common:   common,
			Operator: "all",
			children: func(ctx *gctx.Context, cc *cache.Cache) ([]Watch, error) {
				result, err := combineChildren(condWatches, innerOperator, ctx, cc)
				if err != nil {
					return nil, err
				}
				if result.Trigger {
					child, err := New(thenKwargs)
					if err != nil {
						return nil, err
					}
					return []Watch{child}, nil
				}
				if hasElse {
					child, err := New(elseKwargs)
					if err != nil {
						return nil, err
					}
					return []Watch{child}, nil
				}
				return nil, nil
			},
		}, nil
	})
}

// onceWatch is `once`: runs its child exactly one time, gated on a
// cache entry keyed by its hash (or an explicit key), never again.
func init() {
	register("once", registry.TypeDescriptor{
		DefaultKey: "once",
		Schema: mergeSchema(registry.Schema{
			"once": registry.Any(func() interface{} { return map[string]interface{}{} }),
			"key":  registry.String(""),
		}),
	}, func(r *registry.Resolved) (Watch, error) {
		common, err := buildCommon(r)
		if err != nil {
			return nil, err
		}
		childKwargs, _ := r.Fields["once"].(map[string]interface{})
		key := stringField(r.Fields, "key")

		return &MultipleWatch{
			Common:   common,
			Operator: "all",
			children: func(ctx *gctx.Context, cc *cache.Cache) ([]Watch, error) {
				cacheKey := key
				var err error
				if cacheKey == "" {
					cacheKey = "once-" + common.Hash()
				} else {
					cacheKey, err = ctx.ExpandString(cacheKey)
					if err != nil {
						return nil, err
					}
				}
				if cc == nil {
					return nil, fmt.Errorf("watch once: no cache configured")
				}
				has, err := cc.HasEntry(cacheKey)
				if err != nil {
					return nil, err
				}
				if has {
					return nil, nil
				}
				if err := cc.PutEntry(cacheKey, true); err != nil {
					return nil, err
				}
				child, err := New(childKwargs)
				if err != nil {
					return nil, err
				}
				return []Watch{child}, nil
			},
		}, nil
	})
}

// templates holds named watch-template definitions registered by the
// configuration loader's top-level `templates` section.
var templates = map[string]map[string]interface{}{}

// RegisterTemplate stores a named watch-template definition for later
// instantiation by `template` watches.
func RegisterTemplate(name string, definition map[string]interface{}) {
	templates[name] = definition
}

// templateWatch is `template`: instantiates a named, pre-registered
// watch template with variables bound, substituting a `body` sentinel
// kwargs fragment into the template's own structure.
func init() {
	register("template", registry.TypeDescriptor{
		DefaultKey: "template",
		Schema: mergeSchema(registry.Schema{
			"template":  registry.String(""),
			"requires":  registry.Any(func() interface{} { return []interface{}{} }),
			"variables": registry.Any(func() interface{} { return map[string]interface{}{} }),
			"body":      registry.Any(func() interface{} { return map[string]interface{}{} }),
		}),
	}, func(r *registry.Resolved) (Watch, error) {
		common, err := buildCommon(r)
		if err != nil {
			return nil, err
		}
		name := stringField(r.Fields, "template")
		variables, _ := r.Fields["variables"].(map[string]interface{})
		body, _ := r.Fields["body"].(map[string]interface{})
		required, _ := r.Fields["requires"].([]interface{})

		// Validated eagerly, not inside the lazy children closure: an
		// unregistered template or a missing required variable is a
		// configuration mistake the driver should report-and-skip at
		// load time, not a runtime fetch/match failure discovered only
		// once the watch tree executes.
		def, ok := templates[name]
		if !ok {
			return nil, &registry.UnknownTemplateError{Name: name}
		}
		for _, req := range required {
			key, _ := req.(string)
			if key == "" {
				continue
			}
			if _, ok := variables[key]; !ok {
				return nil, &registry.MissingRequiredVariableError{Template: name, Variable: key}
			}
		}

		return &MultipleWatch{
			Common:   common,
			Operator: "all",
			children: func(ctx *gctx.Context, cc *cache.Cache) ([]Watch, error) {
				merged := substituteBody(cloneMap(def), body)
				for k, v := range variables {
					ctx.SetVariable(k, v)
				}
				child, err := New(merged)
				if err != nil {
					return nil, err
				}
				mixHash := fmt.Sprint(variables)
				return []Watch{&hashMixedWatch{
					Watch: child,
					hash:  registry.UpdateHash(child.Hash(), []byte(mixHash)),
				}}, nil
			},
		}, nil
	})
}

// substituteBody walks def looking for the literal string "body" used
// as a value and replaces it with the caller-supplied body fragment.
func substituteBody(def map[string]interface{}, body map[string]interface{}) map[string]interface{} {
	for k, v := range def {
		switch vv := v.(type) {
		case string:
			if vv == "body" {
				def[k] = body
			}
		case map[string]interface{}:
			def[k] = substituteBody(cloneMap(vv), body)
		case []interface{}:
			out := make([]interface{}, len(vv))
			for i, entry := range vv {
				if m, ok := entry.(map[string]interface{}); ok {
					out[i] = substituteBody(cloneMap(m), body)
				} else {
					out[i] = entry
				}
			}
			def[k] = out
		}
	}
	return def
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
