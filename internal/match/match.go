// Package match implements the boolean predicates SPEC_FULL.md §5.5
// describes: a Watch fires its actions only when its Match evaluates
// true over the items its selector pipeline produced.
package match

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ajxchapman/goswatch/internal/cache"
	gctx "github.com/ajxchapman/goswatch/internal/context"
	"github.com/ajxchapman/goswatch/internal/item"
	"github.com/ajxchapman/goswatch/internal/registry"
	"github.com/ajxchapman/goswatch/internal/selector"
)

// DiffVar names the context variable a `cache` Match with `diff: true`
// pushes its rendered diff text into, for a Watch's comment/action_data
// templates to reference as `{{ diff }}`. Only set when a previous
// value existed to diff against.
const DiffVar = "diff"

// Kind is the registry kind matches are registered under.
const Kind = "match"

// Match is the common contract every concrete match type satisfies.
type Match interface {
	registry.Loadable
	Evaluate(ctx *gctx.Context, cc *cache.Cache, items []item.Item) (bool, error)
}

var factories = map[string]func(*registry.Resolved) (Match, error){}

func register(tag string, desc registry.TypeDescriptor, build func(*registry.Resolved) (Match, error)) {
	desc.Kind = Kind
	desc.Tag = tag
	registry.Register(desc)
	factories[tag] = build
}

// New resolves kwargs against the match registry and constructs the
// concrete Match for it. A nil/empty kwargs map (no `match:` block in
// configuration) resolves to the "none" default per the Open Question
// in SPEC_FULL.md §9: accept-non-empty.
func New(kwargs map[string]interface{}) (Match, error) {
	if len(kwargs) == 0 {
		kwargs = map[string]interface{}{"type": "none"}
	}
	resolved, err := registry.Resolve(Kind, kwargs)
	if err != nil {
		return nil, err
	}
	build, ok := factories[resolved.Tag]
	if !ok {
		return nil, fmt.Errorf("match: %q has a schema but no constructor registered", resolved.Tag)
	}
	return build(resolved)
}

func stringField(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

// noneMatch implements `none` (and the default when no match is
// configured): accept any non-empty result, matching the "accept-non-
// empty" resolution SPEC_FULL.md records for this Open Question.
type noneMatch struct {
	registry.Base
}

func init() {
	register("none", registry.TypeDescriptor{
		Schema: registry.Schema{},
	}, func(r *registry.Resolved) (Match, error) {
		return &noneMatch{Base: registry.NewBase(r.Tag, r.Hash)}, nil
	})
}

func (m *noneMatch) Evaluate(ctx *gctx.Context, cc *cache.Cache, items []item.Item) (bool, error) {
	return len(items) > 0, nil
}

// cacheMatch implements `cache`: first-time/changed detection keyed by
// an expanded or hash-derived cache key. With `diff: true` the entry
// holds the last-seen value rather than a bare sentinel, so a change in
// content (not just a fresh key) also triggers, and the rendered
// line diff against the prior value is made available to the
// triggering Watch's templates via DiffVar.
type cacheMatch struct {
	registry.Base
	Key   string
	Empty bool
	Diff  bool
}

func init() {
	register("cache", registry.TypeDescriptor{
		Schema: registry.Schema{
			"key":   registry.String(""),
			"empty": registry.Bool(false),
			"diff":  registry.Bool(false),
		},
	}, func(r *registry.Resolved) (Match, error) {
		return &cacheMatch{
			Base:  registry.NewBase(r.Tag, r.Hash),
			Key:   stringField(r.Fields, "key"),
			Empty: r.Fields["empty"].(bool),
			Diff:  r.Fields["diff"].(bool),
		}, nil
	})
}

func (m *cacheMatch) Evaluate(ctx *gctx.Context, cc *cache.Cache, items []item.Item) (bool, error) {
	if len(items) == 0 && !m.Empty {
		return false, nil
	}
	if cc == nil {
		return false, fmt.Errorf("match cache: no cache available in this context")
	}

	key := m.Key
	var err error
	if key != "" {
		key, err = ctx.ExpandString(key)
		if err != nil {
			return false, err
		}
	} else {
		key = fmt.Sprintf("%s-match", m.Hash())
	}

	if !m.Diff {
		has, err := cc.HasEntry(key)
		if err != nil {
			return false, err
		}
		if has {
			return false, nil
		}
		if err := cc.PutEntry(key, true); err != nil {
			return false, err
		}
		return true, nil
	}

	newValue := joinItemValues(items)
	rawPrev, err := cc.GetEntry(key, nil)
	if err != nil {
		return false, err
	}
	if err := cc.PutEntry(key, string(newValue)); err != nil {
		return false, err
	}

	prev, hadPrev := rawPrev.(string)
	if !hadPrev {
		return true, nil
	}
	if prev == string(newValue) {
		return false, nil
	}
	ctx.PushVariable(DiffVar, selector.DiffText([]byte(prev), newValue))
	return true, nil
}

// joinItemValues concatenates every item's Value with a newline
// separator, giving cache diffing a single comparable byte string.
func joinItemValues(items []item.Item) []byte {
	var out []byte
	for i, it := range items {
		if i > 0 {
			out = append(out, '\n')
		}
		out = append(out, it.Value...)
	}
	return out
}

// condOperators maps every accepted operator spelling to its
// canonical form.
var condOperators = map[string]string{
	"eq": "eq", "==": "eq",
	"neq": "neq", "!=": "neq",
	"lt": "lt", "<": "lt",
	"lte": "lte", "<=": "lte",
	"gt": "gt", ">": "gt",
	"gte": "gte", ">=": "gte",
}

// condMatch implements `cond`: a relational comparison between a
// templated comparitor and a templated value, with an optional
// shorthand grammar (`"<op> <rhs>"`) packed into the value field.
type condMatch struct {
	registry.Base
	Operator   string
	Value      string
	Comparitor string
}

func init() {
	register("cond", registry.TypeDescriptor{
		DefaultKey: "value",
		Schema: registry.Schema{
			"operator":   registry.String(""),
			"value":      registry.String(""),
			"comparitor": registry.String("{{ data }}"),
		},
	}, func(r *registry.Resolved) (Match, error) {
		operator := stringField(r.Fields, "operator")
		value := stringField(r.Fields, "value")
		comparitor := stringField(r.Fields, "comparitor")

		if operator == "" {
			if cmp, op, rest, ok := parseShorthand(value); ok {
				operator = op
				value = rest
				if cmp != "" {
					comparitor = cmp
				}
			}
		}

		canon, ok := condOperators[operator]
		if !ok {
			return nil, fmt.Errorf("match cond: unknown operator %q", operator)
		}

		return &condMatch{
			Base:       registry.NewBase(r.Tag, r.Hash),
			Operator:   canon,
			Value:      value,
			Comparitor: comparitor,
		}, nil
	})
}

// parseShorthand parses the `cond` shorthand condition grammar: either
// "<op> <rhs>" (compared against the default {{ data }} comparitor), or
// "<comparitor> <op> <rhs>" (e.g. "1 eq 1") which also overrides the
// comparitor. The 3-token form is tried first so a static comparitor
// isn't mistaken for part of the rhs. Returns ok=false if no token in
// the operator position is a recognized operator.
func parseShorthand(value string) (comparitor, op, rest string, ok bool) {
	trimmed := strings.TrimSpace(value)
	if parts := strings.SplitN(trimmed, " ", 3); len(parts) == 3 {
		if _, known := condOperators[parts[1]]; known {
			return parts[0], parts[1], strings.TrimSpace(parts[2]), true
		}
	}
	if parts := strings.SplitN(trimmed, " ", 2); len(parts) == 2 {
		if _, known := condOperators[parts[0]]; known {
			return "", parts[0], strings.TrimSpace(parts[1]), true
		}
	}
	return "", "", "", false
}

func (m *condMatch) Evaluate(ctx *gctx.Context, cc *cache.Cache, items []item.Item) (bool, error) {
	if len(items) != 1 {
		return false, fmt.Errorf("match cond: expected exactly one item, got %d", len(items))
	}

	ctx.PushFrame("cond")
	ctx.PushVariable("data", string(items[0].Value))
	comparitor, err := ctx.ExpandString(m.Comparitor)
	var value string
	if err == nil {
		value, err = ctx.ExpandString(m.Value)
	}
	if popErr := ctx.PopFrame("cond"); popErr != nil && err == nil {
		err = popErr
	}
	if err != nil {
		return false, err
	}

	switch m.Operator {
	case "eq":
		return comparitor == value, nil
	case "neq":
		return comparitor != value, nil
	default:
		lhs, err := strconv.Atoi(strings.TrimSpace(comparitor))
		if err != nil {
			return false, fmt.Errorf("match cond: comparitor %q is not an integer", comparitor)
		}
		rhs, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return false, fmt.Errorf("match cond: value %q is not an integer", value)
		}
		switch m.Operator {
		case "lt":
			return lhs < rhs, nil
		case "lte":
			return lhs <= rhs, nil
		case "gt":
			return lhs > rhs, nil
		case "gte":
			return lhs >= rhs, nil
		default:
			return false, fmt.Errorf("match cond: unknown operator %q", m.Operator)
		}
	}
}
