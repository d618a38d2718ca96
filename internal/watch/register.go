package watch

import (
	"fmt"

	"github.com/ajxchapman/goswatch/internal/action"
	"github.com/ajxchapman/goswatch/internal/registry"
)

var factories = map[string]func(*registry.Resolved) (Watch, error){}

// register installs a watch tag's descriptor and constructor. Every
// watch hash-skips `comment`, per spec.md §4.1's invariant that two
// watches differing only in commentary share a hash (and so share
// cache/match identity) — `version` deliberately does NOT hash-skip,
// so bumping it is the documented way to force a fresh identity
// without changing observable behavior.
func register(tag string, desc registry.TypeDescriptor, build func(*registry.Resolved) (Watch, error)) {
	desc.Kind = Kind
	desc.Tag = tag
	if desc.HashSkip == nil {
		desc.HashSkip = map[string]bool{}
	}
	desc.HashSkip["comment"] = true
	registry.Register(desc)
	factories[tag] = build
}

// New resolves kwargs against the watch registry and constructs the
// concrete Watch for it.
func New(kwargs map[string]interface{}) (Watch, error) {
	resolved, err := registry.Resolve(Kind, kwargs)
	if err != nil {
		return nil, err
	}
	build, ok := factories[resolved.Tag]
	if !ok {
		return nil, fmt.Errorf("watch: %q has a schema but no constructor registered", resolved.Tag)
	}
	return build(resolved)
}

func stringField(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

// commonSchema returns the fields every watch subclass's schema shares:
// comment plus the before/after hook lists, configured actions, and
// version (participates in the hash — see register's doc comment).
func commonSchema() registry.Schema {
	return registry.Schema{
		"comment": registry.String(""),
		"version": registry.Int(0),
		"before":  registry.Any(func() interface{} { return []interface{}{} }),
		"after":   registry.Any(func() interface{} { return []interface{}{} }),
		"actions": registry.Any(func() interface{} { return []interface{}{} }),
	}
}

// mergeSchema layers extra on top of commonSchema().
func mergeSchema(extra registry.Schema) registry.Schema {
	out := commonSchema()
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// buildCommon constructs the Common embed shared by every concrete
// watch, recursively instantiating its before/after hooks and actions.
func buildCommon(r *registry.Resolved) (Common, error) {
	before, err := buildWatchList(r.Fields["before"])
	if err != nil {
		return Common{}, fmt.Errorf("before: %w", err)
	}
	after, err := buildWatchList(r.Fields["after"])
	if err != nil {
		return Common{}, fmt.Errorf("after: %w", err)
	}
	actions, err := buildActionList(r.Fields["actions"])
	if err != nil {
		return Common{}, fmt.Errorf("actions: %w", err)
	}

	var actionData map[string]interface{}
	if m, ok := r.Fields["action_data"].(map[string]interface{}); ok && len(m) > 0 {
		actionData = m
	}

	return Common{
		Base:       registry.NewBase(r.Tag, r.Hash),
		Comment:    stringField(r.Fields, "comment"),
		Before:     before,
		After:      after,
		ActionData: actionData,
		Actions:    actions,
	}, nil
}

func buildWatchList(v interface{}) ([]Watch, error) {
	raw, _ := v.([]interface{})
	out := make([]Watch, 0, len(raw))
	for _, entry := range raw {
		kwargs, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		w, err := New(kwargs)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func buildActionList(v interface{}) ([]action.Action, error) {
	raw, _ := v.([]interface{})
	out := make([]action.Action, 0, len(raw))
	for _, entry := range raw {
		kwargs, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		a, err := action.New(kwargs)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
