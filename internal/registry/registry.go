// Package registry implements the open, tag-keyed factory used to realize
// polymorphic configuration nodes (watches, selectors, matches, actions)
// into typed objects with stable content-hash identity.
//
// Each base kind ("watch", "selector", "match", "action") owns its own
// tag space. Concrete types register themselves at package init time via
// Register; the registry never reflects over subclasses, per the
// redesign in SPEC_FULL.md §9 ("open polymorphism via subclass
// discovery").
package registry

import (
	"fmt"
	"sort"
)

// Loadable is implemented by every constructed node.
type Loadable interface {
	Tag() string
	Hash() string
}

// TypeDescriptor is what a concrete type registers for its tag.
type TypeDescriptor struct {
	Kind             string
	Tag              string
	DefaultKey       string          // shorthand `{tag: value}` binds value to this field
	Schema           Schema
	HashSkip         map[string]bool // fields excluded from the hash (e.g. "comment")
	TypeSkip         map[string]bool // keys that must not be treated as type discriminators
}

var descriptors = map[string]map[string]*TypeDescriptor{}

// Register adds a TypeDescriptor to its base kind's tag space. Call from
// an init() func in the concrete type's file.
func Register(d TypeDescriptor) {
	kind := descriptors[d.Kind]
	if kind == nil {
		kind = map[string]*TypeDescriptor{}
		descriptors[d.Kind] = kind
	}
	kind[d.Tag] = &d
}

// Tags returns every registered tag for kind, sorted, for CLI diagnostics.
func Tags(kind string) []string {
	out := make([]string, 0, len(descriptors[kind]))
	for tag := range descriptors[kind] {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Resolved is the output of resolving and coercing one configuration node.
type Resolved struct {
	Tag    string
	Fields map[string]interface{}
	Extra  map[string]interface{} // kwargs not declared by the schema
	Hash   string
}

// Resolve performs type resolution (explicit `type:` or shorthand first
// key), field coercion with schema defaults, reserved-key checks, and
// content hashing, for one kwargs map against kind's registered
// descriptors.
func Resolve(kind string, kwargs map[string]interface{}) (*Resolved, error) {
	kindDescriptors := descriptors[kind]
	if kindDescriptors == nil {
		return nil, &UnknownTypeError{Kind: kind, Tag: "<no types registered>"}
	}

	kwargs = cloneShallow(kwargs)

	tag, err := resolveTag(kind, kwargs, kindDescriptors)
	if err != nil {
		return nil, err
	}

	desc, ok := kindDescriptors[tag]
	if !ok {
		return nil, &UnknownTypeError{Kind: kind, Tag: tag}
	}

	fields := map[string]interface{}{}
	extra := map[string]interface{}{}

	for name, raw := range kwargs {
		if name == "type" || name == "kwargs" {
			continue
		}
		field, declared := desc.Schema[name]
		if !declared {
			extra[name] = raw
			continue
		}
		if field.Forbidden {
			return nil, &UnexpectedArgumentError{Kind: kind, Tag: tag, Field: name}
		}
		coerced, err := field.Coerce(raw)
		if err != nil {
			return nil, &UncastableArgumentError{Kind: kind, Tag: tag, Field: name, Err: err}
		}
		fields[name] = coerced
	}

	for name, field := range desc.Schema {
		if _, present := fields[name]; present {
			continue
		}
		if field.Forbidden {
			continue
		}
		if field.Default == nil {
			return nil, fmt.Errorf("registry: %s %q field %q has no default", kind, tag, name)
		}
		fields[name] = field.Default()
	}

	hash := HashFields(tag, fields, desc.HashSkip)

	return &Resolved{Tag: tag, Fields: fields, Extra: extra, Hash: hash}, nil
}

func resolveTag(kind string, kwargs map[string]interface{}, kindDescriptors map[string]*TypeDescriptor) (string, error) {
	if rawTag, ok := kwargs["type"]; ok {
		tag, ok := rawTag.(string)
		if !ok {
			return "", fmt.Errorf("registry: %s type must be a string, got %T", kind, rawTag)
		}
		delete(kwargs, "type")
		return tag, nil
	}

	// Shorthand: in sorted order, the first kwarg name that is a registered
	// tag and not reserved as a type-discrimination skip key is the tag;
	// its value binds to that subtype's default_key.
	for _, name := range sortedKeys(kwargs) {
		skip := false
		for _, desc := range kindDescriptors {
			if desc.TypeSkip[name] {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		desc, ok := kindDescriptors[name]
		if !ok {
			continue
		}
		value := kwargs[name]
		delete(kwargs, name)
		if desc.DefaultKey != "" {
			if !isEmptyValue(value) {
				kwargs[desc.DefaultKey] = value
			}
		}
		return name, nil
	}

	return "", &UnknownTypeError{Kind: kind, Tag: "<none supplied>"}
}

func isEmptyValue(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case map[string]interface{}:
		return len(val) == 0
	default:
		return false
	}
}

func cloneShallow(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Base is embedded by every concrete Loadable to satisfy Tag/Hash and to
// support UpdateHash for loop/template iteration mixing.
type Base struct {
	tag  string
	hash string
}

// NewBase constructs a Base from a Resolve result's tag and hash.
func NewBase(tag, hash string) Base {
	return Base{tag: tag, hash: hash}
}

func (b Base) Tag() string  { return b.tag }
func (b Base) Hash() string { return b.hash }

// UpdateHash folds extra bytes into the hash and returns the updated
// Base (Base is a value type; callers reassign).
func (b Base) UpdateHash(extra []byte) Base {
	return Base{tag: b.tag, hash: UpdateHash(b.hash, extra)}
}
