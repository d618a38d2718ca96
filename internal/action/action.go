// Package action implements the side-effect dispatch SPEC_FULL.md §5.6
// describes: what a Watch does when its Match fires (report) or when it
// fails outright (error).
package action

import (
	"fmt"

	"github.com/ajxchapman/goswatch/internal/cache"
	gctx "github.com/ajxchapman/goswatch/internal/context"
	"github.com/ajxchapman/goswatch/internal/registry"
)

// Kind is the registry kind actions are registered under.
const Kind = "action"

// Report is the payload an action's Report method receives on a
// successful, triggered watch.
type Report struct {
	Comment string
	Data    map[string]interface{}
}

// Failure is the payload an action's Error method receives when a
// watch fails outright.
type Failure struct {
	Err error
}

// Action is the common contract every concrete action type satisfies.
type Action interface {
	registry.Loadable
	Report(ctx *gctx.Context, cc *cache.Cache, r Report) error
	Error(ctx *gctx.Context, cc *cache.Cache, f Failure) error
}

var factories = map[string]func(*registry.Resolved) (Action, error){}

func register(tag string, desc registry.TypeDescriptor, build func(*registry.Resolved) (Action, error)) {
	desc.Kind = Kind
	desc.Tag = tag
	registry.Register(desc)
	factories[tag] = build
}

// New resolves kwargs against the action registry and constructs the
// concrete Action for it.
func New(kwargs map[string]interface{}) (Action, error) {
	resolved, err := registry.Resolve(Kind, kwargs)
	if err != nil {
		return nil, err
	}
	build, ok := factories[resolved.Tag]
	if !ok {
		return nil, fmt.Errorf("action: %q has a schema but no constructor registered", resolved.Tag)
	}
	return build(resolved)
}

func stringField(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}
