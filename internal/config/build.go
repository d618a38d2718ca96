package config

import (
	"fmt"

	"github.com/ajxchapman/goswatch/internal/action"
	"github.com/ajxchapman/goswatch/internal/watch"
)

// Program is the fully-constructed result of Build: every before/watch/after
// node across every loaded Document, plus their merged variables.
type Program struct {
	Before    []watch.Watch
	Watches   []watch.Watch
	After     []watch.Watch
	Variables map[string]interface{}
}

// NodeError identifies which document and section a node-construction
// error came from, so the driver can report and skip just that node per
// spec.md §7's ConfigurationError handling.
type NodeError struct {
	Path    string
	Section string
	Index   int
	Err     error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("%s: %s[%d]: %v", e.Path, e.Section, e.Index, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// Build constructs a Program from a set of loaded Documents. Templates
// from every document are registered before any watch is constructed, so
// a `template` watch may reference a template declared in another file
// regardless of load order. A node that fails to construct (an unknown
// type, a bad argument, an unregistered template, ...) is skipped and
// reported as a *NodeError rather than aborting the whole load.
func Build(docs []*Document) (*Program, []error) {
	prog := &Program{Variables: map[string]interface{}{}}

	for _, doc := range docs {
		for name, def := range doc.Templates {
			watch.RegisterTemplate(name, def)
		}
	}
	for _, doc := range docs {
		for k, v := range doc.Variables {
			prog.Variables[k] = v
		}
	}

	var errs []error
	for _, doc := range docs {
		prog.Before = append(prog.Before, buildNodes(doc.Path, "before", doc.Before, &errs)...)
		prog.Watches = append(prog.Watches, buildNodes(doc.Path, "watch", doc.Watch, &errs)...)
		prog.After = append(prog.After, buildNodes(doc.Path, "after", doc.After, &errs)...)
	}
	return prog, errs
}

func buildNodes(path, section string, kwargsList []map[string]interface{}, errs *[]error) []watch.Watch {
	out := make([]watch.Watch, 0, len(kwargsList))
	for i, kwargs := range kwargsList {
		w, err := watch.New(kwargs)
		if err != nil {
			*errs = append(*errs, &NodeError{Path: path, Section: section, Index: i, Err: err})
			continue
		}
		out = append(out, w)
	}
	return out
}

// DefaultActions constructs the configuration-wide default action list
// from the `config.default_actions` key any document may declare. Later
// documents' defaults are appended after earlier ones, same as watch
// nodes from multiple files accumulate.
func DefaultActions(docs []*Document) ([]action.Action, []error) {
	var actions []action.Action
	var errs []error
	for _, doc := range docs {
		raw, _ := doc.Config["default_actions"].([]interface{})
		for i, entry := range raw {
			kwargs, ok := entry.(map[string]interface{})
			if !ok {
				continue
			}
			a, err := action.New(kwargs)
			if err != nil {
				errs = append(errs, &NodeError{Path: doc.Path, Section: "config.default_actions", Index: i, Err: err})
				continue
			}
			actions = append(actions, a)
		}
	}
	return actions, errs
}
