// Package watch implements the recursive execution engine SPEC_FULL.md
// §5.7 describes: the tree of DataWatch leaves and MultipleWatch
// compositors that walk a configuration, fetch data, transform it
// through selectors, test it against a match, and dispatch actions.
package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/ajxchapman/goswatch/internal/action"
	"github.com/ajxchapman/goswatch/internal/cache"
	gctx "github.com/ajxchapman/goswatch/internal/context"
	"github.com/ajxchapman/goswatch/internal/item"
	"github.com/ajxchapman/goswatch/internal/registry"
)

// Kind is the registry kind watches are registered under.
const Kind = "watch"

// ProcessResult is what every Watch's Process returns: whether it
// triggered, the comment tree to render on trigger (strings and nested
// []interface{} sub-lists, per renderComment), and the action-data
// records to report.
type ProcessResult struct {
	Trigger  bool
	Comments []interface{}
	Data     []map[string]interface{}
	// Items carries a DataWatch's post-selector items through a trigger,
	// so a `loop` compositor can iterate a generator DataWatch's output
	// without re-fetching it. Only populated on trigger; unused by most
	// callers.
	Items []item.Item
}

// Watch is the common contract every concrete watch type satisfies.
type Watch interface {
	registry.Loadable
	// Process implements the recursive process contract: push a frame,
	// run before-hooks, delegate to the subclass, always run
	// after-hooks, pop the frame.
	Process(ctx *gctx.Context, cc *cache.Cache) (ProcessResult, error)
}

// runner is implemented by every concrete watch: the subclass-specific
// step 3 of the process contract.
type runner interface {
	run(ctx *gctx.Context, cc *cache.Cache) (ProcessResult, error)
}

// Common holds the fields every Watch subclass shares and implements
// the recursive Process contract around an embedding type's run.
type Common struct {
	registry.Base
	Comment    string
	Before     []Watch
	After      []Watch
	ActionData map[string]interface{}
	Actions    []action.Action
}

// forceTriggerVar is set for the duration of a before-hook run so that
// every DataWatch reached through it treats itself as triggered
// without consulting its own match, per SPEC_FULL.md §4.7 ("Run before
// children with their match forcibly disabled").
const forceTriggerVar = "__force_trigger"

// Process implements SPEC_FULL.md §4.7's recursive process contract.
// self must be the concrete Watch embedding this Common, so its run
// method can be invoked.
func (c *Common) Process(self runner, ctx *gctx.Context, cc *cache.Cache) (ProcessResult, error) {
	ctx.PushFrame(c.Hash())
	ctx.PushVariable("hash", c.Hash())
	defer ctx.PopFrame(c.Hash())
	defer func() {
		for _, after := range c.After {
			if _, err := after.Process(ctx, cc); err != nil {
				action.Logger.Warnf("after-hook for %s: %v", c.Hash(), err)
			}
		}
	}()

	if len(c.Before) > 0 {
		prevForced := ctx.GetVariable(forceTriggerVar, false)
		ctx.SetVariable(forceTriggerVar, true)
		for _, before := range c.Before {
			if _, err := before.Process(ctx, cc); err != nil {
				ctx.SetVariable(forceTriggerVar, prevForced)
				return ProcessResult{}, fmt.Errorf("before-hook: %w", err)
			}
		}
		ctx.SetVariable(forceTriggerVar, prevForced)
	}

	result, runErr := self.run(ctx, cc)

	if runErr != nil {
		return ProcessResult{}, runErr
	}
	if !result.Trigger {
		return ProcessResult{}, nil
	}
	return result, nil
}

// renderComment flattens the nested comment tree into final text, per
// SPEC_FULL.md §4.7: two-space indent per nesting level, one line per
// string, sub-lists recursed into at a deeper indent, empty sub-renders
// skipped.
func renderComment(tree []interface{}, indent int) string {
	var lines []string
	prefix := strings.Repeat("  ", indent)
	for _, node := range tree {
		switch v := node.(type) {
		case string:
			if v == "" {
				continue
			}
			lines = append(lines, prefix+v)
		case []interface{}:
			rendered := renderComment(v, indent+1)
			if rendered != "" {
				lines = append(lines, rendered)
			}
		}
	}
	return strings.Join(lines, "\n")
}

// nestComment wraps children beneath a parent's own comment string, per
// SPEC_FULL.md §4.7 ("If own comment is set, the child comments are
// nested beneath it as a sub-list").
func nestComment(own string, children []interface{}) []interface{} {
	if own == "" {
		return children
	}
	if len(children) == 0 {
		return []interface{}{own}
	}
	return []interface{}{own, children}
}

// now is not read by Execute, which takes a run's starttime from the
// Context's StartTime.
var now = time.Now
