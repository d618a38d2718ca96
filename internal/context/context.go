// Package context implements the frame-stacked variable scope used by the
// watch execution engine, plus the Jinja-style string template expansion
// described in SPEC_FULL.md §6.
package context

import (
	"fmt"
	"sort"
	"time"
)

// frame is one pushed scope: a stack of values per variable name. Multiple
// pushes of the same name shadow the earlier value until popped.
type frame struct {
	id   string
	vars map[string][]interface{}
}

// Context is a stack of frames plus a process-wide scope that survives
// frame pushes and pops. One Context is created per root Watch execution
// (or per watch-file) and disposed at the end of the run.
type Context struct {
	frames    []*frame
	process   map[string]interface{}
	StartTime time.Time
}

// New creates an empty Context.
func New() *Context {
	return &Context{
		process:   map[string]interface{}{},
		StartTime: time.Now(),
	}
}

// ErrFrameMismatch is returned by PopFrame when the id does not match the
// top frame, signaling a push/pop misnest.
type ErrFrameMismatch struct {
	Expected string
	Got      string
}

func (e *ErrFrameMismatch) Error() string {
	return fmt.Sprintf("context: frame mismatch: top frame is %q, popped %q", e.Expected, e.Got)
}

// PushFrame pushes a new empty frame identified by id.
func (c *Context) PushFrame(id string) {
	c.frames = append(c.frames, &frame{id: id, vars: map[string][]interface{}{}})
}

// PopFrame pops the top frame, asserting its id matches. Returns
// *ErrFrameMismatch on a misnest (the frame is popped regardless, so the
// stack never grows unboundedly from a caller that ignores the error).
func (c *Context) PopFrame(id string) error {
	if len(c.frames) == 0 {
		return &ErrFrameMismatch{Expected: "<empty>", Got: id}
	}
	top := c.frames[len(c.frames)-1]
	c.frames = c.frames[:len(c.frames)-1]
	if top.id != id {
		return &ErrFrameMismatch{Expected: top.id, Got: id}
	}
	return nil
}

// Depth reports how many frames are currently pushed, for tests that
// assert frame balance.
func (c *Context) Depth() int {
	return len(c.frames)
}

// PushVariable pushes value onto name's stack within the current (top)
// frame. If no frame is pushed yet, an implicit anonymous frame is
// created first, so standalone callers (tests, the top-level config
// evaluator) don't need to bracket every call with PushFrame.
func (c *Context) PushVariable(name string, value interface{}) {
	top := c.top()
	top.vars[name] = append(top.vars[name], value)
}

// PopVariable pops the most recent value of name from the current frame.
func (c *Context) PopVariable(name string) (interface{}, error) {
	top := c.top()
	stack := top.vars[name]
	if len(stack) == 0 {
		return nil, fmt.Errorf("context: pop of empty variable %q in frame %q", name, top.id)
	}
	value := stack[len(stack)-1]
	top.vars[name] = stack[:len(stack)-1]
	return value, nil
}

// SetVariable writes to the process-scope map, independent of frames.
func (c *Context) SetVariable(name string, value interface{}) {
	c.process[name] = value
}

// GetVariable scans frames top-down for the most recently pushed value
// of name, falling back to the process scope, then def.
func (c *Context) GetVariable(name string, def interface{}) interface{} {
	for i := len(c.frames) - 1; i >= 0; i-- {
		stack := c.frames[i].vars[name]
		if len(stack) > 0 {
			return stack[len(stack)-1]
		}
	}
	if v, ok := c.process[name]; ok {
		return v
	}
	return def
}

// Keys returns the union of every variable name reachable in any frame or
// in the process scope.
func (c *Context) Keys() []string {
	seen := map[string]bool{}
	for _, f := range c.frames {
		for name, stack := range f.vars {
			if len(stack) > 0 {
				seen[name] = true
			}
		}
	}
	for name := range c.process {
		seen[name] = true
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Context) top() *frame {
	if len(c.frames) == 0 {
		c.PushFrame("")
	}
	return c.frames[len(c.frames)-1]
}

// snapshot materializes every reachable variable into a flat map for
// handing to the template engine.
func (c *Context) snapshot() map[string]interface{} {
	out := map[string]interface{}{
		"unixtime": c.StartTime.Unix(),
	}
	for _, key := range c.Keys() {
		out[key] = c.GetVariable(key, nil)
	}
	return out
}
