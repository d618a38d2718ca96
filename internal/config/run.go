package config

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ajxchapman/goswatch/internal/action"
	"github.com/ajxchapman/goswatch/internal/cache"
	gctx "github.com/ajxchapman/goswatch/internal/context"
	"github.com/ajxchapman/goswatch/internal/watch"
)

// RunIDVariable is the context variable RunOnce sets to a fresh UUID
// for every pass, so a `comment`/`action_data` template (or a log line
// correlated against internal/history's ledger) can tag which run
// produced it.
const RunIDVariable = "run_id"

// RunOnce executes one pass over prog: config variables (plus
// dataPath, under action.DataPathVariable, for the `file`/`render`
// actions, and a fresh run id under RunIDVariable) are pushed into ctx,
// then before, watch, and after nodes each run as their own
// failure-isolated unit via watch.Execute. A runtime failure in one
// node (fetch, selector, match, cache) is reported in the returned
// slice and does not prevent the remaining nodes from running, per
// spec.md §7's per-watch isolation policy.
func RunOnce(ctx *gctx.Context, cc *cache.Cache, prog *Program, defaultActions []action.Action, dataPath string) []error {
	for k, v := range prog.Variables {
		ctx.SetVariable(k, v)
	}
	ctx.SetVariable(action.DataPathVariable, dataPath)
	ctx.SetVariable(RunIDVariable, uuid.NewString())

	var errs []error
	run := func(section string, watches []watch.Watch) {
		for _, w := range watches {
			if err := watch.Execute(w, ctx, cc, defaultActions); err != nil {
				errs = append(errs, fmt.Errorf("%s %s: %w", section, w.Hash(), err))
			}
		}
	}
	run("before", prog.Before)
	run("watch", prog.Watches)
	run("after", prog.After)
	return errs
}
