package watch

import (
	"fmt"

	"github.com/ajxchapman/goswatch/internal/action"
	"github.com/ajxchapman/goswatch/internal/cache"
	gctx "github.com/ajxchapman/goswatch/internal/context"
)

// failureThresholds are the consecutive-failure counts at which a
// distinct action.Error dispatch fires, per SPEC_FULL.md §4.7.
var failureThresholds = []int{3, 10, 25, 50}

func hashKey(hash, suffix string) string {
	return fmt.Sprintf("%s-%s", hash, suffix)
}

// Execute runs a root watch to completion: it records the run in the
// cache, dispatches the configured actions (merged with defaultActions)
// on trigger, and tracks consecutive failures, escalating to
// action.Error dispatch at each threshold crossing.
func Execute(w Watch, ctx *gctx.Context, cc *cache.Cache, defaultActions []action.Action) error {
	hash := w.Hash()
	starttime := ctx.StartTime.Unix()

	actions := mergeActions(actionsOf(w), defaultActions)

	if cc != nil {
		if err := cc.PutEntry(hashKey(hash, "executed"), starttime); err != nil {
			return fmt.Errorf("watch %s: record execution: %w", hash, err)
		}
	}

	result, runErr := w.Process(ctx, cc)
	if runErr != nil {
		return recordFailure(ctx, cc, hash, actions, runErr)
	}

	if cc != nil {
		if err := cc.PutEntry(hashKey(hash, "failures"), 0); err != nil {
			return fmt.Errorf("watch %s: reset failure count: %w", hash, err)
		}
	}

	if !result.Trigger {
		return nil
	}

	if cc != nil {
		if err := cc.PutEntry(hashKey(hash, "triggered"), starttime); err != nil {
			return fmt.Errorf("watch %s: record trigger: %w", hash, err)
		}
	}

	comment := renderComment(result.Comments, 0)
	return dispatchReport(ctx, cc, actions, comment, result.Data)
}

// actionsOf extracts the Actions configured directly on w, if it
// embeds Common (every concrete Watch does).
func actionsOf(w Watch) []action.Action {
	type hasActions interface {
		actions() []action.Action
	}
	if a, ok := w.(hasActions); ok {
		return a.actions()
	}
	return nil
}

func (c *Common) actions() []action.Action {
	return c.Actions
}

// mergeActions concatenates a watch's own actions with the
// configuration's default_actions, in that order.
func mergeActions(own, defaults []action.Action) []action.Action {
	if len(own) == 0 {
		return defaults
	}
	if len(defaults) == 0 {
		return own
	}
	out := make([]action.Action, 0, len(own)+len(defaults))
	out = append(out, own...)
	out = append(out, defaults...)
	return out
}

func dispatchReport(ctx *gctx.Context, cc *cache.Cache, actions []action.Action, comment string, data []map[string]interface{}) error {
	if len(data) == 0 {
		data = []map[string]interface{}{nil}
	}
	for _, record := range data {
		for _, a := range actions {
			if err := a.Report(ctx, cc, action.Report{Comment: comment, Data: record}); err != nil {
				return fmt.Errorf("action %s: report: %w", a.Tag(), err)
			}
		}
	}
	return nil
}

// recordFailure increments the watch's consecutive-failure counter and
// dispatches action.Error at each threshold crossing in
// failureThresholds.
func recordFailure(ctx *gctx.Context, cc *cache.Cache, hash string, actions []action.Action, runErr error) error {
	if cc == nil {
		return runErr
	}

	key := hashKey(hash, "failures")
	raw, err := cc.GetEntry(key, 0)
	if err != nil {
		return fmt.Errorf("watch %s: read failure count: %w", hash, err)
	}
	count := toInt(raw) + 1
	if err := cc.PutEntry(key, count); err != nil {
		return fmt.Errorf("watch %s: write failure count: %w", hash, err)
	}

	for _, threshold := range failureThresholds {
		if count == threshold {
			for _, a := range actions {
				if dispatchErr := a.Error(ctx, cc, action.Failure{Err: fmt.Errorf("watch %s failed %d consecutive times: %w", hash, count, runErr)}); dispatchErr != nil {
					action.Logger.Warnf("action %s: error dispatch: %v", a.Tag(), dispatchErr)
				}
			}
			break
		}
	}

	return runErr
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
