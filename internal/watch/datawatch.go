package watch

import (
	"fmt"

	"github.com/ajxchapman/goswatch/internal/cache"
	gctx "github.com/ajxchapman/goswatch/internal/context"
	"github.com/ajxchapman/goswatch/internal/item"
	"github.com/ajxchapman/goswatch/internal/match"
	"github.com/ajxchapman/goswatch/internal/registry"
	"github.com/ajxchapman/goswatch/internal/selector"
)

// fetcher is implemented by each DataWatch leaf: render its own
// templated fields against ctx, then produce its raw data.
type fetcher interface {
	fetchData(ctx *gctx.Context, cc *cache.Cache) ([][]byte, error)
}

// DataWatch is the shared leaf-watch algorithm from SPEC_FULL.md §4.7:
// fetch raw data, run it through the selector pipeline, evaluate match,
// and report.
type DataWatch struct {
	Common
	Store     string
	Selectors []selector.Selector
	Match     match.Match
	Fetch     fetcher
}

func (w *DataWatch) Process(ctx *gctx.Context, cc *cache.Cache) (ProcessResult, error) {
	return w.Common.Process(w, ctx, cc)
}

func (w *DataWatch) run(ctx *gctx.Context, cc *cache.Cache) (ProcessResult, error) {
	raw, err := w.Fetch.fetchData(ctx, cc)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("watch %s: fetch: %w", w.Hash(), err)
	}

	items := make([]item.Item, len(raw))
	for i, v := range raw {
		items[i] = item.New(v)
	}

	for _, sel := range w.Selectors {
		items, err = selector.Execute(sel, ctx, cc, items)
		if err != nil {
			return ProcessResult{}, fmt.Errorf("watch %s: selector: %w", w.Hash(), err)
		}
	}

	ctx.PushVariable(w.Hash(), items)
	ctx.PushVariable("data", items)
	if w.Store != "" {
		ctx.PushVariable(w.Store, items)
	}

	forced, _ := ctx.GetVariable(forceTriggerVar, false).(bool)
	triggered := forced
	if !forced {
		m := w.Match
		if m == nil {
			var err error
			m, err = match.New(nil)
			if err != nil {
				return ProcessResult{}, err
			}
		}
		var err error
		triggered, err = m.Evaluate(ctx, cc, items)
		if err != nil {
			return ProcessResult{}, fmt.Errorf("watch %s: match: %w", w.Hash(), err)
		}
	}
	if !triggered {
		return ProcessResult{}, nil
	}

	var comments []interface{}
	if w.Comment != "" {
		rendered, err := ctx.ExpandString(w.Comment)
		if err != nil {
			return ProcessResult{}, err
		}
		comments = []interface{}{rendered}
	}

	var data []map[string]interface{}
	if w.ActionData != nil {
		expanded, err := ctx.Expand(w.ActionData)
		if err != nil {
			return ProcessResult{}, err
		}
		record, _ := expanded.(map[string]interface{})
		if record == nil {
			record = map[string]interface{}{}
		}
		record["id"] = w.Hash()
		record["executed"] = ctx.StartTime.Unix()
		data = []map[string]interface{}{record}
	}

	return ProcessResult{Trigger: true, Comments: comments, Data: data, Items: items}, nil
}

// dataWatchSchema returns the fields every DataWatch subclass's
// registered schema shares on top of commonSchema().
func dataWatchSchema() registry.Schema {
	return mergeSchema(registry.Schema{
		"store":       registry.String(""),
		"action_data": registry.Any(func() interface{} { return map[string]interface{}{} }),
		"selectors":   registry.Any(func() interface{} { return []interface{}{} }),
		"match":       registry.Any(func() interface{} { return map[string]interface{}{} }),
	})
}

// buildDataWatchSelectorsAndMatch extracts and constructs the selectors
// pipeline and match predicate shared by every DataWatch subclass.
func buildDataWatchSelectorsAndMatch(r *registry.Resolved) ([]selector.Selector, match.Match, error) {
	raw, _ := r.Fields["selectors"].([]interface{})
	selectors := make([]selector.Selector, 0, len(raw))
	for _, entry := range raw {
		kwargs, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		sel, err := selector.New(kwargs)
		if err != nil {
			return nil, nil, err
		}
		selectors = append(selectors, sel)
	}

	var m match.Match
	if kwargs, ok := r.Fields["match"].(map[string]interface{}); ok && len(kwargs) > 0 {
		var err error
		m, err = match.New(kwargs)
		if err != nil {
			return nil, nil, err
		}
	}

	return selectors, m, nil
}
