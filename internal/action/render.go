package action

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ajxchapman/goswatch/internal/cache"
	gctx "github.com/ajxchapman/goswatch/internal/context"
	"github.com/ajxchapman/goswatch/internal/registry"
)

var renderMu sync.Mutex

// renderAction implements `render`: append-or-replace (by `id`) entries
// into a pretty-printed JSON array file, sorted on every write.
type renderAction struct {
	registry.Base
	Name string
	Sort []string
}

func init() {
	register("render", registry.TypeDescriptor{
		DefaultKey: "name",
		Schema: registry.Schema{
			"name": registry.String(""),
			"sort": registry.Any(func() interface{} { return []string{} }),
		},
	}, func(r *registry.Resolved) (Action, error) {
		sortFields, _ := toStringSlice(r.Fields["sort"])
		return &renderAction{
			Base: registry.NewBase(r.Tag, r.Hash),
			Name: stringField(r.Fields, "name"),
			Sort: sortFields,
		}, nil
	})
}

func toStringSlice(v interface{}) ([]string, bool) {
	switch val := v.(type) {
	case []string:
		return val, true
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, e := range val {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func (a *renderAction) path(ctx *gctx.Context) string {
	dataPath, _ := ctx.GetVariable(dataPathVariable, ".").(string)
	return filepath.Join(dataPath, a.Name+".json")
}

func (a *renderAction) Report(ctx *gctx.Context, cc *cache.Cache, r Report) error {
	renderMu.Lock()
	defer renderMu.Unlock()

	path := a.path(ctx)
	entries, err := a.load(path)
	if err != nil {
		return err
	}

	id, _ := r.Data["id"].(string)
	replaced := false
	for i, e := range entries {
		if eid, _ := e["id"].(string); eid == id {
			entries[i] = r.Data
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, r.Data)
	}

	a.sortEntries(entries)
	return a.write(path, entries)
}

func (a *renderAction) Error(ctx *gctx.Context, cc *cache.Cache, f Failure) error {
	return nil
}

func (a *renderAction) load(path string) ([]map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("action render: read %q: %w", path, err)
	}
	var entries []map[string]interface{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("action render: parse %q: %w", path, err)
	}
	return entries, nil
}

func (a *renderAction) write(path string, entries []map[string]interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("action render: create directory for %q: %w", path, err)
	}
	encoded, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("action render: encode: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("action render: write %q: %w", path, err)
	}
	return nil
}

func (a *renderAction) sortEntries(entries []map[string]interface{}) {
	fields := a.Sort
	if len(fields) == 0 {
		fields = []string{"id"}
	}
	sort.Slice(entries, func(i, j int) bool {
		for _, f := range fields {
			vi := fmt.Sprint(entries[i][f])
			vj := fmt.Sprint(entries[j][f])
			if vi != vj {
				return vi < vj
			}
		}
		return false
	})
}
