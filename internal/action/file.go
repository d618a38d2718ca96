package action

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ajxchapman/goswatch/internal/cache"
	gctx "github.com/ajxchapman/goswatch/internal/context"
	"github.com/ajxchapman/goswatch/internal/registry"
)

// DataPathVariable is the process-scope context variable the CLI driver
// sets to the run's `--data-path`. Kept out of the Action's own schema
// so the same file action config works unmodified across runs rooted
// at different data paths.
const DataPathVariable = "data_path"

const dataPathVariable = DataPathVariable

// fileHandles deduplicates writers across Watches that share a target
// filename, per SPEC_FULL.md §5.6 ("one handler per distinct file").
var (
	fileHandlesMu sync.Mutex
	fileHandles   = map[string]*os.File{}
)

func openFileHandle(path string) (*os.File, error) {
	fileHandlesMu.Lock()
	defer fileHandlesMu.Unlock()

	if f, ok := fileHandles[path]; ok {
		return f, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("action file: create directory for %q: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("action file: open %q: %w", path, err)
	}
	fileHandles[path] = f
	return f, nil
}

// fileAction implements `file`: append the comment, one line at a time,
// to <data_path>/<file>.
type fileAction struct {
	registry.Base
	Name string
}

func init() {
	register("file", registry.TypeDescriptor{
		DefaultKey: "file",
		Schema: registry.Schema{
			"file": registry.String(""),
		},
	}, func(r *registry.Resolved) (Action, error) {
		return &fileAction{Base: registry.NewBase(r.Tag, r.Hash), Name: stringField(r.Fields, "file")}, nil
	})
}

func (a *fileAction) resolvePath(ctx *gctx.Context) string {
	dataPath, _ := ctx.GetVariable(dataPathVariable, ".").(string)
	return filepath.Join(dataPath, a.Name)
}

func (a *fileAction) Report(ctx *gctx.Context, cc *cache.Cache, r Report) error {
	f, err := openFileHandle(a.resolvePath(ctx))
	if err != nil {
		return err
	}
	for _, line := range strings.Split(r.Comment, "\n") {
		if _, err := fmt.Fprintln(f, line); err != nil {
			return fmt.Errorf("action file: write: %w", err)
		}
	}
	return nil
}

func (a *fileAction) Error(ctx *gctx.Context, cc *cache.Cache, f Failure) error {
	handle, err := openFileHandle(a.resolvePath(ctx))
	if err != nil {
		return err
	}
	_, werr := fmt.Fprintln(handle, f.Err.Error())
	return werr
}
