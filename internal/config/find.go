package config

import (
	"github.com/ajxchapman/goswatch/internal/action"
	"github.com/ajxchapman/goswatch/internal/match"
	"github.com/ajxchapman/goswatch/internal/registry"
	"github.com/ajxchapman/goswatch/internal/selector"
	"github.com/ajxchapman/goswatch/internal/watch"
)

// FindResult identifies one node in a loaded configuration whose
// constructed hash matches a `--find` query.
type FindResult struct {
	Path string
	Kind string
	Tag  string
	Hash string
}

// Find walks every document's raw node tree (before/watch/after/templates)
// looking for any node whose hash equals want. A node may construct as
// more than one kind (e.g. a bare kwargs map could resolve as both a
// watch and an action schema); every kind that resolves and matches is
// reported. Recursion is unconditional and generic: every nested map or
// list under a matching (or non-matching) node is still walked, since a
// node's own kwargs already hold every place a child node can live
// (`selectors`, `match`, `actions`, `group`, `loop.do`,
// `conditional.then`/`else`, `template.body`, and so on) without this
// code needing to know each field by name.
func Find(docs []*Document, want string) []FindResult {
	var out []FindResult
	for _, doc := range docs {
		for _, kwargs := range doc.Before {
			walkNode(doc.Path, kwargs, want, &out)
		}
		for _, kwargs := range doc.Watch {
			walkNode(doc.Path, kwargs, want, &out)
		}
		for _, kwargs := range doc.After {
			walkNode(doc.Path, kwargs, want, &out)
		}
		for _, kwargs := range doc.Templates {
			walkNode(doc.Path, kwargs, want, &out)
		}
	}
	return out
}

func walkNode(path string, node map[string]interface{}, want string, out *[]FindResult) {
	tryConstruct(path, node, want, out)
	for _, v := range node {
		walkValue(path, v, want, out)
	}
}

func walkValue(path string, v interface{}, want string, out *[]FindResult) {
	switch val := v.(type) {
	case map[string]interface{}:
		walkNode(path, val, want, out)
	case []interface{}:
		for _, entry := range val {
			walkValue(path, entry, want, out)
		}
	}
}

// tryConstruct attempts to build node as every registered kind in turn,
// recording any that succeed and whose resulting hash equals want.
func tryConstruct(path string, node map[string]interface{}, want string, out *[]FindResult) {
	if w, err := watch.New(node); err == nil {
		record(path, watch.Kind, w, want, out)
	}
	if s, err := selector.New(node); err == nil {
		record(path, selector.Kind, s, want, out)
	}
	if m, err := match.New(node); err == nil {
		record(path, match.Kind, m, want, out)
	}
	if a, err := action.New(node); err == nil {
		record(path, action.Kind, a, want, out)
	}
}

func record(path, kind string, loaded registry.Loadable, want string, out *[]FindResult) {
	if loaded.Hash() != want {
		return
	}
	*out = append(*out, FindResult{Path: path, Kind: kind, Tag: loaded.Tag(), Hash: loaded.Hash()})
}
