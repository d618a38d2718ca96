package config

import (
	"testing"

	"github.com/ajxchapman/goswatch/internal/cache"
	gctx "github.com/ajxchapman/goswatch/internal/context"
	"github.com/ajxchapman/goswatch/internal/watch"
)

func TestBuildSkipsUnknownTypeNodeAndKeepsValidOnes(t *testing.T) {
	doc := &Document{
		Path: "inline.yml",
		Watch: []map[string]interface{}{
			{"type": "true", "comment": "good"},
			{"type": "not-a-real-watch-type"},
		},
	}

	prog, errs := Build([]*Document{doc})
	if len(prog.Watches) != 1 {
		t.Fatalf("expected one surviving watch, got %d", len(prog.Watches))
	}
	if len(errs) != 1 {
		t.Fatalf("expected one reported node error, got %d: %v", len(errs), errs)
	}
	if !IsConfigurationError(errs[0]) {
		t.Errorf("expected the unknown-type failure to classify as a ConfigurationError")
	}
}

func TestBuildRegistersTemplatesAcrossDocumentsBeforeConstruction(t *testing.T) {
	producer := &Document{
		Path: "templates.yml",
		Templates: map[string]map[string]interface{}{
			"greet": {"type": "true", "comment": "hello {{ name }}"},
		},
	}
	consumer := &Document{
		Path: "watches.yml",
		Watch: []map[string]interface{}{
			{
				"type":      "template",
				"template":  "greet",
				"variables": map[string]interface{}{"name": "world"},
			},
		},
	}

	prog, errs := Build([]*Document{consumer, producer})
	if len(errs) != 0 {
		t.Fatalf("unexpected node errors: %v", errs)
	}
	if len(prog.Watches) != 1 {
		t.Fatalf("expected the template watch to construct, got %d watches and errs %v", len(prog.Watches), errs)
	}
}

func TestRunOnceExecutesEveryNodeAndPushesVariables(t *testing.T) {
	prog := &Program{
		Variables: map[string]interface{}{"env": "test"},
	}
	w, err := watch.New(map[string]interface{}{"type": "true", "comment": "ran in {{ env }}"})
	if err != nil {
		t.Fatalf("construct watch: %v", err)
	}
	prog.Watches = append(prog.Watches, w)

	cc, err := cache.Open("", cache.WithEncryptionKey(nil))
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	defer cc.Close()

	errs := RunOnce(gctx.New(), cc, prog, nil, t.TempDir())
	if len(errs) != 0 {
		t.Fatalf("unexpected run errors: %v", errs)
	}
}
