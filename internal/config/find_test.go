package config

import (
	"testing"

	"github.com/ajxchapman/goswatch/internal/watch"
)

func TestFindLocatesTopLevelAndNestedNodesByHash(t *testing.T) {
	nested := map[string]interface{}{"type": "true", "comment": "inner"}
	nestedWatch, err := watch.New(nested)
	if err != nil {
		t.Fatalf("construct nested watch: %v", err)
	}

	doc := &Document{
		Path: "inline.yml",
		Watch: []map[string]interface{}{
			{
				"type":     "group",
				"operator": "all",
				"group":    []interface{}{nested},
			},
		},
	}

	results := Find([]*Document{doc}, nestedWatch.Hash())
	if len(results) == 0 {
		t.Fatalf("expected Find to locate the nested group child by hash")
	}
	found := false
	for _, r := range results {
		if r.Kind == watch.Kind && r.Tag == "true" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a watch-kind match with tag %q, got %v", "true", results)
	}
}

func TestFindReturnsNothingForAnUnknownHash(t *testing.T) {
	doc := &Document{
		Path:  "inline.yml",
		Watch: []map[string]interface{}{{"type": "true"}},
	}
	results := Find([]*Document{doc}, "s:nonexistent-hash")
	if len(results) != 0 {
		t.Errorf("expected no matches, got %v", results)
	}
}
