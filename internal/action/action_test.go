package action

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	gctx "github.com/ajxchapman/goswatch/internal/context"
)

func ctxWithDataPath(t *testing.T) *gctx.Context {
	t.Helper()
	ctx := gctx.New()
	ctx.SetVariable(dataPathVariable, t.TempDir())
	return ctx
}

func TestFileActionAppendsLines(t *testing.T) {
	ctx := ctxWithDataPath(t)
	a, err := New(map[string]interface{}{"type": "file", "file": "out.log"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Report(ctx, nil, Report{Comment: "line one\nline two"}); err != nil {
		t.Fatalf("Report: %v", err)
	}

	dataPath, _ := ctx.GetVariable(dataPathVariable, "").(string)
	contents, err := os.ReadFile(filepath.Join(dataPath, "out.log"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "line one\nline two\n"
	if string(contents) != want {
		t.Errorf("file contents = %q, want %q", contents, want)
	}
}

func TestRenderActionUpsertsByID(t *testing.T) {
	ctx := ctxWithDataPath(t)
	a, err := New(map[string]interface{}{"type": "render", "name": "status"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := a.Report(ctx, nil, Report{Data: map[string]interface{}{"id": "b", "value": 1}}); err != nil {
		t.Fatalf("Report 1: %v", err)
	}
	if err := a.Report(ctx, nil, Report{Data: map[string]interface{}{"id": "a", "value": 2}}); err != nil {
		t.Fatalf("Report 2: %v", err)
	}
	if err := a.Report(ctx, nil, Report{Data: map[string]interface{}{"id": "b", "value": 3}}); err != nil {
		t.Fatalf("Report 3 (replace): %v", err)
	}

	dataPath, _ := ctx.GetVariable(dataPathVariable, "").(string)
	data, err := os.ReadFile(filepath.Join(dataPath, "status.json"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var entries []map[string]interface{}
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0]["id"] != "a" || entries[1]["id"] != "b" {
		t.Errorf("entries not sorted by id: %v", entries)
	}
	if entries[1]["value"].(float64) != 3 {
		t.Errorf("entry b not replaced, value = %v", entries[1]["value"])
	}
}

func TestSlackActionSubstitutesMessage(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	a, err := New(map[string]interface{}{"type": "slack", "url": server.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Report(ctxWithDataPath(t), nil, Report{Comment: `say "hi"`}); err != nil {
		t.Fatalf("Report: %v", err)
	}
	want := `{"text": "say \"hi\""}`
	if gotBody != want {
		t.Errorf("posted body = %q, want %q", gotBody, want)
	}
}
