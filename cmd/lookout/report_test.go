package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ajxchapman/goswatch/internal/config"
)

func TestPrintFindReportIncludesEveryResult(t *testing.T) {
	results := []config.FindResult{
		{Path: "watches/site.yml", Kind: "watch", Tag: "url", Hash: "s:url:abc123"},
	}
	var buf bytes.Buffer
	if err := printFindReport(&buf, results); err != nil {
		t.Fatalf("printFindReport: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "watch:url") {
		t.Errorf("report %q missing kind:tag", out)
	}
	if !strings.Contains(out, "s:url:abc123") {
		t.Errorf("report %q missing hash", out)
	}
}

func TestPrintFindReportOnEmptyResultsProducesNoError(t *testing.T) {
	var buf bytes.Buffer
	if err := printFindReport(&buf, nil); err != nil {
		t.Fatalf("printFindReport: %v", err)
	}
}
