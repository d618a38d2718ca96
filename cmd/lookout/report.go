package main

import (
	"io"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/ajxchapman/goswatch/internal/config"
)

// findReportTemplate renders one line per --find match. The path is
// truncated through sprig's `trunc` so a long, nested watches/ layout
// doesn't blow out the table width; `nindent 1` puts every result's hash
// on its own line, indented one space, after a blank line.
const findReportTemplate = `{{- range . }}{{ .Path | trunc 40 }}	{{ .Kind }}:{{ .Tag }}{{ "\n" }}{{ nindent 1 .Hash }}
{{ end -}}`

var findReport = template.Must(
	template.New("find").Funcs(sprig.TxtFuncMap()).Parse(findReportTemplate),
)

// printFindReport renders Find's results through findReport. This is
// the CLI's own reporting surface, kept separate from the Jinja-style
// `{{ }}` expansion internal/context provides watch authors — that one
// renders user-supplied comment/action_data templates at watch-process
// time, this one renders a fixed, built-in report at CLI time, so a
// second template engine (text/template, with sprig's broader function
// set) is the natural fit rather than routing CLI output through the
// engine meant for configuration authors.
func printFindReport(w io.Writer, results []config.FindResult) error {
	return findReport.Execute(w, results)
}
