package context

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
)

var registerFiltersOnce sync.Once

// registerFilters installs the filters SPEC_FULL.md §6 requires beyond
// pongo2's built-ins ("default" ships with pongo2 already). json,
// b64encode and b64decode do not, so they're added once per process.
func registerFilters() {
	registerFiltersOnce.Do(func() {
		_ = pongo2.RegisterFilter("json", filterJSON)
		_ = pongo2.RegisterFilter("b64encode", filterB64Encode)
		_ = pongo2.RegisterFilter("b64decode", filterB64Decode)
	})
}

func filterJSON(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	var parsed interface{}
	if err := json.Unmarshal([]byte(in.String()), &parsed); err != nil {
		return nil, &pongo2.Error{Sender: "filter:json", OrigError: err}
	}
	return pongo2.AsValue(parsed), nil
}

func filterB64Encode(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	return pongo2.AsValue(base64.StdEncoding.EncodeToString([]byte(in.String()))), nil
}

func filterB64Decode(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	decoded, err := base64.StdEncoding.DecodeString(in.String())
	if err != nil {
		return nil, &pongo2.Error{Sender: "filter:b64decode", OrigError: err}
	}
	return pongo2.AsValue(string(decoded)), nil
}

// isTemplateString reports whether s should be rendered as a template:
// any string containing a literal `{`.
func isTemplateString(s string) bool {
	return strings.Contains(s, "{")
}

// Expand renders v against the Context. Strings containing `{` are
// rendered as pongo2 templates; lists and maps are expanded recursively
// element-by-element; everything else passes through unchanged.
func (c *Context) Expand(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case string:
		if !isTemplateString(val) {
			return val, nil
		}
		return c.expandString(val)
	case []byte:
		if !isTemplateString(string(val)) {
			return val, nil
		}
		rendered, err := c.expandString(string(val))
		if err != nil {
			return nil, err
		}
		return []byte(rendered), nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			expanded, err := c.Expand(e)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	case []string:
		out := make([]interface{}, len(val))
		for i, e := range val {
			expanded, err := c.Expand(e)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			expanded, err := c.Expand(e)
			if err != nil {
				return nil, err
			}
			out[k] = expanded
		}
		return out, nil
	default:
		return v, nil
	}
}

// ExpandString is a convenience for the common case of wanting a string
// result directly.
func (c *Context) ExpandString(s string) (string, error) {
	if !isTemplateString(s) {
		return s, nil
	}
	return c.expandString(s)
}

func (c *Context) expandString(s string) (string, error) {
	registerFilters()

	tpl, err := pongo2.FromString(s)
	if err != nil {
		return "", fmt.Errorf("context: parse template %q: %w", s, err)
	}

	rendered, err := tpl.Execute(pongo2.Context(c.snapshot()))
	if err != nil {
		return "", fmt.Errorf("context: render template %q: %w", s, err)
	}
	return rendered, nil
}

// Finalize applies the §4.2 finalization rules to an already-evaluated
// value before it is converted to its final string form. Exposed
// separately from Expand because selectors (e.g. format) need to finalize
// a bare expression result without the surrounding template text.
func Finalize(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case []interface{}:
		switch len(val) {
		case 0:
			return ""
		case 1:
			return Finalize(val[0])
		default:
			parts := make([]string, len(val))
			for i, e := range val {
				parts[i] = Finalize(e)
			}
			return "[" + strings.Join(parts, ", ") + "]"
		}
	case map[string]interface{}:
		if len(val) == 0 {
			return ""
		}
		parts := make([]string, 0, len(val))
		for k, e := range val {
			parts = append(parts, fmt.Sprintf("%s: %s", k, Finalize(e)))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(val)
	}
}
