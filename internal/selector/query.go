package selector

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"github.com/itchyny/gojq"

	"github.com/ajxchapman/goswatch/internal/cache"
	gctx "github.com/ajxchapman/goswatch/internal/context"
	"github.com/ajxchapman/goswatch/internal/item"
	"github.com/ajxchapman/goswatch/internal/registry"
)

// htmlSelector implements `html`: parse as HTML, apply a CSS selector,
// emit one Item per match (outer HTML).
type htmlSelector struct {
	Common
	Query string
}

func init() {
	register("html", registry.TypeDescriptor{
		DefaultKey: "selector",
		Schema: mergeSchema(registry.Schema{
			"selector": registry.String(""),
		}),
	}, func(r *registry.Resolved) (Selector, error) {
		return &htmlSelector{Common: commonOf(r), Query: stringField(r.Fields, "selector")}, nil
	})
}

func (s *htmlSelector) RunAll(ctx *gctx.Context, cc *cache.Cache, items []item.Item) ([]item.Item, error) {
	return runElementwise(func(ctx *gctx.Context, cc *cache.Cache, it item.Item) ([]item.Item, error) {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(it.Value))
		if err != nil {
			return nil, fmt.Errorf("selector html: parse: %w", err)
		}
		var out []item.Item
		doc.Find(s.Query).Each(func(_ int, sel *goquery.Selection) {
			html, err := goquery.OuterHtml(sel)
			if err != nil {
				return
			}
			out = append(out, it.Clone([]byte(html), nil))
		})
		return out, nil
	}, ctx, cc, items)
}

// xmlSelector implements `xml`: parse as XML, apply an XPath query
// (antchfx/xmlquery's query language, the idiomatic Go equivalent of a
// CSS/structural selector over a DOM).
type xmlSelector struct {
	Common
	Expr *xpath.Expr
}

func init() {
	register("xml", registry.TypeDescriptor{
		DefaultKey: "selector",
		Schema: mergeSchema(registry.Schema{
			"selector": registry.String(""),
		}),
	}, func(r *registry.Resolved) (Selector, error) {
		query := stringField(r.Fields, "selector")
		expr, err := xpath.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("selector xml: compile xpath %q: %w", query, err)
		}
		return &xmlSelector{Common: commonOf(r), Expr: expr}, nil
	})
}

func (s *xmlSelector) RunAll(ctx *gctx.Context, cc *cache.Cache, items []item.Item) ([]item.Item, error) {
	return runElementwise(func(ctx *gctx.Context, cc *cache.Cache, it item.Item) ([]item.Item, error) {
		doc, err := xmlquery.Parse(bytes.NewReader(it.Value))
		if err != nil {
			return nil, fmt.Errorf("selector xml: parse: %w", err)
		}
		nodes := xmlquery.QuerySelectorAll(doc, s.Expr)
		out := make([]item.Item, 0, len(nodes))
		for _, n := range nodes {
			out = append(out, it.Clone([]byte(n.OutputXML(true)), nil))
		}
		return out, nil
	}, ctx, cc, items)
}

// jqSelector implements `jq`: parse the value as JSON, run a jq program,
// emit one Item per result (strings as UTF-8 bytes, everything else
// re-serialized as JSON).
type jqSelector struct {
	Common
	Code *gojq.Code
}

func init() {
	register("jq", registry.TypeDescriptor{
		DefaultKey: "query",
		Schema: mergeSchema(registry.Schema{
			"query": registry.String("."),
		}),
	}, func(r *registry.Resolved) (Selector, error) {
		expr := stringField(r.Fields, "query")
		if expr == "" {
			expr = "."
		}
		parsed, err := gojq.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("selector jq: parse %q: %w", expr, err)
		}
		code, err := gojq.Compile(parsed)
		if err != nil {
			return nil, fmt.Errorf("selector jq: compile %q: %w", expr, err)
		}
		return &jqSelector{Common: commonOf(r), Code: code}, nil
	})
}

func (s *jqSelector) RunAll(ctx *gctx.Context, cc *cache.Cache, items []item.Item) ([]item.Item, error) {
	return runElementwise(func(ctx *gctx.Context, cc *cache.Cache, it item.Item) ([]item.Item, error) {
		var input interface{}
		if err := json.Unmarshal(it.Value, &input); err != nil {
			return nil, fmt.Errorf("selector jq: parse input as JSON: %w", err)
		}

		var out []item.Item
		iter := s.Code.Run(input)
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, ok := v.(error); ok {
				return nil, fmt.Errorf("selector jq: %w", err)
			}

			var encoded []byte
			if str, ok := v.(string); ok {
				encoded = []byte(str)
			} else {
				marshaled, err := json.Marshal(v)
				if err != nil {
					return nil, fmt.Errorf("selector jq: re-encode result: %w", err)
				}
				encoded = marshaled
			}
			out = append(out, it.Clone(encoded, nil))
		}
		return out, nil
	}, ctx, cc, items)
}
