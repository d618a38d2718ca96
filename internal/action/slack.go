package action

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/ajxchapman/goswatch/internal/cache"
	gctx "github.com/ajxchapman/goswatch/internal/context"
	"github.com/ajxchapman/goswatch/internal/registry"
)

var restyClient = resty.New()

// slackAction implements `slack`: POST a JSON payload to a webhook URL,
// substituting the literal MESSAGE token with the JSON-escaped comment.
type slackAction struct {
	registry.Base
	URL     string
	Payload string
}

func init() {
	register("slack", registry.TypeDescriptor{
		DefaultKey: "url",
		Schema: registry.Schema{
			"url":     registry.String(""),
			"payload": registry.String(`{"text": "MESSAGE"}`),
		},
	}, func(r *registry.Resolved) (Action, error) {
		return &slackAction{
			Base:    registry.NewBase(r.Tag, r.Hash),
			URL:     stringField(r.Fields, "url"),
			Payload: stringField(r.Fields, "payload"),
		}, nil
	})
}

func (a *slackAction) post(ctx *gctx.Context, message string) error {
	encoded, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("action slack: encode message: %w", err)
	}
	body := strings.Replace(a.Payload, "MESSAGE", string(encoded[1:len(encoded)-1]), 1)

	resp, err := restyClient.R().
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(a.URL)
	if err != nil {
		return fmt.Errorf("action slack: post to %q: %w", a.URL, err)
	}
	if resp.IsError() {
		return fmt.Errorf("action slack: %q returned status %d", a.URL, resp.StatusCode())
	}
	return nil
}

func (a *slackAction) Report(ctx *gctx.Context, cc *cache.Cache, r Report) error {
	return a.post(ctx, r.Comment)
}

func (a *slackAction) Error(ctx *gctx.Context, cc *cache.Cache, f Failure) error {
	return a.post(ctx, f.Err.Error())
}
