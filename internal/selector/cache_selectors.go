package selector

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ajxchapman/goswatch/internal/cache"
	gctx "github.com/ajxchapman/goswatch/internal/context"
	"github.com/ajxchapman/goswatch/internal/item"
	"github.com/ajxchapman/goswatch/internal/registry"
)

// derivedKey computes the identity SPEC_FULL.md §5.4's Cache family uses
// for one item: the named var if keyName is set, else sha256(value).
func derivedKey(it item.Item, keyName string) string {
	if keyName != "" {
		if v, ok := it.Vars[keyName]; ok {
			return string(v)
		}
	}
	sum := sha256.Sum256(it.Value)
	return hex.EncodeToString(sum[:])
}

// effectiveCacheKey expands cacheKeyTemplate if set, else falls back to
// a hash-derived default unique to this selector instance and suffix.
func effectiveCacheKey(ctx *gctx.Context, cacheKeyTemplate, hash, suffix string) (string, error) {
	if cacheKeyTemplate != "" {
		return ctx.ExpandString(cacheKeyTemplate)
	}
	return fmt.Sprintf("%s-selector-cache-%s", hash, suffix), nil
}

func requireCache(cc *cache.Cache, tag string) error {
	if cc == nil {
		return fmt.Errorf("selector %s: no cache available in this context", tag)
	}
	return nil
}

// newSelector implements `new`: emit items whose derived key hasn't
// been seen before, growing the cached set to the union.
type newSelector struct {
	Common
	CacheKey string
	Key      string
}

func init() {
	register("new", registry.TypeDescriptor{
		Schema: mergeSchema(registry.Schema{
			"cache_key": registry.String(""),
			"key":       registry.String(""),
		}),
	}, func(r *registry.Resolved) (Selector, error) {
		return &newSelector{Common: commonOf(r), CacheKey: stringField(r.Fields, "cache_key"), Key: stringField(r.Fields, "key")}, nil
	})
}

func (s *newSelector) RunAll(ctx *gctx.Context, cc *cache.Cache, items []item.Item) ([]item.Item, error) {
	if err := requireCache(cc, "new"); err != nil {
		return nil, err
	}
	key, err := effectiveCacheKey(ctx, s.CacheKey, s.Hash(), "new")
	if err != nil {
		return nil, err
	}

	rawSeen, err := cc.GetEntry(key, []interface{}{})
	if err != nil {
		return nil, err
	}
	seen := toStringSet(rawSeen)

	var out []item.Item
	for _, it := range items {
		k := derivedKey(it, s.Key)
		if !seen[k] {
			out = append(out, it)
			seen[k] = true
		}
	}

	if err := cc.PutEntry(key, fromStringSet(seen)); err != nil {
		return nil, err
	}
	return out, nil
}

func toStringSet(v interface{}) map[string]bool {
	out := map[string]bool{}
	if list, ok := v.([]interface{}); ok {
		for _, e := range list {
			if s, ok := e.(string); ok {
				out[s] = true
			}
		}
	}
	return out
}

func fromStringSet(set map[string]bool) []interface{} {
	out := make([]interface{}, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// sinceSelector implements `since`: emit items up to (exclusive) a
// previously observed marker, then store the new first item's key.
type sinceSelector struct {
	Common
	CacheKey string
	Key      string
}

func init() {
	register("since", registry.TypeDescriptor{
		Schema: mergeSchema(registry.Schema{
			"cache_key": registry.String(""),
			"key":       registry.String(""),
		}),
	}, func(r *registry.Resolved) (Selector, error) {
		return &sinceSelector{Common: commonOf(r), CacheKey: stringField(r.Fields, "cache_key"), Key: stringField(r.Fields, "key")}, nil
	})
}

func (s *sinceSelector) RunAll(ctx *gctx.Context, cc *cache.Cache, items []item.Item) ([]item.Item, error) {
	if err := requireCache(cc, "since"); err != nil {
		return nil, err
	}
	key, err := effectiveCacheKey(ctx, s.CacheKey, s.Hash(), "since")
	if err != nil {
		return nil, err
	}

	rawMarker, err := cc.GetEntry(key, nil)
	if err != nil {
		return nil, err
	}

	if len(items) == 0 {
		return nil, nil
	}

	var out []item.Item
	marker, hasMarker := rawMarker.(string)
	if !hasMarker {
		out = append(out, items...)
	} else {
		for _, it := range items {
			if derivedKey(it, s.Key) == marker {
				break
			}
			out = append(out, it)
		}
	}

	if err := cc.PutEntry(key, derivedKey(items[0], s.Key)); err != nil {
		return nil, err
	}
	return out, nil
}

// dictstoreSelector implements `dictstore`: persist items by derived key
// into a mapping, passing items through unchanged.
type dictstoreSelector struct {
	Common
	CacheKey string
	Key      string
}

func init() {
	register("dictstore", registry.TypeDescriptor{
		Schema: mergeSchema(registry.Schema{
			"cache_key": registry.String(""),
			"key":       registry.String(""),
		}),
	}, func(r *registry.Resolved) (Selector, error) {
		return &dictstoreSelector{Common: commonOf(r), CacheKey: stringField(r.Fields, "cache_key"), Key: stringField(r.Fields, "key")}, nil
	})
}

func (s *dictstoreSelector) RunAll(ctx *gctx.Context, cc *cache.Cache, items []item.Item) ([]item.Item, error) {
	if err := requireCache(cc, "dictstore"); err != nil {
		return nil, err
	}
	key, err := effectiveCacheKey(ctx, s.CacheKey, s.Hash(), "dictstore")
	if err != nil {
		return nil, err
	}

	rawDict, err := cc.GetEntry(key, map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	dict, _ := rawDict.(map[string]interface{})
	if dict == nil {
		dict = map[string]interface{}{}
	}

	for _, it := range items {
		dict[derivedKey(it, s.Key)] = encodeVars(it.Vars)
	}

	if err := cc.PutEntry(key, dict); err != nil {
		return nil, err
	}
	return items, nil
}

// dictloadSelector implements `dictload`: overlay stored vars onto
// items found in the mapping, optionally filtering out misses.
type dictloadSelector struct {
	Common
	CacheKey string
	Key      string
	Filter   bool
}

func init() {
	register("dictload", registry.TypeDescriptor{
		Schema: mergeSchema(registry.Schema{
			"cache_key": registry.String(""),
			"key":       registry.String(""),
			"filter":    registry.Bool(false),
		}),
	}, func(r *registry.Resolved) (Selector, error) {
		return &dictloadSelector{
			Common:   commonOf(r),
			CacheKey: stringField(r.Fields, "cache_key"),
			Key:      stringField(r.Fields, "key"),
			Filter:   r.Fields["filter"].(bool),
		}, nil
	})
}

func (s *dictloadSelector) RunAll(ctx *gctx.Context, cc *cache.Cache, items []item.Item) ([]item.Item, error) {
	if err := requireCache(cc, "dictload"); err != nil {
		return nil, err
	}
	key, err := effectiveCacheKey(ctx, s.CacheKey, s.Hash(), "dictload")
	if err != nil {
		return nil, err
	}

	rawDict, err := cc.GetEntry(key, map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	dict, _ := rawDict.(map[string]interface{})

	out := make([]item.Item, 0, len(items))
	for _, it := range items {
		stored, ok := dict[derivedKey(it, s.Key)]
		if !ok {
			if s.Filter {
				continue
			}
			out = append(out, it)
			continue
		}
		out = append(out, it.Clone(nil, decodeVars(stored)))
	}
	return out, nil
}

func encodeVars(vars map[string][]byte) map[string]interface{} {
	out := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		out[k] = string(v)
	}
	return out
}

func decodeVars(v interface{}) map[string][]byte {
	m, _ := v.(map[string]interface{})
	out := make(map[string][]byte, len(m))
	for k, val := range m {
		if s, ok := val.(string); ok {
			out[k] = []byte(s)
		}
	}
	return out
}
