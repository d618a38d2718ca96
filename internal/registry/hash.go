package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// canonicalize renders v into a deterministic byte form suitable for
// hashing: lists are comma-separated and bracketed, maps are
// key:value-comma-separated and bracketed with keys sorted, and scalars
// are prefixed with a one-letter type marker so that e.g. the string "1"
// and the int 1 never collide.
func canonicalize(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "n:"
	case string:
		return "s:" + val
	case []byte:
		return "b:" + string(val)
	case bool:
		if val {
			return "t:1"
		}
		return "t:0"
	case int:
		return fmt.Sprintf("i:%d", val)
	case int64:
		return fmt.Sprintf("i:%d", val)
	case float64:
		return fmt.Sprintf("f:%v", val)
	case []interface{}:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = canonicalize(e)
		}
		return "[" + join(parts, ",") + "]"
	case []string:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = canonicalize(e)
		}
		return "[" + join(parts, ",") + "]"
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = "s:" + k + ":" + canonicalize(val[k])
		}
		return "{" + join(parts, ",") + "}"
	case map[string]string:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = "s:" + k + ":s:" + val[k]
		}
		return "{" + join(parts, ",") + "}"
	default:
		return fmt.Sprintf("x:%v", val)
	}
}

func join(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}

// HashFields computes the stable content-hash of a coerced field map,
// omitting any name present in skip.
func HashFields(tag string, fields map[string]interface{}, skip map[string]bool) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if skip[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte("s:" + tag))
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(canonicalize(fields[k])))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// UpdateHash folds extra bytes into an existing hash, e.g. so loop
// iterations or template invocations mix their per-instance data into
// their watch's identity.
func UpdateHash(hash string, extra []byte) string {
	h := sha256.New()
	h.Write([]byte(hash))
	h.Write([]byte{0})
	h.Write(extra)
	return hex.EncodeToString(h.Sum(nil))
}
