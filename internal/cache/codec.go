package cache

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
)

// keyHash returns the sha256 hex digest used as the on-disk name for both
// entries and files, per SPEC_FULL.md §3 ("Cache entities").
func keyHash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// encodeBlobValue walks v recursively, rewriting every []byte into the
// `{"_base64": true, "data": "..."}` envelope spec.md §6 mandates for
// putFile's JSON encoding. Used for blobs only; cache.yaml entries are
// written by the yaml encoder directly.
func encodeBlobValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []byte:
		return map[string]interface{}{
			"_base64": true,
			"data":    base64.StdEncoding.EncodeToString(val),
		}
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			out[k] = encodeBlobValue(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = encodeBlobValue(e)
		}
		return out
	default:
		return val
	}
}

// decodeBlobValue is encodeBlobValue's inverse: any map matching the
// base64 envelope becomes a []byte again.
func decodeBlobValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		if isB64, ok := val["_base64"].(bool); ok && isB64 {
			if data, ok := val["data"].(string); ok {
				if decoded, err := base64.StdEncoding.DecodeString(data); err == nil {
					return decoded
				}
			}
		}
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			out[k] = decodeBlobValue(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = decodeBlobValue(e)
		}
		return out
	default:
		return val
	}
}

// MarshalBlob renders v as JSON using the base64 envelope for embedded
// byte sequences.
func MarshalBlob(v interface{}) ([]byte, error) {
	return json.Marshal(encodeBlobValue(v))
}

// UnmarshalBlob parses JSON produced by MarshalBlob, restoring the base64
// envelope back into []byte.
func UnmarshalBlob(data []byte) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return decodeBlobValue(v), nil
}
