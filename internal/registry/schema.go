package registry

import "fmt"

// Field describes one declared kwarg of a Loadable's key schema: how to
// coerce a raw configuration value, and what to do when the value is
// absent.
//
// Default is always a thunk so containers (lists, maps) get a fresh
// instance per construction instead of being aliased across Loadables
// that share a zero-value default.
type Field struct {
	Coerce    func(raw interface{}) (interface{}, error)
	Default   func() interface{}
	Forbidden bool
}

// Schema is a base kind's merged field declarations, keyed by field name.
type Schema map[string]Field

// ForbiddenField marks a field that must never be supplied; Resolve
// returns UnexpectedArgumentError if a value is present for it.
func ForbiddenField() Field {
	return Field{Forbidden: true, Default: func() interface{} { return nil }}
}

// String declares a field coerced to string, with basic casting of
// non-string scalars (int, bool, []byte) via fmt.Sprint.
func String(def string) Field {
	return Field{
		Coerce: func(raw interface{}) (interface{}, error) {
			return coerceString(raw)
		},
		Default: func() interface{} { return def },
	}
}

// Int declares a field coerced to int.
func Int(def int) Field {
	return Field{
		Coerce: func(raw interface{}) (interface{}, error) {
			return coerceInt(raw)
		},
		Default: func() interface{} { return def },
	}
}

// Bool declares a field coerced to bool.
func Bool(def bool) Field {
	return Field{
		Coerce: func(raw interface{}) (interface{}, error) {
			return coerceBool(raw)
		},
		Default: func() interface{} { return def },
	}
}

// Bytes declares a field coerced to []byte, accepting string or []byte.
func Bytes(def []byte) Field {
	return Field{
		Coerce: func(raw interface{}) (interface{}, error) {
			return coerceBytes(raw)
		},
		Default: func() interface{} { return append([]byte(nil), def...) },
	}
}

// Any declares a field with no coercion: the raw value is passed through
// verbatim. def is invoked fresh on every construction.
func Any(def func() interface{}) Field {
	return Field{
		Coerce: func(raw interface{}) (interface{}, error) { return raw, nil },
		Default: def,
	}
}

// Custom declares a field with a caller-supplied coercer and default
// thunk.
func Custom(coerce func(interface{}) (interface{}, error), def func() interface{}) Field {
	return Field{Coerce: coerce, Default: def}
}

func coerceString(raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int:
		return fmt.Sprint(v), nil
	case int64:
		return fmt.Sprint(v), nil
	case float64:
		return fmt.Sprint(v), nil
	case bool:
		return fmt.Sprint(v), nil
	default:
		return nil, fmt.Errorf("cannot cast %T to string", raw)
	}
}

func coerceInt(raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err != nil {
			return nil, fmt.Errorf("cannot cast %q to int", v)
		}
		return i, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return nil, fmt.Errorf("cannot cast %T to int", raw)
	}
}

func coerceBool(raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch v {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off", "":
			return false, nil
		default:
			return nil, fmt.Errorf("cannot cast %q to bool", v)
		}
	case int:
		return v != 0, nil
	default:
		return nil, fmt.Errorf("cannot cast %T to bool", raw)
	}
}

func coerceBytes(raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("cannot cast %T to bytes", raw)
	}
}
