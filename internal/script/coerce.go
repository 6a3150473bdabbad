package script

import (
	"fmt"
	"strconv"

	"github.com/zboralski/dexhook/internal/jvm"
)

// Coerce converts a script or text value to the Go representation of JVM
// type t: int, int64, int16, int8, rune, bool, float32, float64 or string.
// Values that do not convert, and non-primitive types other than String,
// are returned unchanged.
func Coerce(v any, t *jvm.Class) any {
	if v == nil || t == nil {
		return v
	}
	switch t {
	case jvm.Int:
		if n, ok := integer(v); ok {
			return int(n)
		}
	case jvm.Long:
		if n, ok := integer(v); ok {
			return n
		}
	case jvm.Short:
		if n, ok := integer(v); ok {
			return int16(n)
		}
	case jvm.Byte:
		if n, ok := integer(v); ok {
			return int8(n)
		}
	case jvm.Char:
		switch x := v.(type) {
		case string:
			if r := []rune(x); len(r) == 1 {
				return r[0]
			}
		default:
			if n, ok := integer(v); ok {
				return rune(n)
			}
		}
	case jvm.Boolean:
		switch x := v.(type) {
		case bool:
			return x
		case string:
			if b, err := strconv.ParseBool(x); err == nil {
				return b
			}
		}
	case jvm.Float:
		if f, ok := float(v); ok {
			return float32(f)
		}
	case jvm.Double:
		if f, ok := float(v); ok {
			return f
		}
	default:
		if t.Name() == jvm.StringName {
			if _, ok := v.(string); !ok {
				return fmt.Sprint(v)
			}
		}
	}
	return v
}

func integer(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case float32:
		return int64(x), true
	case float64:
		return int64(x), true
	case string:
		n, err := strconv.ParseInt(x, 0, 64)
		return n, err == nil
	}
	return 0, false
}

func float(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	if n, ok := integer(v); ok {
		return float64(n), true
	}
	return 0, false
}
