package state

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the primitive kind a field value is coerced to before its setter
// is called.
type Kind int

const (
	// KindAny passes the raw value through unchanged.
	KindAny Kind = iota

	// KindInt coerces to int64, truncating fractions.
	KindInt

	// KindFloat coerces to float64.
	KindFloat

	// KindBool coerces to bool by truthiness.
	KindBool

	// KindString coerces to string.
	KindString
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Coerce converts a raw document value to kind.
//
// The conversion is loose and never fails:
//
//	Coerce(KindInt, "12abc")  // 12
//	Coerce(KindInt, "abc")    // 0
//	Coerce(KindFloat, "5.5")  // 5.5
//	Coerce(KindBool, "0")     // false
//	Coerce(KindString, true)  // "1"
func Coerce(kind Kind, v any) any {
	switch kind {
	case KindInt:
		return toInt(v)
	case KindFloat:
		return toFloat(v)
	case KindBool:
		return toBool(v)
	case KindString:
		return toString(v)
	default:
		return v
	}
}

func toInt(v any) int64 {
	switch val := v.(type) {
	case nil:
		return 0
	case bool:
		if val {
			return 1
		}
		return 0
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return truncate(val)
	case json.Number:
		return toInt(val.String())
	case string:
		prefix := numericPrefix(val)
		if prefix == "" {
			return 0
		}
		if !strings.ContainsAny(prefix, ".eE") {
			if i, err := strconv.ParseInt(prefix, 10, 64); err == nil {
				return i
			}
		}
		f, _ := strconv.ParseFloat(prefix, 64) //nolint:errcheck // overflow yields ±Inf, clamped below
		return truncate(f)
	case []any:
		if len(val) == 0 {
			return 0
		}
		return 1
	case map[string]any:
		if len(val) == 0 {
			return 0
		}
		return 1
	default:
		return 0
	}
}

func toFloat(v any) float64 {
	switch val := v.(type) {
	case nil:
		return 0
	case bool:
		if val {
			return 1
		}
		return 0
	case int64:
		return float64(val)
	case int:
		return float64(val)
	case float64:
		return val
	case json.Number:
		return toFloat(val.String())
	case string:
		prefix := numericPrefix(val)
		if prefix == "" {
			return 0
		}
		f, _ := strconv.ParseFloat(prefix, 64) //nolint:errcheck // prefix is numeric, overflow yields ±Inf
		return f
	case []any:
		if len(val) == 0 {
			return 0
		}
		return 1
	case map[string]any:
		if len(val) == 0 {
			return 0
		}
		return 1
	default:
		return 0
	}
}

func toBool(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case int64:
		return val != 0
	case int:
		return val != 0
	case float64:
		return val != 0
	case json.Number:
		return toFloat(val) != 0
	case string:
		return val != "" && val != "0"
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

func toString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case bool:
		if val {
			return "1"
		}
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// truncate converts f to int64 toward zero, mapping NaN to 0 and clamping
// out of range values.
func truncate(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	default:
		return int64(f)
	}
}

// numericPrefix returns the longest leading numeric literal of s after
// leading whitespace: optional sign, digits, optional fraction and optional
// exponent. It returns "" when s does not start with a number.
func numericPrefix(s string) string {
	s = strings.TrimLeft(s, " \t\n\r\v\f")

	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}

	intDigits := scanDigits(s, i)
	i += intDigits

	fracDigits := 0
	if i < len(s) && s[i] == '.' {
		fracDigits = scanDigits(s, i+1)
		if intDigits > 0 || fracDigits > 0 {
			i += 1 + fracDigits
		}
	}

	if intDigits == 0 && fracDigits == 0 {
		return ""
	}

	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if n := scanDigits(s, j); n > 0 {
			i = j + n
		}
	}

	return s[:i]
}

func scanDigits(s string, from int) int {
	n := 0
	for from+n < len(s) && s[from+n] >= '0' && s[from+n] <= '9' {
		n++
	}
	return n
}
