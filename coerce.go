package xlcalc

import (
	"strconv"
	"strings"
)

// toNumber applies the single coercion rule: anything convertible to a
// float is a number. Blank is zero, booleans are one and zero.
func toNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, true
	case float64:
		return x, true
	case int:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// toText renders a value for string comparison.
func toText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return formatNumber(x)
	case int:
		return strconv.Itoa(x)
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	default:
		return ""
	}
}

// toBool decides a condition. Text is true or false only when it spells a
// boolean or a number.
func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case nil:
		return false, true
	case bool:
		return x, true
	case string:
		switch strings.ToUpper(strings.TrimSpace(x)) {
		case "TRUE":
			return true, true
		case "FALSE":
			return false, true
		}
	}
	f, ok := toNumber(v)
	if !ok {
		return false, false
	}
	return f != 0, true
}

// compareValues orders two values: numerically when both coerce to
// numbers, otherwise as strings.
func compareValues(a, b any) int {
	if x, ok := toNumber(a); ok {
		if y, ok := toNumber(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(toText(a), toText(b))
}

// flatten expands range arguments into their cell values.
func flatten(args []any) []any {
	var out []any
	for _, a := range args {
		if list, ok := a.([]any); ok {
			out = append(out, list...)
			continue
		}
		out = append(out, a)
	}
	return out
}
