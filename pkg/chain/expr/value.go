package expr

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Resolve resolves a value from variables or returns a literal.
// It handles quoted strings, booleans, null, numbers, and variable lookups.
func Resolve(s string, vars Lookup) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if isQuoted(s) {
		return s[1 : len(s)-1]
	}

	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	case "null", "nil":
		return nil
	}

	// json.Number keeps integer precision
	var num json.Number
	if err := json.Unmarshal([]byte(s), &num); err == nil {
		if i, err := num.Int64(); err == nil {
			return i
		}
		if f, err := num.Float64(); err == nil {
			return f
		}
	}

	if vars != nil {
		if val, ok := vars(s); ok {
			return val
		}
	}

	// Unquoted identifier not in vars
	return s
}

func isQuoted(s string) bool {
	if len(s) < 2 {
		return false
	}
	return (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"')
}

// IsTruthy returns whether a value is truthy.
// nil is false, bools return their value, empty strings are false,
// zero numbers are false, empty collections are false, everything else is true.
func IsTruthy(v any) bool {
	if v == nil {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case int32:
		return val != 0
	case float64:
		return val != 0
	case float32:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

// ToFloat64 converts a value to float64 for numeric comparison.
// Returns 0 for values that cannot be converted.
func ToFloat64(v any) float64 {
	_, f, _, _ := ToNumber(v)
	return f
}

// ToNumber classifies v as a number. isInt reports whether the value is an
// integer type (or an integer string), in which case i carries it exactly.
// f always carries the float64 form. ok is false for non-numeric values.
func ToNumber(v any) (i int64, f float64, isInt bool, ok bool) {
	switch val := v.(type) {
	case int:
		return int64(val), float64(val), true, true
	case int8:
		return int64(val), float64(val), true, true
	case int16:
		return int64(val), float64(val), true, true
	case int32:
		return int64(val), float64(val), true, true
	case int64:
		return val, float64(val), true, true
	case uint:
		return int64(val), float64(val), true, true
	case uint8:
		return int64(val), float64(val), true, true
	case uint16:
		return int64(val), float64(val), true, true
	case uint32:
		return int64(val), float64(val), true, true
	case uint64:
		return int64(val), float64(val), true, true
	case float32:
		return int64(val), float64(val), false, true
	case float64:
		return int64(val), val, false, true
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n, float64(n), true, true
		}
		if n, err := val.Float64(); err == nil {
			return int64(n), n, false, true
		}
	case string:
		s := strings.TrimSpace(val)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, float64(n), true, true
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(n), n, false, true
		}
	}
	return 0, 0, false, false
}

// Compare compares two values using the specified operator.
// Returns an error for unknown operators.
func Compare(left, right any, op string) (bool, error) {
	switch op {
	case "==":
		return compareEquals(left, right), nil
	case "!=":
		return compareNotEquals(left, right), nil
	case "<":
		return compareLT(left, right), nil
	case ">":
		return compareGT(left, right), nil
	case "<=":
		return compareLTE(left, right), nil
	case ">=":
		return compareGTE(left, right), nil
	case "contains":
		return compareContains(left, right), nil
	default:
		return false, fmt.Errorf("unknown operator: %s", op)
	}
}

// compareEquals compares numerically when both sides are numbers and by
// string form otherwise.
func compareEquals(left, right any) bool {
	if _, lf, _, lok := ToNumber(left); lok {
		if _, rf, _, rok := ToNumber(right); rok {
			return lf == rf
		}
	}
	return fmt.Sprintf("%v", left) == fmt.Sprintf("%v", right)
}

func compareNotEquals(left, right any) bool {
	return !compareEquals(left, right)
}

func compareLT(left, right any) bool  { return ToFloat64(left) < ToFloat64(right) }
func compareGT(left, right any) bool  { return ToFloat64(left) > ToFloat64(right) }
func compareLTE(left, right any) bool { return ToFloat64(left) <= ToFloat64(right) }
func compareGTE(left, right any) bool { return ToFloat64(left) >= ToFloat64(right) }

// compareContains checks collection membership for slices and substring
// containment otherwise.
func compareContains(left, right any) bool {
	if list, ok := left.([]any); ok {
		for _, elem := range list {
			if compareEquals(elem, right) {
				return true
			}
		}
		return false
	}
	return strings.Contains(fmt.Sprintf("%v", left), fmt.Sprintf("%v", right))
}
