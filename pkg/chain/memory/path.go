package memory

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Path evaluates segments against root. Maps are indexed by key, structs by
// field name or json tag, and slices by numeric index. A non-numeric segment
// applied to a slice is broadcast over its elements; elements that do not
// resolve are dropped from the collected result.
//
// Any failure yields nil.
func Path(root any, segments []string) any {
	cur := root
	for i, seg := range segments {
		if cur == nil {
			return nil
		}
		if seg == "" {
			continue
		}

		if m, ok := cur.(map[string]any); ok {
			cur = m[seg]
			continue
		}
		if list, ok := cur.([]any); ok {
			if idx, err := strconv.Atoi(seg); err == nil {
				if idx < 0 || idx >= len(list) {
					return nil
				}
				cur = list[idx]
				continue
			}
			return broadcast(list, segments[i:])
		}

		next, broadcastList := step(cur, seg)
		if broadcastList != nil {
			return broadcast(broadcastList, segments[i:])
		}
		cur = next
	}
	return cur
}

func broadcast(list []any, rest []string) any {
	out := make([]any, 0, len(list))
	for _, elem := range list {
		if v := Path(elem, rest); v != nil {
			out = append(out, v)
		}
	}
	return out
}

// step resolves one segment against an arbitrary value using reflection. When
// the value is a non-[]any slice and seg is not an index, the elements are
// returned for broadcasting.
func step(cur any, seg string) (any, []any) {
	rv := reflect.ValueOf(cur)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, nil
		}
		v := rv.MapIndex(reflect.ValueOf(seg).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, nil
		}
		return v.Interface(), nil

	case reflect.Slice, reflect.Array:
		if idx, err := strconv.Atoi(seg); err == nil {
			if idx < 0 || idx >= rv.Len() {
				return nil, nil
			}
			return rv.Index(idx).Interface(), nil
		}
		elems := make([]any, rv.Len())
		for i := range elems {
			elems[i] = rv.Index(i).Interface()
		}
		return nil, elems

	case reflect.Struct:
		return structField(rv, seg), nil
	}
	return nil, nil
}

func structField(rv reflect.Value, name string) any {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := strings.Split(f.Tag.Get("json"), ",")[0]
		if tag == name || strings.EqualFold(f.Name, name) {
			return rv.Field(i).Interface()
		}
	}
	return nil
}

// DecodeMap decodes a JSON object and normalizes its numbers.
func DecodeMap(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	for k, v := range m {
		m[k] = Normalize(v)
	}
	return m, nil
}

// Normalize converts json.Number values (recursively through maps and
// slices) to int64 when integral and float64 otherwise.
func Normalize(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		for k, elem := range val {
			val[k] = Normalize(elem)
		}
		return val
	case []any:
		for i, elem := range val {
			val[i] = Normalize(elem)
		}
		return val
	default:
		return v
	}
}

// Widen returns v with Go integers widened to int64 and float32 to float64,
// recursing into map[string]any and []any, which are copied. It gives caller
// values the types a JSON round trip through DecodeMap would produce.
func Widen(v any) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint:
		return widenUint(uint64(val))
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return widenUint(val)
	case float32:
		return float64(val)
	case json.Number:
		return Normalize(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = Widen(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Widen(elem)
		}
		return out
	default:
		return v
	}
}

func widenUint(u uint64) any {
	if u > math.MaxInt64 {
		return float64(u)
	}
	return int64(u)
}
