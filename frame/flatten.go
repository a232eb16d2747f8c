package frame

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DecodeRecord decodes a JSON object into a flat record. Nested objects become
// dotted keys in document order, arrays and scalars are kept as values.
func DecodeRecord(raw json.RawMessage) (*orderedmap.OrderedMap[string, any], error) {
	rec := orderedmap.New[string, any]()
	if err := flattenJSON(rec, "", raw); err != nil {
		return nil, err
	}
	return rec, nil
}

func flattenJSON(rec *orderedmap.OrderedMap[string, any], prefix string, raw json.RawMessage) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		if prefix == "" {
			return fmt.Errorf("expected a JSON object")
		}
		v, err := decodeValue(trimmed)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", prefix, err)
		}
		rec.Set(prefix, v)
		return nil
	}

	obj := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(trimmed, obj); err != nil {
		return fmt.Errorf("decoding object %q: %w", prefix, err)
	}
	if obj.Len() == 0 && prefix != "" {
		rec.Set(prefix, map[string]any{})
		return nil
	}
	for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
		key := pair.Key
		if prefix != "" {
			key = prefix + "." + key
		}
		if err := flattenJSON(rec, key, pair.Value); err != nil {
			return err
		}
	}
	return nil
}

// decodeValue decodes a JSON scalar or array. Integral numbers become int64 so
// large ids survive, other numbers float64.
func decodeValue(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalizeNumbers(v), nil
}

func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x
	case []any:
		for i := range x {
			x[i] = normalizeNumbers(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = normalizeNumbers(x[k])
		}
		return x
	default:
		return v
	}
}

// Flatten returns a record where nested maps are replaced by dotted keys.
// Keys of nested plain maps are sorted, ordered maps keep their order.
func Flatten(rec *orderedmap.OrderedMap[string, any]) *orderedmap.OrderedMap[string, any] {
	out := orderedmap.New[string, any]()
	for pair := rec.Oldest(); pair != nil; pair = pair.Next() {
		flattenValue(out, pair.Key, pair.Value)
	}
	return out
}

func flattenValue(out *orderedmap.OrderedMap[string, any], key string, v any) {
	switch x := v.(type) {
	case *orderedmap.OrderedMap[string, any]:
		for pair := x.Oldest(); pair != nil; pair = pair.Next() {
			flattenValue(out, key+"."+pair.Key, pair.Value)
		}
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flattenValue(out, key+"."+k, x[k])
		}
	default:
		out.Set(key, v)
	}
}
