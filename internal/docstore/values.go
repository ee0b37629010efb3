package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Update sets one field of an existing document.
type Update struct {
	Path  string
	Value any
}

// Field is shorthand for Update{Path: path, Value: v}.
func Field(path string, v any) Update { return Update{Path: path, Value: v} }

type serverTimestamp struct{}

type arrayUnion struct{ values []any }

type arrayRemove struct{ values []any }

type increment struct{ delta float64 }

// ServerTimestamp is replaced by the store's clock at write time.
func ServerTimestamp() any { return serverTimestamp{} }

// ArrayUnion appends each value not already present in the stored array.
func ArrayUnion(values ...any) any { return arrayUnion{values: values} }

// ArrayRemove removes every occurrence of each value from the stored array.
func ArrayRemove(values ...any) any { return arrayRemove{values: values} }

// Increment adds delta to the stored number (missing counts as zero).
func Increment(delta float64) any { return increment{delta: delta} }

// Encode converts a struct or map into document data.
func Encode(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("docstore: encode: value is not an object: %w", err)
	}
	return out, nil
}

// Decode converts document data into dst.
func Decode(data map[string]any, dst any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("docstore: decode: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("docstore: decode: %w", err)
	}
	return nil
}

// StripNil returns a copy of data with nil map entries and nil array
// elements removed at every depth.
func StripNil(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if v == nil {
			continue
		}
		out[k] = stripValue(v)
	}
	return out
}

func stripValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return StripNil(t)
	case []any:
		out := make([]any, 0, len(t))
		for _, x := range t {
			if x != nil {
				out = append(out, stripValue(x))
			}
		}
		return out
	}
	return v
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string { return t.UTC().Format(TimestampLayout) }

// resolveMap normalizes data and resolves transforms against current.
func resolveMap(data, current map[string]any, now time.Time) (map[string]any, error) {
	v, err := resolveValue(data, anyMap(current), now, "")
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}, nil
	}
	return m, nil
}

func anyMap(m map[string]any) any {
	if m == nil {
		return nil
	}
	return m
}

func resolveValue(v, current any, now time.Time, path string) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, fmt.Errorf("field %q: %w", path, ErrInvalidValue)
	case serverTimestamp:
		return FormatTimestamp(now), nil
	case increment:
		base, _ := current.(float64)
		return base + t.delta, nil
	case arrayUnion:
		arr := cloneArray(current)
		for _, x := range t.values {
			nx, err := normalizeChecked(x, path)
			if err != nil {
				return nil, err
			}
			if !containsValue(arr, nx) {
				arr = append(arr, nx)
			}
		}
		return arr, nil
	case arrayRemove:
		arr := cloneArray(current)
		for _, x := range t.values {
			nx, err := normalizeChecked(x, path)
			if err != nil {
				return nil, err
			}
			kept := arr[:0]
			for _, y := range arr {
				if !reflect.DeepEqual(y, nx) {
					kept = append(kept, y)
				}
			}
			arr = kept
		}
		return arr, nil
	case map[string]any:
		curMap, _ := current.(map[string]any)
		out := make(map[string]any, len(t))
		for k, x := range t {
			r, err := resolveValue(x, curMap[k], now, joinPath(path, k))
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	}
	return normalizeChecked(v, path)
}

func normalizeChecked(v any, path string) (any, error) {
	n, err := normalize(v)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", path, err)
	}
	if p, ok := findNil(n, path); ok {
		return nil, fmt.Errorf("field %q: %w", p, ErrInvalidValue)
	}
	return n, nil
}

// normalize converts v to JSON-compatible values.
func normalize(v any) (any, error) {
	switch v.(type) {
	case string, float64, bool:
		return v, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func findNil(v any, path string) (string, bool) {
	switch t := v.(type) {
	case nil:
		return path, true
	case map[string]any:
		for k, x := range t {
			if p, ok := findNil(x, joinPath(path, k)); ok {
				return p, true
			}
		}
	case []any:
		for i, x := range t {
			if p, ok := findNil(x, fmt.Sprintf("%s[%d]", path, i)); ok {
				return p, true
			}
		}
	}
	return "", false
}

func cloneArray(v any) []any {
	arr, _ := v.([]any)
	out := make([]any, 0, len(arr))
	return append(out, arr...)
}

// mergeMaps deep-merges src into dst and returns dst.
func mergeMaps(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		sm, sok := v.(map[string]any)
		dm, dok := dst[k].(map[string]any)
		if sok && dok {
			dst[k] = mergeMaps(dm, sm)
			continue
		}
		dst[k] = v
	}
	return dst
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = deepCopyValue(x)
		}
		return out
	}
	return v
}

func getPath(data map[string]any, path string) any {
	var cur any = data
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

func setPath(data map[string]any, path string, v any) {
	parts := strings.Split(path, ".")
	m := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[part] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = v
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
