// Package walk inspects plain Go values (slices, arrays, string-keyed maps and
// structs) on behalf of the grouping algorithms. It never decides shape on its
// own: callers ask whether a value can stand where a schema expects a sequence
// or a mapping.
package walk

import (
	"reflect"
	"sort"
	"strings"
)

// Seq returns the elements of v when v is a slice or an array.
func Seq(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	}
	return nil, false
}

// Map returns the entries of v when v is a map keyed by strings.
func Map(v any) (map[string]any, bool) {
	if v == nil {
		return nil, false
	}
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Class names the shape class a plain value would occupy: "sequence",
// "mapping" or "leaf". Used only for diagnostics.
func Class(v any) string {
	if _, ok := Seq(v); ok {
		return "sequence"
	}
	if _, ok := Map(v); ok {
		return "mapping"
	}
	return "leaf"
}

// ResolveKey applies the repository-wide rule to resolve a struct field's
// external key.
// Priority: flatwire:"name" > json tag name > field name; "-" disables the field.
func ResolveKey(sf reflect.StructField) string {
	if gt := sf.Tag.Get("flatwire"); gt != "" {
		name := strings.TrimSpace(strings.Split(gt, ",")[0])
		if name != "" {
			return name
		}
	}
	if jt := sf.Tag.Get("json"); jt != "" {
		if jt == "-" {
			return "-"
		}
		if i := strings.IndexByte(jt, ','); i >= 0 {
			if jt[:i] != "" {
				return jt[:i]
			}
			return sf.Name
		}
		return jt
	}
	return sf.Name
}

// Fields maps resolved keys to field indexes for the exported fields of the
// struct type t.
func Fields(t reflect.Type) map[string]int {
	out := make(map[string]int)
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := ResolveKey(sf)
		if name == "" || name == "-" {
			continue
		}
		out[name] = i
	}
	return out
}

// Struct dereferences pointers and reports whether v is a struct value.
func Struct(v any) (reflect.Value, bool) {
	if v == nil {
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	return rv, true
}

// Attr reads the struct field of v whose resolved key is name.
func Attr(v any, name string) (any, bool) {
	rv, ok := Struct(v)
	if !ok {
		return nil, false
	}
	idx, ok := Fields(rv.Type())[name]
	if !ok {
		return nil, false
	}
	return rv.Field(idx).Interface(), true
}
