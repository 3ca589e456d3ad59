package flatwire

import (
	"fmt"

	"github.com/reoring/flatwire/internal/walk"
)

// Getter resolves one schema leaf against an external source. key is the
// schema's leaf payload; def must be returned when the source has no entry.
type Getter[S, T any] func(source any, key S, def T) T

// BuildByLookup rebuilds a Grouping shaped like schema, resolving each leaf
// through get instead of consuming a flat list. Missing entries yield def.
func BuildByLookup[S, T any](schema Grouping[S], source any, get Getter[S, T], def T) Grouping[T] {
	switch schema.kind {
	case KindSeq:
		items := make([]Grouping[T], len(schema.items))
		for i, c := range schema.items {
			items[i] = BuildByLookup(c, source, get, def)
		}
		return Grouping[T]{kind: KindSeq, items: items}
	case KindMap:
		entries := make([]Entry[T], len(schema.keys))
		for i, k := range schema.keys {
			entries[i] = E(k, BuildByLookup(schema.fields[k], source, get, def))
		}
		return Map(entries...)
	}
	return Leaf(get(source, schema.leaf, def))
}

// ByKey looks key up in a string-keyed map (or a mapping Grouping).
func ByKey(source any, key string, def any) any {
	m, ok := mapOf(source)
	if !ok {
		return def
	}
	v, ok := m[key]
	if !ok {
		return def
	}
	return leafOf(v)
}

// ByAttr reads the struct field whose resolved name is key. Names resolve as
// flatwire:"name" tag, then json tag, then the Go field name. Pointers are
// dereferenced.
func ByAttr(source any, key string, def any) any {
	v, ok := walk.Attr(source, key)
	if !ok {
		return def
	}
	return v
}

// ByKeyOrAttr tries ByKey first and falls back to ByAttr.
func ByKeyOrAttr(source any, key string, def any) any {
	if _, ok := mapOf(source); ok {
		return ByKey(source, key, def)
	}
	return ByAttr(source, key, def)
}

// Stringer adapts a Getter keyed by strings to schemas whose leaves are any
// fmt.Stringer-compatible value (rendered with fmt.Sprint).
func Stringer[S any](get Getter[string, any]) Getter[S, any] {
	return func(source any, key S, def any) any {
		return get(source, fmt.Sprint(key), def)
	}
}
