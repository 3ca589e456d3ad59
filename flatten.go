package flatwire

import (
	"github.com/reoring/flatwire/internal/walk"
)

// seqOf returns the children of v when v can stand at a sequence position.
func seqOf(v any) ([]any, bool) {
	if n, ok := v.(node); ok {
		if n.Kind() != KindSeq {
			return nil, false
		}
		out := make([]any, n.Len())
		for i := range out {
			out[i] = n.childAt(i)
		}
		return out, true
	}
	return walk.Seq(v)
}

// mapOf returns the entries of v when v can stand at a mapping position.
func mapOf(v any) (map[string]any, bool) {
	if n, ok := v.(node); ok {
		if n.Kind() != KindMap {
			return nil, false
		}
		keys := n.keyList()
		out := make(map[string]any, len(keys))
		for _, k := range keys {
			out[k] = n.childFor(k)
		}
		return out, true
	}
	return walk.Map(v)
}

// leafOf unwraps a leaf Grouping to its payload. Any other value, including
// container-shaped ones, is returned as is.
func leafOf(v any) any {
	if n, ok := v.(node); ok {
		if n.Kind() == KindLeaf {
			return n.leafAny()
		}
		return n.Interface()
	}
	return v
}

func classOf(v any) string {
	if n, ok := v.(node); ok {
		return n.Kind().String()
	}
	return walk.Class(v)
}

// walker traverses a plain value in lock-step with a schema. emit receives the
// leaves in depth-first, schema key order.
type walker struct {
	emit     func(any)
	issues   Issues
	failFast bool
}

func (w *walker) stop() bool { return w.failFast && len(w.issues) > 0 }

func (w *walker) fail(path PathRef, code string, params map[string]any) {
	w.issues = append(w.issues, NewIssue(path, code, params))
}

func walkValue[S any](w *walker, value any, schema Grouping[S], path PathRef) {
	if w.stop() {
		return
	}
	switch schema.kind {
	case KindLeaf:
		if w.emit != nil {
			w.emit(leafOf(value))
		}
	case KindSeq:
		items, ok := seqOf(value)
		if !ok {
			w.fail(path, CodeInvalidType, map[string]any{"expected": KindSeq.String(), "got": classOf(value)})
			return
		}
		if len(items) != len(schema.items) {
			w.fail(path, CodeLengthMismatch, map[string]any{"expected": len(schema.items), "got": len(items)})
			return
		}
		for i, child := range schema.items {
			walkValue(w, items[i], child, path.Index(i))
		}
	case KindMap:
		fields, ok := mapOf(value)
		if !ok {
			w.fail(path, CodeInvalidType, map[string]any{"expected": KindMap.String(), "got": classOf(value)})
			return
		}
		if !sameKeys(schema.keys, fields) {
			w.fail(path, CodeKeyMismatch, map[string]any{"expected": sortedCopy(schema.keys), "got": walk.SortedKeys(fields)})
			return
		}
		for _, k := range schema.keys {
			walkValue(w, fields[k], schema.fields[k], path.Field(k))
		}
	}
}

func sameKeys(want []string, got map[string]any) bool {
	if len(want) != len(got) {
		return false
	}
	for _, k := range want {
		if _, ok := got[k]; !ok {
			return false
		}
	}
	return true
}

func sortedCopy(keys []string) []string {
	m := make(map[string]any, len(keys))
	for _, k := range keys {
		m[k] = nil
	}
	return walk.SortedKeys(m)
}

// Flatten extracts the leaves of value in depth-first order, with the shape
// taken from schema. A value at a schema leaf is emitted unchanged even when
// it looks like a slice or a map.
func Flatten[S any](value any, schema Grouping[S]) ([]any, error) {
	out := make([]any, 0, LeafCount(schema))
	w := &walker{emit: func(v any) { out = append(out, v) }, failFast: true}
	walkValue(w, value, schema, Root())
	if len(w.issues) > 0 {
		return nil, w.issues
	}
	return out, nil
}

// Leaves flattens a Grouping guided by its own shape.
func Leaves[T any](g Grouping[T]) []T {
	out := make([]T, 0, LeafCount(g))
	var rec func(Grouping[T])
	rec = func(n Grouping[T]) {
		switch n.kind {
		case KindLeaf:
			out = append(out, n.leaf)
		case KindSeq:
			for _, c := range n.items {
				rec(c)
			}
		case KindMap:
			for _, k := range n.keys {
				rec(n.fields[k])
			}
		}
	}
	rec(g)
	return out
}

// LeafCount returns the number of leaf nodes in schema.
func LeafCount[S any](schema Grouping[S]) int {
	switch schema.kind {
	case KindSeq:
		n := 0
		for _, c := range schema.items {
			n += LeafCount(c)
		}
		return n
	case KindMap:
		n := 0
		for _, k := range schema.keys {
			n += LeafCount(schema.fields[k])
		}
		return n
	}
	return 1
}

// Unflatten rebuilds a Grouping shaped like schema by consuming flat from the
// front in the order Flatten produces. len(flat) must equal LeafCount(schema).
func Unflatten[S, T any](schema Grouping[S], flat []T) (Grouping[T], error) {
	if want := LeafCount(schema); want != len(flat) {
		return Grouping[T]{}, Fail(Root(), CodeFlatCount, map[string]any{"expected": want, "got": len(flat)})
	}
	pos := 0
	return unflatten(schema, flat, &pos), nil
}

func unflatten[S, T any](schema Grouping[S], flat []T, pos *int) Grouping[T] {
	switch schema.kind {
	case KindSeq:
		items := make([]Grouping[T], len(schema.items))
		for i, c := range schema.items {
			items[i] = unflatten(c, flat, pos)
		}
		return Grouping[T]{kind: KindSeq, items: items}
	case KindMap:
		entries := make([]Entry[T], len(schema.keys))
		for i, k := range schema.keys {
			entries[i] = E(k, unflatten(schema.fields[k], flat, pos))
		}
		return Map(entries...)
	}
	v := flat[*pos]
	*pos++
	return Leaf(v)
}
