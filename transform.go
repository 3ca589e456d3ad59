package flatwire

// MapLeaves applies fn to every leaf payload, keeping the shape.
func MapLeaves[T, U any](g Grouping[T], fn func(T) U) Grouping[U] {
	switch g.kind {
	case KindSeq:
		items := make([]Grouping[U], len(g.items))
		for i, c := range g.items {
			items[i] = MapLeaves(c, fn)
		}
		return Grouping[U]{kind: KindSeq, items: items}
	case KindMap:
		entries := make([]Entry[U], len(g.keys))
		for i, k := range g.keys {
			entries[i] = E(k, MapLeaves(g.fields[k], fn))
		}
		return Map(entries...)
	}
	return Leaf(fn(g.leaf))
}

// SchemaOf replaces every leaf payload with a Placeholder.
func SchemaOf[T any](g Grouping[T]) Schema {
	return MapLeaves(g, func(T) Placeholder { return Placeholder{} })
}

// SameShape reports whether a and b have identical shape: the same node kinds,
// sequence arities and mapping key sets. Key order is ignored.
func SameShape[A, B any](a Grouping[A], b Grouping[B]) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindSeq:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !SameShape(a.items[i], b.items[i]) {
				return false
			}
		}
	case KindMap:
		if len(a.keys) != len(b.keys) {
			return false
		}
		for _, k := range a.keys {
			bc, ok := b.fields[k]
			if !ok || !SameShape(a.fields[k], bc) {
				return false
			}
		}
	}
	return true
}

// MapLeavesPath is MapLeaves that also hands fn the JSON Pointer of each leaf,
// rooted at base.
func MapLeavesPath[T, U any](g Grouping[T], base PathRef, fn func(T, PathRef) U) Grouping[U] {
	if base == nil {
		base = Root()
	}
	switch g.kind {
	case KindSeq:
		items := make([]Grouping[U], len(g.items))
		for i, c := range g.items {
			items[i] = MapLeavesPath(c, base.Index(i), fn)
		}
		return Grouping[U]{kind: KindSeq, items: items}
	case KindMap:
		entries := make([]Entry[U], len(g.keys))
		for i, k := range g.keys {
			entries[i] = E(k, MapLeavesPath(g.fields[k], base.Field(k), fn))
		}
		return Map(entries...)
	}
	return Leaf(fn(g.leaf, base))
}
