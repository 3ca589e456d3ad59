package flatwire

import (
	"bytes"
	"fmt"

	j "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// NodeKind identifies a Grouping node type.
type NodeKind int

const (
	KindLeaf NodeKind = iota
	KindSeq
	KindMap
)

func (k NodeKind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindSeq:
		return "sequence"
	case KindMap:
		return "mapping"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// Grouping is a nested structure of leaves, fixed-arity sequences and keyed
// mappings. The zero value is a leaf holding the zero T.
//
// Groupings are immutable once built: constructors copy their inputs and
// accessors return copies of internal slices.
type Grouping[T any] struct {
	kind   NodeKind
	leaf   T
	items  []Grouping[T]
	keys   []string
	fields map[string]Grouping[T]
}

// Entry is a single key/value pair used to build a mapping node.
type Entry[T any] struct {
	Key   string
	Value Grouping[T]
}

// E is shorthand for Entry{Key: key, Value: g}.
func E[T any](key string, g Grouping[T]) Entry[T] { return Entry[T]{Key: key, Value: g} }

// Placeholder is the leaf payload of a Schema.
type Placeholder struct{}

// Schema is a Grouping that only describes shape.
type Schema = Grouping[Placeholder]

// Leaf builds a leaf node. v is never decomposed, even when it is itself a
// slice or a map.
func Leaf[T any](v T) Grouping[T] { return Grouping[T]{kind: KindLeaf, leaf: v} }

// Seq builds a sequence node whose arity is len(items).
func Seq[T any](items ...Grouping[T]) Grouping[T] {
	cp := make([]Grouping[T], len(items))
	copy(cp, items)
	return Grouping[T]{kind: KindSeq, items: cp}
}

// Map builds a mapping node. Entry order is kept for reconstruction; it does
// not take part in shape comparison. Duplicate keys panic.
func Map[T any](entries ...Entry[T]) Grouping[T] {
	g := Grouping[T]{kind: KindMap, keys: make([]string, 0, len(entries)), fields: make(map[string]Grouping[T], len(entries))}
	for _, e := range entries {
		if _, dup := g.fields[e.Key]; dup {
			panic(fmt.Sprintf("flatwire.Map: duplicate key %q", e.Key))
		}
		g.keys = append(g.keys, e.Key)
		g.fields[e.Key] = e.Value
	}
	return g
}

// LeafSchema, SeqSchema and MapSchema are conveniences for building schemas.
func LeafSchema() Schema { return Leaf(Placeholder{}) }

// SeqSchema builds a sequence schema.
func SeqSchema(items ...Schema) Schema { return Seq(items...) }

// MapSchema builds a mapping schema.
func MapSchema(entries ...Entry[Placeholder]) Schema { return Map(entries...) }

// Kind returns the node type.
func (g Grouping[T]) Kind() NodeKind { return g.kind }

// IsLeaf reports whether g is a leaf node.
func (g Grouping[T]) IsLeaf() bool { return g.kind == KindLeaf }

// Value returns the payload of a leaf node (zero T for containers).
func (g Grouping[T]) Value() T { return g.leaf }

// Len returns the number of direct children (0 for leaves).
func (g Grouping[T]) Len() int {
	switch g.kind {
	case KindSeq:
		return len(g.items)
	case KindMap:
		return len(g.keys)
	}
	return 0
}

// Items returns the children of a sequence node.
func (g Grouping[T]) Items() []Grouping[T] {
	if g.kind != KindSeq {
		return nil
	}
	return append([]Grouping[T](nil), g.items...)
}

// At returns the i-th child of a sequence node.
func (g Grouping[T]) At(i int) Grouping[T] { return g.items[i] }

// Keys returns the mapping keys in insertion order.
func (g Grouping[T]) Keys() []string {
	if g.kind != KindMap {
		return nil
	}
	return append([]string(nil), g.keys...)
}

// Field returns the child stored under key.
func (g Grouping[T]) Field(key string) (Grouping[T], bool) {
	if g.kind != KindMap {
		return Grouping[T]{}, false
	}
	c, ok := g.fields[key]
	return c, ok
}

// Interface renders g as a plain Go value: leaves become their payload,
// sequences become []any and mappings become map[string]any.
func (g Grouping[T]) Interface() any {
	switch g.kind {
	case KindSeq:
		out := make([]any, len(g.items))
		for i, c := range g.items {
			out[i] = c.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(g.keys))
		for _, k := range g.keys {
			out[k] = g.fields[k].Interface()
		}
		return out
	}
	return g.leaf
}

// String renders the shape and payloads for debugging.
func (g Grouping[T]) String() string {
	switch g.kind {
	case KindSeq:
		b := &bytes.Buffer{}
		b.WriteByte('(')
		for i, c := range g.items {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(c.String())
		}
		b.WriteByte(')')
		return b.String()
	case KindMap:
		b := &bytes.Buffer{}
		b.WriteByte('{')
		for i, k := range g.keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "%q: %s", k, g.fields[k].String())
		}
		b.WriteByte('}')
		return b.String()
	}
	return fmt.Sprintf("%v", g.leaf)
}

// MarshalJSON encodes sequences as arrays, mappings as objects in key order and
// leaves as their payload.
func (g Grouping[T]) MarshalJSON() ([]byte, error) {
	switch g.kind {
	case KindSeq:
		b := &bytes.Buffer{}
		b.WriteByte('[')
		for i, c := range g.items {
			if i > 0 {
				b.WriteByte(',')
			}
			cb, err := c.MarshalJSON()
			if err != nil {
				return nil, err
			}
			b.Write(cb)
		}
		b.WriteByte(']')
		return b.Bytes(), nil
	case KindMap:
		b := &bytes.Buffer{}
		b.WriteByte('{')
		for i, k := range g.keys {
			if i > 0 {
				b.WriteByte(',')
			}
			kb, err := j.Marshal(k)
			if err != nil {
				return nil, err
			}
			b.Write(kb)
			b.WriteByte(':')
			cb, err := g.fields[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			b.Write(cb)
		}
		b.WriteByte('}')
		return b.Bytes(), nil
	}
	return j.Marshal(g.leaf)
}

// UnmarshalYAML decodes sequence nodes into sequences, mapping nodes into
// mappings (document order) and every other node into a leaf of type T.
func (g *Grouping[T]) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return fmt.Errorf("line %d: empty document", node.Line)
		}
		return g.UnmarshalYAML(node.Content[0])
	case yaml.AliasNode:
		return g.UnmarshalYAML(node.Alias)
	case yaml.SequenceNode:
		items := make([]Grouping[T], len(node.Content))
		for i, c := range node.Content {
			if err := items[i].UnmarshalYAML(c); err != nil {
				return err
			}
		}
		*g = Grouping[T]{kind: KindSeq, items: items}
		return nil
	case yaml.MappingNode:
		entries := make([]Entry[T], 0, len(node.Content)/2)
		seen := make(map[string]struct{}, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			k := node.Content[i].Value
			if _, dup := seen[k]; dup {
				return fmt.Errorf("line %d: duplicate key %q", node.Content[i].Line, k)
			}
			seen[k] = struct{}{}
			var child Grouping[T]
			if err := child.UnmarshalYAML(node.Content[i+1]); err != nil {
				return err
			}
			entries = append(entries, E(k, child))
		}
		*g = Map(entries...)
		return nil
	default:
		var v T
		if _, ok := any(&v).(*Placeholder); ok {
			*g = Leaf(v)
			return nil
		}
		if err := node.Decode(&v); err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*g = Leaf(v)
		return nil
	}
}

// node lets the plain-value algorithms accept a Grouping of any payload type
// wherever a plain value is expected.
type node interface {
	Kind() NodeKind
	Len() int
	Interface() any
	leafAny() any
	childAt(i int) any
	keyList() []string
	childFor(key string) any
}

func (g Grouping[T]) leafAny() any            { return g.leaf }
func (g Grouping[T]) childAt(i int) any       { return g.items[i] }
func (g Grouping[T]) keyList() []string       { return g.keys }
func (g Grouping[T]) childFor(key string) any { return g.fields[key] }
