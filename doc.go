// Package flatwire provides:
//
// - Grouping: a nested value or schema made of leaves, fixed-arity sequences and keyed mappings
// - Schema-guided algorithms over plain Go values (Flatten/Unflatten/LeafCount/BuildByLookup/MapLeaves/Validate)
// - A stable error model via Issues (JSON Pointer, code, message)
//
// The shape of a value is always taken from a schema, never from the runtime
// type of a leaf. A leaf may hold a slice or a map (for example a pair of
// dates) and it is passed through untouched.
//
// Design policy:
// - Keep only the grouping engine in the root package; callback binding lives in callback/.
// - Put the UI stand-in and inference policies under component/, the reference wire protocol under protocol/.
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//	schema := flatwire.Seq(flatwire.LeafSchema(), flatwire.MapSchema(
//	    flatwire.E("a", flatwire.LeafSchema()),
//	    flatwire.E("b", flatwire.SeqSchema(flatwire.LeafSchema(), flatwire.LeafSchema())),
//	))
//	g, err := flatwire.Unflatten(schema, []any{"x", "y", "p", "q"})
//	// g.Interface() => []any{"x", map[string]any{"a": "y", "b": []any{"p", "q"}}}
//
//	flat, err := flatwire.Flatten(g.Interface(), schema)
//	// flat => []any{"x", "y", "p", "q"}
package flatwire
