// Package callback binds application functions with nested arguments and
// results to a flat, positional callback protocol.
//
// Overview
//   - Dependency: a leaf that pairs an external reference (id, key structure or
//     UI handle) and a property name with a role (Input/State/Output).
//   - Decl: how a caller declares a bucket: One(x), List(xs...) or Named(F(name, x)...).
//     Entries may be Dependencies, Groupings of Dependencies, handles or bare patterns.
//   - Normalizer: turns the three declared buckets into named Bindings with flat
//     ranges plus the three flat dependency lists the protocol registers.
//   - Wrapper: per call, rebuilds nested arguments from the flat values, invokes
//     the function, validates and flattens the result.
//
// Example
//
//	w, err := callback.New(
//	    func(r [2]float64, q string) (string, error) { ... },
//	    callback.One(callback.Output("summary", "children")),
//	    callback.List(
//	        flatwire.Seq(flatwire.Leaf(callback.Input("lo", "value")), flatwire.Leaf(callback.Input("hi", "value"))),
//	        callback.Input("query", "value"),
//	    ),
//	    callback.Decl{},
//	)
//	_ = w.Register(ctx, registry)
//
// A Wrapper is immutable after New and safe for concurrent use: each call of
// Handle works on its own values and only reads the Bindings.
package callback
