package flatwire_test

import (
	"context"
	"testing"

	fw "github.com/reoring/flatwire"
	"github.com/reoring/flatwire/callback"
)

// --- Fixtures ---

func wideSchema(n int) fw.Schema {
	items := make([]fw.Schema, n)
	for i := range items {
		items[i] = fw.MapSchema(
			fw.E("id", fw.LeafSchema()),
			fw.E("span", fw.SeqSchema(fw.LeafSchema(), fw.LeafSchema())),
		)
	}
	return fw.SeqSchema(items...)
}

func wideValue(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = map[string]any{"id": i, "span": []any{i, i + 1}}
	}
	return out
}

// --- Grouping algorithms ---

func Benchmark_Flatten_Wide64(b *testing.B) {
	schema, value := wideSchema(64), wideValue(64)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := fw.Flatten(value, schema); err != nil {
			b.Fatal(err)
		}
	}
}

func Benchmark_Unflatten_Wide64(b *testing.B) {
	schema := wideSchema(64)
	flat, err := fw.Flatten(wideValue(64), schema)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := fw.Unflatten(schema, flat); err != nil {
			b.Fatal(err)
		}
	}
}

func Benchmark_Validate_Wide64(b *testing.B) {
	schema, value := wideSchema(64), wideValue(64)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := fw.Validate(value, schema); err != nil {
			b.Fatal(err)
		}
	}
}

// --- Invocation adapter: reflection vs native handler ---

func benchWrapper(b *testing.B, fn any) {
	b.Helper()
	w, err := callback.New(fn,
		callback.One(callback.Output("out", "children")),
		callback.List(
			fw.Seq(fw.Leaf(callback.Input("lo", "value")), fw.Leaf(callback.Input("hi", "value"))),
			callback.Input("q", "value"),
		),
		callback.Decl{},
	)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	flat := []any{1.0, 10.0, "hello"}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := w.Handle(ctx, flat); err != nil {
			b.Fatal(err)
		}
	}
}

func Benchmark_Handle_Reflect(b *testing.B) {
	benchWrapper(b, func(span []any, q string) int { return len(span) + len(q) })
}

func Benchmark_Handle_Native(b *testing.B) {
	benchWrapper(b, callback.HandlerFunc(func(_ context.Context, a callback.Args) (any, error) {
		return a.Len(), nil
	}))
}
