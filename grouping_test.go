package flatwire_test

import (
	"testing"
	"time"

	j "github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	fw "github.com/reoring/flatwire"
)

func scenarioSchema() fw.Schema {
	return fw.SeqSchema(
		fw.LeafSchema(),
		fw.MapSchema(
			fw.E("a", fw.LeafSchema()),
			fw.E("b", fw.SeqSchema(fw.LeafSchema(), fw.LeafSchema())),
		),
	)
}

func TestUnflatten_NestedScenario(t *testing.T) {
	schema := scenarioSchema()
	if n := fw.LeafCount(schema); n != 4 {
		t.Fatalf("LeafCount = %d, want 4", n)
	}
	g, err := fw.Unflatten(schema, []any{"x", "y", "p", "q"})
	if err != nil {
		t.Fatalf("unflatten: %v", err)
	}
	want := []any{"x", map[string]any{"a": "y", "b": []any{"p", "q"}}}
	if diff := cmp.Diff(want, g.Interface()); diff != "" {
		t.Fatalf("unexpected value (-want +got):\n%s", diff)
	}
}

func TestRoundTrip_PlainValues(t *testing.T) {
	cases := []struct {
		name   string
		schema fw.Schema
		value  any
	}{
		{"leaf", fw.LeafSchema(), 42},
		{"empty seq", fw.SeqSchema(), []any{}},
		{"empty map", fw.MapSchema(), map[string]any{}},
		{"nested", scenarioSchema(), []any{1, map[string]any{"a": 2, "b": []any{3, 4}}}},
		{"seq of maps", fw.SeqSchema(
			fw.MapSchema(fw.E("x", fw.LeafSchema())),
			fw.MapSchema(fw.E("y", fw.LeafSchema()), fw.E("z", fw.LeafSchema())),
		), []any{map[string]any{"x": "a"}, map[string]any{"y": "b", "z": "c"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			flat, err := fw.Flatten(tc.value, tc.schema)
			if err != nil {
				t.Fatalf("flatten: %v", err)
			}
			if len(flat) != fw.LeafCount(tc.schema) {
				t.Fatalf("len(flat) = %d, LeafCount = %d", len(flat), fw.LeafCount(tc.schema))
			}
			g, err := fw.Unflatten(tc.schema, flat)
			if err != nil {
				t.Fatalf("unflatten: %v", err)
			}
			if diff := cmp.Diff(tc.value, g.Interface()); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFlatten_LeafPayloadIsNeverTraversed(t *testing.T) {
	// A date range is a single leaf even though it is slice-shaped.
	dates := []time.Time{time.Unix(0, 0).UTC(), time.Unix(86400, 0).UTC()}
	schema := fw.SeqSchema(fw.LeafSchema(), fw.LeafSchema())
	flat, err := fw.Flatten([]any{dates, map[string]any{"k": 1}}, schema)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	if len(flat) != 2 {
		t.Fatalf("expected 2 leaves, got %d", len(flat))
	}
	if diff := cmp.Diff(dates, flat[0]); diff != "" {
		t.Fatalf("leaf payload changed (-want +got):\n%s", diff)
	}
	g, err := fw.Unflatten(fw.LeafSchema(), []any{dates})
	if err != nil {
		t.Fatalf("unflatten: %v", err)
	}
	if !g.IsLeaf() {
		t.Fatalf("expected a leaf, got %v", g.Kind())
	}
}

func TestFlatten_MapUsesSchemaKeyOrder(t *testing.T) {
	schema := fw.MapSchema(fw.E("z", fw.LeafSchema()), fw.E("a", fw.LeafSchema()), fw.E("m", fw.LeafSchema()))
	flat, err := fw.Flatten(map[string]int{"a": 1, "m": 2, "z": 3}, schema)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	if diff := cmp.Diff([]any{3, 1, 2}, flat); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestFlatten_AcceptsTypedContainersAndGroupings(t *testing.T) {
	schema := fw.SeqSchema(fw.LeafSchema(), fw.LeafSchema())
	for _, v := range []any{[2]int{1, 2}, []int{1, 2}, fw.Seq(fw.Leaf(1), fw.Leaf(2))} {
		flat, err := fw.Flatten(v, schema)
		if err != nil {
			t.Fatalf("flatten %T: %v", v, err)
		}
		if diff := cmp.Diff([]any{1, 2}, flat); diff != "" {
			t.Fatalf("%T (-want +got):\n%s", v, diff)
		}
	}
}

func TestUnflatten_WrongCount(t *testing.T) {
	_, err := fw.Unflatten(scenarioSchema(), []any{1, 2, 3})
	if !fw.HasCode(err, fw.CodeFlatCount) {
		t.Fatalf("expected flat_count, got %v", err)
	}
	iss, _ := fw.AsIssues(err)
	if iss[0].Params["expected"] != 4 || iss[0].Params["got"] != 3 {
		t.Fatalf("unexpected params: %v", iss[0].Params)
	}
	if iss[0].Message != "wrong flat count: expected 4, received 3" {
		t.Fatalf("unexpected message: %q", iss[0].Message)
	}
}

func TestMapLeaves_PreservesShape(t *testing.T) {
	g := fw.Seq(fw.Leaf(1), fw.Map(fw.E("a", fw.Leaf(2)), fw.E("b", fw.Seq[int]())))
	doubled := fw.MapLeaves(g, func(v int) string { return string(rune('a' + v)) })
	if !fw.SameShape(g, doubled) {
		t.Fatalf("shape changed: %v vs %v", g, doubled)
	}
	if !fw.SameShape(fw.SchemaOf(g), g) {
		t.Fatalf("SchemaOf changed the shape")
	}
	if diff := cmp.Diff([]string{"b", "c"}, fw.Leaves(doubled)); diff != "" {
		t.Fatalf("leaves (-want +got):\n%s", diff)
	}
}

func TestSameShape_IgnoresKeyOrder(t *testing.T) {
	a := fw.Map(fw.E("x", fw.Leaf(1)), fw.E("y", fw.Leaf(2)))
	b := fw.Map(fw.E("y", fw.Leaf("p")), fw.E("x", fw.Leaf("q")))
	if !fw.SameShape(a, b) {
		t.Fatalf("key order must not matter")
	}
	if fw.SameShape(a, fw.Map(fw.E("x", fw.Leaf(1)))) {
		t.Fatalf("different key sets must differ")
	}
	if fw.SameShape(fw.Seq(fw.Leaf(1)), fw.Seq(fw.Leaf(1), fw.Leaf(2))) {
		t.Fatalf("different arities must differ")
	}
}

func TestMap_DuplicateKeyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate key")
		}
	}()
	_ = fw.Map(fw.E("a", fw.Leaf(1)), fw.E("a", fw.Leaf(2)))
}

func TestGrouping_MarshalJSON_KeepsKeyOrder(t *testing.T) {
	g := fw.Seq(fw.Leaf[any]("x"), fw.Map(fw.E("b", fw.Leaf[any](1)), fw.E("a", fw.Leaf[any](true))))
	b, err := j.Marshal(g)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `["x",{"b":1,"a":true}]` {
		t.Fatalf("unexpected json: %s", b)
	}
}

func TestGrouping_UnmarshalYAML(t *testing.T) {
	src := []byte("- slider.value\n- b: text.value\n  a: [x.v, y.v]\n")
	var g fw.Grouping[string]
	if err := yaml.Unmarshal(src, &g); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if diff := cmp.Diff([]string{"slider.value", "text.value", "x.v", "y.v"}, fw.Leaves(g)); diff != "" {
		t.Fatalf("leaves (-want +got):\n%s", diff)
	}
	inner := g.At(1)
	if diff := cmp.Diff([]string{"b", "a"}, inner.Keys()); diff != "" {
		t.Fatalf("document order lost (-want +got):\n%s", diff)
	}

	var s fw.Schema
	if err := yaml.Unmarshal(src, &s); err != nil {
		t.Fatalf("schema yaml: %v", err)
	}
	if !fw.SameShape(s, g) {
		t.Fatalf("schema shape differs")
	}

	if err := yaml.Unmarshal([]byte("a: 1\na: 2\n"), &g); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}
