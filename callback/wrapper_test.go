package callback_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fw "github.com/reoring/flatwire"
	"github.com/reoring/flatwire/callback"
)

var ctx = context.Background()

func rangeAndText() callback.Decl {
	return callback.Named(
		callback.F("first", fw.Seq(fw.Leaf(callback.Input("lo", "value")), fw.Leaf(callback.Input("hi", "value")))),
		callback.F("second", callback.Input("query", "value")),
	)
}

func TestWrapper_ReconstructsKeywordArguments(t *testing.T) {
	type params struct {
		First  [2]int `json:"first"`
		Second string `json:"second"`
	}
	var got params
	w, err := callback.New(func(p params) string {
		got = p
		return fmt.Sprintf("%s %d-%d", p.Second, p.First[0], p.First[1])
	}, callback.One(callback.Output("out", "children")), rangeAndText(), callback.Decl{})
	require.NoError(t, err)

	out, err := w.Handle(ctx, []any{1, 10, "hello"})
	require.NoError(t, err)
	assert.Equal(t, params{First: [2]int{1, 10}, Second: "hello"}, got)
	assert.Equal(t, []any{"hello 1-10"}, out)
}

func TestWrapper_KeywordArgumentsAsMapOrArgs(t *testing.T) {
	w, err := callback.New(func(m map[string]any) any { return m["first"] }, callback.One(callback.Output("out", "children")), rangeAndText(), callback.Decl{})
	require.NoError(t, err)
	out, err := w.Handle(ctx, []any{1, 10, "hello"})
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{1, 10}}, out)

	w, err = callback.New(callback.HandlerFunc(func(_ context.Context, a callback.Args) (any, error) {
		v, ok := a.Get("second")
		require.True(t, ok)
		assert.Equal(t, []callback.Name{callback.Keyword("first"), callback.Keyword("second")}, a.Names())
		assert.Equal(t, fw.KindSeq, a.Grouping(0).Kind())
		return v, nil
	}), callback.One(callback.Output("out", "children")), rangeAndText(), callback.Decl{})
	require.NoError(t, err)
	out, err = w.Handle(ctx, []any{1, 10, "hello"})
	require.NoError(t, err)
	assert.Equal(t, []any{"hello"}, out)
}

func TestWrapper_WrongFlatCount(t *testing.T) {
	w, err := callback.New(func(a, b any) int { return 0 },
		callback.One(callback.Output("out", "children")),
		callback.List(fw.Seq(fw.Leaf(callback.Input("a", "value")), fw.Leaf(callback.Input("b", "value")), fw.Leaf(callback.Input("c", "value")))),
		callback.List(callback.State("d", "value")),
	)
	require.NoError(t, err)

	_, err = w.Handle(ctx, []any{1, 2, 3})
	require.Error(t, err)
	assert.True(t, fw.HasCode(err, fw.CodeFlatCount))
	assert.Contains(t, err.Error(), "expected 4, received 3")
}

func TestWrapper_OutputLengthMismatchNamesEntry(t *testing.T) {
	w, err := callback.New(func(string) map[string]any {
		return map[string]any{"pair": []int{1, 2, 3}, "n": 1}
	},
		callback.Named(
			callback.F("pair", fw.Seq(fw.Leaf(callback.Output("a", "children")), fw.Leaf(callback.Output("b", "children")))),
			callback.F("n", callback.Output("c", "children")),
		),
		callback.One(callback.Input("q", "value")), callback.Decl{},
	)
	require.NoError(t, err)

	_, err = w.Handle(ctx, []any{"x"})
	iss, ok := fw.AsIssues(err)
	require.True(t, ok)
	require.Len(t, iss, 1)
	assert.Equal(t, fw.CodeLengthMismatch, iss[0].Code)
	assert.Equal(t, "/pair", iss[0].Path)
	assert.Equal(t, 2, iss[0].Params["expected"])
	assert.Equal(t, 3, iss[0].Params["got"])
}

func TestWrapper_OutputShapeErrors(t *testing.T) {
	outputs := callback.List(
		callback.Output("a", "children"),
		fw.Map(fw.E("x", fw.Leaf(callback.Output("b", "children"))), fw.E("y", fw.Leaf(callback.Output("c", "children")))),
	)
	cases := []struct {
		name string
		ret  any
		code string
		path string
	}{
		{"single value for two outputs", 1, fw.CodeInvalidType, "/"},
		{"too many entries", []any{1, map[string]any{"x": 1, "y": 2}, 3}, fw.CodeLengthMismatch, "/"},
		{"leaf for mapping", []any{1, 2}, fw.CodeInvalidType, "/1"},
		{"missing key", []any{1, map[string]any{"x": 1}}, fw.CodeKeyMismatch, "/1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, err := callback.New(func() any { return tc.ret }, outputs, callback.Decl{}, callback.Decl{})
			require.NoError(t, err)
			_, err = w.Handle(ctx, nil)
			iss, ok := fw.AsIssues(err)
			require.True(t, ok, "%v", err)
			assert.Equal(t, tc.code, iss[0].Code)
			assert.Equal(t, tc.path, iss[0].Path)
		})
	}
}

type figure struct{ Data []int }

// figures coerces figure values into graph widgets.
type figures struct{}

func (figures) IsContentProperty(p string) bool { return p == "children" }
func (figures) CoerceOutput(dep callback.Dependency, v any) any {
	if _, ok := v.(figure); ok {
		return newWidget("", "graph", "figure")
	}
	return v
}

func TestWrapper_CoercesContentOutputs(t *testing.T) {
	w, err := callback.New(func(n int) map[string]any {
		return map[string]any{"fig": figure{Data: []int{n}}, "count": 7}
	},
		callback.Named(callback.F("fig", callback.Output("panel", "children")), callback.F("count", callback.Output("counter", "children"))),
		callback.One(callback.Input("n", "value")), callback.Decl{},
		callback.WithCoercer(figures{}),
	)
	require.NoError(t, err)

	out, err := w.Handle(ctx, []any{3})
	require.NoError(t, err)
	require.Len(t, out, 2)
	g, ok := out[0].(*widget)
	require.True(t, ok, "got %T", out[0])
	assert.Equal(t, "graph", g.Type())
	assert.Equal(t, 7, out[1])
}

func TestWrapper_CoercionSkipsOtherProperties(t *testing.T) {
	w, err := callback.New(func() any { return figure{} },
		callback.One(callback.Output("store", "data")), callback.Decl{}, callback.Decl{},
		callback.WithCoercer(figures{}),
	)
	require.NoError(t, err)
	out, err := w.Handle(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{figure{}}, out)
}

func TestWrapper_PositionalConventions(t *testing.T) {
	inputs := callback.List(callback.Input("a", "value"), callback.Input("b", "value"))
	state := callback.List(callback.State("c", "value"))
	out1 := callback.One(callback.Output("o", "children"))

	t.Run("context and error", func(t *testing.T) {
		w, err := callback.New(func(ctx context.Context, a, b int, c string) (string, error) {
			require.NotNil(t, ctx)
			return fmt.Sprintf("%d%s", a+b, c), nil
		}, out1, inputs, state)
		require.NoError(t, err)
		out, err := w.Handle(ctx, []any{1.0, 2.0, "!"})
		require.NoError(t, err)
		assert.Equal(t, []any{"3!"}, out)
	})

	t.Run("variadic", func(t *testing.T) {
		w, err := callback.New(func(first int, rest ...any) int { return first + len(rest) }, out1, inputs, state)
		require.NoError(t, err)
		out, err := w.Handle(ctx, []any{10, "x", "y"})
		require.NoError(t, err)
		assert.Equal(t, []any{12}, out)
	})

	t.Run("json decoding into typed params", func(t *testing.T) {
		type point struct {
			X int `json:"x"`
			Y int `json:"y"`
		}
		w, err := callback.New(func(p point, ys []float64) float64 { return float64(p.X+p.Y) + ys[0] },
			out1,
			callback.List(
				fw.Map(fw.E("x", fw.Leaf(callback.Input("x", "value"))), fw.E("y", fw.Leaf(callback.Input("y", "value")))),
				fw.Seq(fw.Leaf(callback.Input("z", "value"))),
			),
			callback.Decl{})
		require.NoError(t, err)
		out, err := w.Handle(ctx, []any{1, 2, 0.5})
		require.NoError(t, err)
		assert.Equal(t, []any{3.5}, out)
	})

	t.Run("user error propagates", func(t *testing.T) {
		boom := errors.New("boom")
		w, err := callback.New(func(a, b, c any) (any, error) { return nil, boom }, out1, inputs, state)
		require.NoError(t, err)
		_, err = w.Handle(ctx, []any{1, 2, 3})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("prevent update", func(t *testing.T) {
		w, err := callback.New(func(a, b, c any) (any, error) {
			return nil, fmt.Errorf("skip: %w", callback.ErrPreventUpdate)
		}, out1, inputs, state)
		require.NoError(t, err)
		_, err = w.Handle(ctx, []any{1, 2, 3})
		assert.ErrorIs(t, err, callback.ErrPreventUpdate)
	})

	t.Run("bad argument", func(t *testing.T) {
		w, err := callback.New(func(a, b int, c string) int { return a }, out1, inputs, state)
		require.NoError(t, err)
		_, err = w.Handle(ctx, []any{"one", 2, "x"})
		require.True(t, fw.HasCode(err, fw.CodeInvalidArgument), "%v", err)
		iss, _ := fw.AsIssues(err)
		assert.Equal(t, "/0", iss[0].Path)
	})

	t.Run("grouping parameter", func(t *testing.T) {
		w, err := callback.New(func(g fw.Grouping[any]) int { return g.Len() },
			out1,
			callback.One(fw.Seq(fw.Leaf(callback.Input("a", "value")), fw.Leaf(callback.Input("b", "value")))),
			callback.Decl{})
		require.NoError(t, err)
		out, err := w.Handle(ctx, []any{1, 2})
		require.NoError(t, err)
		assert.Equal(t, []any{2}, out)
	})
}

func TestWrapper_InvalidFunctions(t *testing.T) {
	inputs := callback.List(callback.Input("a", "value"), callback.Input("b", "value"))
	out1 := callback.One(callback.Output("o", "children"))
	cases := []struct {
		name   string
		fn     any
		inputs callback.Decl
	}{
		{"not a function", 42, inputs},
		{"nil", nil, inputs},
		{"too few params", func(a int) int { return a }, inputs},
		{"too many params", func(a, b, c int) int { return a }, inputs},
		{"no results", func(a, b int) {}, inputs},
		{"second result not error", func(a, b int) (int, int) { return a, b }, inputs},
		{"error only", func(a, b int) error { return nil }, inputs},
		{"keyword without struct", func(a, b int) int { return a }, callback.Named(callback.F("a", callback.Input("a", "value")))},
		{"struct missing field", func(struct{ B int }) int { return 0 }, callback.Named(callback.F("a", callback.Input("a", "value")))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := callback.New(tc.fn, out1, tc.inputs, callback.Decl{})
			assert.True(t, fw.HasCode(err, fw.CodeInvalidFunction), "%v", err)
		})
	}
}

func TestWrapper_KeywordOutputsFromStruct(t *testing.T) {
	type result struct {
		Title string `json:"title"`
		Count int    `flatwire:"count"`
		note  string
	}
	w, err := callback.New(func(q string) result { return result{Title: q, Count: len(q), note: "x"} },
		callback.Named(callback.F("count", callback.Output("n", "children")), callback.F("title", callback.Output("t", "children"))),
		callback.One(callback.Input("q", "value")), callback.Decl{},
	)
	require.NoError(t, err)
	out, err := w.Handle(ctx, []any{"abc"})
	require.NoError(t, err)
	assert.Equal(t, []any{3, "abc"}, out)
}

func TestWrapper_NoUpdate(t *testing.T) {
	outputs := callback.Named(
		callback.F("a", callback.Output("a", "children")),
		callback.F("b", fw.Seq(fw.Leaf(callback.Output("b1", "children")), fw.Leaf(callback.Output("b2", "children")))),
	)
	var ret any
	w, err := callback.New(func() any { return ret }, outputs, callback.Decl{}, callback.Decl{})
	require.NoError(t, err)

	ret = callback.NoUpdate
	out, err := w.Handle(ctx, nil)
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, v := range out {
		assert.True(t, callback.IsNoUpdate(v))
	}

	ret = map[string]any{"a": 1, "b": callback.NoUpdate}
	out, err = w.Handle(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{1, callback.NoUpdate, callback.NoUpdate}, out)
	assert.Equal(t, callback.NoUpdate, ret.(map[string]any)["b"], "returned map must not be modified")

	ret = map[string]any{"a": callback.NoUpdate, "b": []any{callback.NoUpdate, 2}}
	out, err = w.Handle(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{callback.NoUpdate, callback.NoUpdate, 2}, out)
}

func TestWrapper_Deferred(t *testing.T) {
	var (
		mu      sync.Mutex
		pending []callback.Call
	)
	sched := callback.SchedulerFunc(func(_ context.Context, c callback.Call) error {
		mu.Lock()
		defer mu.Unlock()
		pending = append(pending, c)
		return nil
	})
	w, err := callback.New(func(q string) []any { return []any{strings.ToUpper(q), len(q)} },
		callback.List(callback.Output("a", "children"), callback.Output("b", "children")),
		callback.One(callback.Input("q", "value")), callback.Decl{},
		callback.WithInvoker(callback.Deferred{Scheduler: sched}),
	)
	require.NoError(t, err)

	out, err := w.Handle(ctx, []any{"go"})
	require.NoError(t, err)
	assert.Equal(t, []any{callback.NoUpdate, callback.NoUpdate}, out)

	require.Len(t, pending, 1)
	res, err := pending[0].Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{"GO", 2}, res)
	assert.True(t, fw.Check(res, pending[0].Outputs))

	w, err = callback.New(func(q string) []any { return nil },
		callback.List(callback.Output("a", "children"), callback.Output("b", "children")),
		callback.One(callback.Input("q", "value")), callback.Decl{},
		callback.WithInvoker(callback.Deferred{Scheduler: sched, Placeholder: []any{"loading", 0}}),
	)
	require.NoError(t, err)
	out, err = w.Handle(ctx, []any{"go"})
	require.NoError(t, err)
	assert.Equal(t, []any{"loading", 0}, out)
}

func TestWrapper_RegisterOnce(t *testing.T) {
	w, err := callback.New(func(a int, s string) int { return a },
		callback.One(callback.Output("o", "children")),
		callback.List(callback.Input("a", "value")),
		callback.List(callback.State("s", "value")),
		callback.PreventInitialCall(true),
		callback.WithName("demo"),
	)
	require.NoError(t, err)

	fail := true
	var got []callback.Registration
	reg := callback.RegistryFunc(func(_ context.Context, r callback.Registration) error {
		if fail {
			fail = false
			return errors.New("protocol unavailable")
		}
		got = append(got, r)
		return nil
	})

	require.Error(t, w.Register(ctx, reg))
	require.NoError(t, w.Register(ctx, reg))
	err = w.Register(ctx, reg)
	assert.True(t, fw.HasCode(err, fw.CodeAlreadyRegistered))

	require.Len(t, got, 1)
	r := got[0]
	assert.Equal(t, "demo", r.Name)
	assert.Equal(t, []callback.Target{{ID: "o", Property: "children"}}, r.Outputs)
	assert.Equal(t, []callback.Target{{ID: "a", Property: "value"}}, r.Inputs)
	assert.Equal(t, []callback.Target{{ID: "s", Property: "value"}}, r.State)
	assert.True(t, r.PreventInitialCall)
	assert.False(t, r.MultiOutput)

	out, err := r.Handler(ctx, []any{5, "x"})
	require.NoError(t, err)
	assert.Equal(t, []any{5}, out)
}

func TestWrapper_ConcurrentCalls(t *testing.T) {
	w, err := callback.New(func(a, b int) []int { return []int{a + b, a * b} },
		callback.One(fw.Seq(fw.Leaf(callback.Output("sum", "children")), fw.Leaf(callback.Output("product", "children")))),
		callback.List(callback.Input("a", "value"), callback.Input("b", "value")), callback.Decl{},
	)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := w.Handle(ctx, []any{i, 2})
			assert.NoError(t, err)
			assert.Equal(t, []any{i + 2, i * 2}, out)
		}(i)
	}
	wg.Wait()
}

func TestWrapper_NumericArgumentsMustBeExact(t *testing.T) {
	inputs := callback.List(callback.Input("a", "value"), callback.Input("b", "value"))
	out1 := callback.One(callback.Output("o", "children"))
	w, err := callback.New(func(n int, m int8) []any { return []any{n, m} },
		callback.One(fw.Seq(fw.Leaf(callback.Output("n", "children")), fw.Leaf(callback.Output("m", "children")))),
		inputs, callback.Decl{})
	require.NoError(t, err)

	out, err := w.Handle(ctx, []any{2.0, 100.0})
	require.NoError(t, err)
	assert.Equal(t, []any{2, int8(100)}, out)

	cases := []struct {
		name string
		flat []any
		path string
	}{
		{"fraction", []any{1.7, 1.0}, "/0"},
		{"int8 overflow", []any{1.0, 300.0}, "/1"},
		{"int8 overflow from int", []any{1, -129}, "/1"},
		{"infinity", []any{math.Inf(1), 1.0}, "/0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := w.Handle(ctx, tc.flat)
			iss, ok := fw.AsIssues(err)
			require.True(t, ok, "%v", err)
			assert.Equal(t, fw.CodeInvalidArgument, iss[0].Code)
			assert.Equal(t, tc.path, iss[0].Path)
		})
	}

	u, err := callback.New(func(a uint8, b float32) float64 { return float64(a) + float64(b) }, out1, inputs, callback.Decl{})
	require.NoError(t, err)
	out, err = u.Handle(ctx, []any{7, 0.5})
	require.NoError(t, err)
	assert.Equal(t, []any{7.5}, out)
	for _, flat := range [][]any{{-1, 0.5}, {256, 0.5}, {1, 1e300}, {uint64(1 << 63), 0.5}} {
		_, err := u.Handle(ctx, flat)
		assert.True(t, fw.HasCode(err, fw.CodeInvalidArgument), "%v: %v", flat, err)
	}
}

func TestWrapper_DeferredRequiresScheduler(t *testing.T) {
	for _, inv := range []callback.Invoker{callback.Deferred{}, &callback.Deferred{}, nil} {
		_, err := callback.New(func(q string) string { return q },
			callback.One(callback.Output("o", "children")),
			callback.One(callback.Input("q", "value")), callback.Decl{},
			callback.WithInvoker(inv),
		)
		assert.True(t, fw.HasCode(err, fw.CodeInvalidFunction), "%T: %v", inv, err)
	}

	_, err := callback.Deferred{}.Invoke(ctx, callback.Call{Name: "x"})
	assert.True(t, fw.HasCode(err, fw.CodeInvalidFunction), "%v", err)
}

func TestWrapper_PanicBecomesError(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name string
		fn   any
	}{
		{"reflected", func(q string) string { panic(boom) }},
		{"native", callback.HandlerFunc(func(context.Context, callback.Args) (any, error) { panic(boom) })},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, err := callback.New(tc.fn,
				callback.One(callback.Output("o", "children")),
				callback.One(callback.Input("q", "value")), callback.Decl{},
				callback.WithName("exploding"),
			)
			require.NoError(t, err)

			var out []any
			require.NotPanics(t, func() { out, err = w.Handle(ctx, []any{"go"}) })
			assert.Nil(t, out)
			var pe *callback.PanicError
			require.True(t, errors.As(err, &pe), "%v", err)
			assert.Equal(t, "exploding", pe.Callback)
			assert.NotEmpty(t, pe.Stack)
			assert.ErrorIs(t, err, boom)
			assert.Contains(t, err.Error(), "callback exploding panicked: boom")
		})
	}
}
