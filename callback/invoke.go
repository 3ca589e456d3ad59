package callback

import (
	"context"
	"fmt"
	"math"
	"reflect"

	j "github.com/goccy/go-json"

	fw "github.com/reoring/flatwire"
	"github.com/reoring/flatwire/internal/walk"
)

var (
	ctxType      = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType      = reflect.TypeOf((*error)(nil)).Elem()
	groupingType = reflect.TypeOf(fw.Grouping[any]{})
	argsType     = reflect.TypeOf(Args{})
)

// handlerOf returns fn as a HandlerFunc, adapting plain Go functions by
// reflection:
//
//   - an optional leading context.Context parameter;
//   - positional and single forms: one parameter per argument in binding
//     order, the last one may be variadic;
//   - keyword form: one struct (fields named as ByAttr resolves them) or one
//     string-keyed map;
//   - results (R) or (R, error).
//
// Each argument value is assigned when assignable, converted between numeric
// kinds, or else decoded from its JSON encoding. A fw.Grouping[any] parameter
// receives the argument Grouping itself.
func handlerOf(fn any, sig *Signature) (HandlerFunc, error) {
	switch f := fn.(type) {
	case nil:
		return nil, invalidFunction("function is nil")
	case HandlerFunc:
		return f, nil
	case func(context.Context, Args) (any, error):
		return f, nil
	}
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		return nil, invalidFunction(fmt.Sprintf("%T is not a function", fn))
	}
	if fv.IsNil() {
		return nil, invalidFunction("function is nil")
	}

	withCtx := ft.NumIn() > 0 && ft.In(0) == ctxType
	first := 0
	if withCtx {
		first = 1
	}
	params := make([]reflect.Type, 0, ft.NumIn()-first)
	for i := first; i < ft.NumIn(); i++ {
		params = append(params, ft.In(i))
	}

	switch ft.NumOut() {
	case 1:
		if ft.Out(0) == errType {
			return nil, invalidFunction("a callback must return a value")
		}
	case 2:
		if ft.Out(1) != errType {
			return nil, invalidFunction("second result must be error")
		}
	default:
		return nil, invalidFunction(fmt.Sprintf("want 1 or 2 results, have %d", ft.NumOut()))
	}
	withErr := ft.NumOut() == 2

	var build func(Args) ([]reflect.Value, error)
	var err error
	if sig.InputForm == FormKeyword {
		build, err = keywordParams(params, sig)
	} else {
		build, err = positionalParams(params, ft.IsVariadic(), len(sig.Args))
	}
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, args Args) (any, error) {
		in, err := build(args)
		if err != nil {
			return nil, err
		}
		if withCtx {
			in = append([]reflect.Value{reflect.ValueOf(&ctx).Elem()}, in...)
		}
		var out []reflect.Value
		if ft.IsVariadic() {
			out = fv.CallSlice(in)
		} else {
			out = fv.Call(in)
		}
		if withErr && !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}
		return out[0].Interface(), nil
	}, nil
}

func invalidFunction(detail string) error {
	return fw.Fail(fw.Root(), fw.CodeInvalidFunction, map[string]any{"detail": detail})
}

func positionalParams(params []reflect.Type, variadic bool, n int) (func(Args) ([]reflect.Value, error), error) {
	fixed := len(params)
	if variadic {
		fixed--
		if n < fixed {
			return nil, invalidFunction(fmt.Sprintf("want at least %d arguments, have %d", fixed, n))
		}
	} else if n != fixed {
		return nil, invalidFunction(fmt.Sprintf("want %d arguments, have %d", fixed, n))
	}
	return func(args Args) ([]reflect.Value, error) {
		in := make([]reflect.Value, 0, len(params))
		for i := 0; i < fixed; i++ {
			v, err := argValue(args, i, params[i])
			if err != nil {
				return nil, err
			}
			in = append(in, v)
		}
		if variadic {
			st := params[fixed]
			rest := reflect.MakeSlice(st, 0, args.Len()-fixed)
			for i := fixed; i < args.Len(); i++ {
				v, err := argValue(args, i, st.Elem())
				if err != nil {
					return nil, err
				}
				rest = reflect.Append(rest, v)
			}
			in = append(in, rest)
		}
		return in, nil
	}, nil
}

func keywordParams(params []reflect.Type, sig *Signature) (func(Args) ([]reflect.Value, error), error) {
	if len(params) != 1 {
		return nil, invalidFunction(fmt.Sprintf("keyword arguments need one struct or map parameter, have %d parameters", len(params)))
	}
	pt := params[0]
	if pt == argsType {
		return func(args Args) ([]reflect.Value, error) { return []reflect.Value{reflect.ValueOf(args)}, nil }, nil
	}
	st, ptr := pt, false
	if st.Kind() == reflect.Pointer {
		st, ptr = st.Elem(), true
	}
	switch {
	case st.Kind() == reflect.Struct:
		fields := walk.Fields(st)
		idx := make([]int, len(sig.Args))
		for i, b := range sig.Args {
			f, ok := fields[b.Name.Key()]
			if !ok {
				return nil, invalidFunction(fmt.Sprintf("%s has no field for argument %q", st, b.Name.Key()))
			}
			idx[i] = f
		}
		return func(args Args) ([]reflect.Value, error) {
			sv := reflect.New(st).Elem()
			for i, f := range idx {
				v, err := argValue(args, i, st.Field(f).Type)
				if err != nil {
					return nil, err
				}
				sv.Field(f).Set(v)
			}
			if ptr {
				return []reflect.Value{sv.Addr()}, nil
			}
			return []reflect.Value{sv}, nil
		}, nil
	case pt.Kind() == reflect.Map && pt.Key().Kind() == reflect.String:
		return func(args Args) ([]reflect.Value, error) {
			m := reflect.MakeMapWithSize(pt, args.Len())
			for i, n := range args.names {
				v, err := argValue(args, i, pt.Elem())
				if err != nil {
					return nil, err
				}
				m.SetMapIndex(reflect.ValueOf(n.Key()).Convert(pt.Key()), v)
			}
			return []reflect.Value{m}, nil
		}, nil
	}
	return nil, invalidFunction(fmt.Sprintf("keyword arguments need a struct or map parameter, have %s", pt))
}

func argValue(args Args, i int, t reflect.Type) (reflect.Value, error) {
	if t == groupingType {
		return reflect.ValueOf(args.values[i]), nil
	}
	v, err := convert(args.At(i), t)
	if err != nil {
		it := fw.NewIssue(args.names[i].path(fw.Root()), fw.CodeInvalidArgument, map[string]any{"name": args.names[i].String(), "detail": err.Error()})
		it.Cause = err
		return reflect.Value{}, fw.Issues{it}
	}
	return v, nil
}

// convert produces a value of type t from v.
func convert(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		out := reflect.New(t).Elem()
		out.Set(rv)
		return out, nil
	}
	if numeric(rv.Kind()) && numeric(t.Kind()) {
		return exact(rv, t)
	}
	if rv.Kind() == t.Kind() && rv.Kind() != reflect.Struct && rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	b, err := j.Marshal(v)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("cannot use %T as %s: %w", v, t, err)
	}
	out := reflect.New(t)
	if err := j.Unmarshal(b, out.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("cannot use %T as %s: %w", v, t, err)
	}
	return out.Elem(), nil
}

// exact converts between numeric kinds only when the value is represented
// exactly. Narrowing between float kinds needs only to stay in range.
func exact(rv reflect.Value, t reflect.Type) (reflect.Value, error) {
	overflow := fmt.Errorf("%v overflows %s", rv.Interface(), t)
	switch {
	case isFloat(t.Kind()):
		if isFloat(rv.Kind()) {
			if reflect.Zero(t).OverflowFloat(rv.Float()) {
				return reflect.Value{}, overflow
			}
			return rv.Convert(t), nil
		}
		out := rv.Convert(t)
		if out.Convert(rv.Type()).Interface() != rv.Interface() {
			return reflect.Value{}, fmt.Errorf("%v cannot be represented as %s", rv.Interface(), t)
		}
		return out, nil
	case isSigned(t.Kind()):
		var i int64
		switch {
		case isFloat(rv.Kind()):
			f := rv.Float()
			if err := integral(f); err != nil {
				return reflect.Value{}, err
			}
			if f < -(1<<63) || f >= 1<<63 {
				return reflect.Value{}, overflow
			}
			i = int64(f)
		case isSigned(rv.Kind()):
			i = rv.Int()
		default:
			u := rv.Uint()
			if u > math.MaxInt64 {
				return reflect.Value{}, overflow
			}
			i = int64(u)
		}
		if reflect.Zero(t).OverflowInt(i) {
			return reflect.Value{}, overflow
		}
		return reflect.ValueOf(i).Convert(t), nil
	default:
		var u uint64
		switch {
		case isFloat(rv.Kind()):
			f := rv.Float()
			if err := integral(f); err != nil {
				return reflect.Value{}, err
			}
			if f < 0 || f >= 1<<64 {
				return reflect.Value{}, overflow
			}
			u = uint64(f)
		case isSigned(rv.Kind()):
			if rv.Int() < 0 {
				return reflect.Value{}, overflow
			}
			u = uint64(rv.Int())
		default:
			u = rv.Uint()
		}
		if reflect.Zero(t).OverflowUint(u) {
			return reflect.Value{}, overflow
		}
		return reflect.ValueOf(u).Convert(t), nil
	}
}

func integral(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return fmt.Errorf("%v is not an integer", f)
	}
	return nil
}

func isSigned(k reflect.Kind) bool { return k >= reflect.Int && k <= reflect.Int64 }

func isFloat(k reflect.Kind) bool { return k == reflect.Float32 || k == reflect.Float64 }

func numeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
