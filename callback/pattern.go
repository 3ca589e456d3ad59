package callback

import (
	"fmt"
	"reflect"

	fw "github.com/reoring/flatwire"
)

// PatternKind enumerates the bare-argument classes a LeafInferrer handles.
type PatternKind int

const (
	PatternOptions PatternKind = iota // a list of choices
	PatternRange                      // min, max and an optional step
	PatternText                       // a string
	PatternToggle                     // a boolean
	PatternElement                    // an already built Handle
	PatternCustom                     // produced by a fallback Classifier
)

func (k PatternKind) String() string {
	switch k {
	case PatternOptions:
		return "options"
	case PatternRange:
		return "range"
	case PatternText:
		return "text"
	case PatternToggle:
		return "toggle"
	case PatternElement:
		return "element"
	case PatternCustom:
		return "custom"
	default:
		return fmt.Sprintf("PatternKind(%d)", int(k))
	}
}

// Pattern is a classified bare argument. Only the fields of its Kind are set.
type Pattern struct {
	Kind    PatternKind
	Options []any
	Min     float64
	Max     float64
	Step    float64 // zero when not given
	Text    string
	Toggle  bool
	Element Handle
	Custom  any
}

// Options builds an options pattern.
func Options(choices ...any) Pattern {
	return Pattern{Kind: PatternOptions, Options: append([]any(nil), choices...)}
}

// Range builds a range pattern; step may be zero.
func Range(lo, hi, step float64) Pattern {
	return Pattern{Kind: PatternRange, Min: lo, Max: hi, Step: step}
}

// Classifier recognizes library-specific bare arguments that the built-in
// classes do not cover.
type Classifier func(v any) (Pattern, bool)

// ClassifyPattern maps a bare argument onto a Pattern:
//
//	Pattern                 -> itself
//	Handle                  -> element
//	bool                    -> toggle
//	string                  -> text
//	[2]N or [3]N (numeric)  -> range (arrays are fixed-arity tuples)
//	any other slice/array   -> options
//
// Anything else is offered to fallback.
func ClassifyPattern(v any, fallback Classifier) (Pattern, bool) {
	switch t := v.(type) {
	case Pattern:
		return t, true
	case Handle:
		return Pattern{Kind: PatternElement, Element: t}, true
	case bool:
		return Pattern{Kind: PatternToggle, Toggle: t}, true
	case string:
		return Pattern{Kind: PatternText, Text: t}, true
	case nil:
		return classifyFallback(v, fallback)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Array:
		if nums, ok := numbers(rv); ok && (len(nums) == 2 || len(nums) == 3) {
			p := Pattern{Kind: PatternRange, Min: nums[0], Max: nums[1]}
			if len(nums) == 3 {
				p.Step = nums[2]
			}
			return p, true
		}
		fallthrough
	case reflect.Slice:
		opts := make([]any, rv.Len())
		for i := range opts {
			opts[i] = rv.Index(i).Interface()
		}
		return Pattern{Kind: PatternOptions, Options: opts}, true
	}
	return classifyFallback(v, fallback)
}

func classifyFallback(v any, fallback Classifier) (Pattern, bool) {
	if fallback == nil {
		return Pattern{}, false
	}
	p, ok := fallback(v)
	if ok && p.Kind == PatternCustom && p.Custom == nil {
		p.Custom = v
	}
	return p, ok
}

func numbers(rv reflect.Value) ([]float64, bool) {
	out := make([]float64, rv.Len())
	for i := range out {
		e := rv.Index(i)
		if e.Kind() == reflect.Interface {
			e = e.Elem()
		}
		switch e.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			out[i] = float64(e.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			out[i] = float64(e.Uint())
		case reflect.Float32, reflect.Float64:
			out[i] = e.Float()
		default:
			return nil, false
		}
	}
	return out, true
}

// LeafInferrer turns a classified bare argument into a Dependency on a
// concrete UI element. role is RoleInput, RoleState or RoleOutput.
type LeafInferrer interface {
	InferLeaf(p Pattern, role Role) (Dependency, error)
}

// LeafInferrerFunc adapts a function to LeafInferrer.
type LeafInferrerFunc func(p Pattern, role Role) (Dependency, error)

func (f LeafInferrerFunc) InferLeaf(p Pattern, role Role) (Dependency, error) { return f(p, role) }

// ElementsOnly infers dependencies for prebuilt handles only, binding their
// default property. It is the inferrer used when none is configured.
var ElementsOnly LeafInferrer = LeafInferrerFunc(func(p Pattern, role Role) (Dependency, error) {
	if p.Kind != PatternElement || p.Element == nil {
		return Dependency{}, fw.Fail(fw.Root(), fw.CodeUnsupportedPattern, map[string]any{"type": p.Kind.String()})
	}
	return Dependency{Ref: HandleRef(p.Element), Property: p.Element.DefaultProperty(), Role: role}, nil
})
