package component

import (
	"reflect"

	fw "github.com/reoring/flatwire"
	"github.com/reoring/flatwire/callback"
)

// Figure is implemented by plotting values.
type Figure interface {
	Figure() map[string]any
}

// Table is implemented by tabular values.
type Table interface {
	Records() []map[string]any
}

// FigureOf reports whether v is a figure: a Figure, or a map with a "data"
// trace list.
func FigureOf(v any) (any, bool) {
	switch f := v.(type) {
	case Figure:
		return f.Figure(), true
	case map[string]any:
		if data, ok := f["data"]; ok && isList(data) {
			return f, true
		}
	}
	return nil, false
}

// TableOf reports whether v is tabular: a Table or a slice of records.
func TableOf(v any) ([]map[string]any, bool) {
	switch t := v.(type) {
	case Table:
		return t.Records(), true
	case []map[string]any:
		return t, true
	}
	return nil, false
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// IsContentProperty reports whether property holds free-form content that
// may be replaced by an element.
func IsContentProperty(property string) bool { return property == "children" }

// Inferrer builds elements for bare patterns. OnCreate, when set, sees every
// element it builds so templates can place them in a layout.
type Inferrer struct {
	OnCreate func(*Component)
}

var _ callback.LeafInferrer = Inferrer{}

// InferLeaf maps options to a Dropdown, a range to a RangeSlider, text to a
// TextInput and a toggle to a Checkbox, binding each element's value. An
// output of any pattern except an element becomes a Div bound by children.
func (in Inferrer) InferLeaf(p callback.Pattern, role callback.Role) (callback.Dependency, error) {
	if p.Kind == callback.PatternElement || p.Kind == callback.PatternCustom {
		h, ok := p.Element, p.Element != nil
		if p.Kind == callback.PatternCustom {
			h, ok = p.Custom.(callback.Handle)
		}
		if !ok {
			return callback.Dependency{}, fw.Fail(fw.Root(), fw.CodeUnsupportedPattern, map[string]any{"type": p.Kind.String()})
		}
		return callback.Dependency{Ref: callback.HandleRef(h), Property: h.DefaultProperty(), Role: role}, nil
	}

	var c *Component
	switch {
	case role == callback.RoleOutput:
		c = Div(nil)
	case p.Kind == callback.PatternOptions:
		c = Dropdown(p.Options...)
	case p.Kind == callback.PatternRange:
		c = RangeSlider(p.Min, p.Max, p.Step)
	case p.Kind == callback.PatternText:
		c = TextInput(p.Text)
	case p.Kind == callback.PatternToggle:
		c = Checkbox(p.Toggle)
	default:
		return callback.Dependency{}, fw.Fail(fw.Root(), fw.CodeUnsupportedPattern, map[string]any{"type": p.Kind.String()})
	}
	if in.OnCreate != nil {
		in.OnCreate(c)
	}
	return callback.Dependency{Ref: callback.HandleRef(c), Property: c.DefaultProperty(), Role: role}, nil
}

// Coercer replaces figures with Graphs and tables with DataTables.
type Coercer struct{}

var _ callback.Coercer = Coercer{}

func (Coercer) IsContentProperty(property string) bool { return IsContentProperty(property) }

func (Coercer) CoerceOutput(_ callback.Dependency, v any) any {
	if fig, ok := FigureOf(v); ok {
		return Graph(fig)
	}
	if rows, ok := TableOf(v); ok {
		return DataTable(rows)
	}
	return v
}
