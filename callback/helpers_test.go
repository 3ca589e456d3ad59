package callback_test

import "github.com/reoring/flatwire/callback"

// widget is a minimal callback.Handle.
type widget struct {
	id    string
	kind  string
	props []string
}

func newWidget(id, kind string, props ...string) *widget {
	if len(props) == 0 {
		props = []string{"value"}
	}
	return &widget{id: id, kind: kind, props: props}
}

func (w *widget) ID() string              { return w.id }
func (w *widget) SetID(id string)         { w.id = id }
func (w *widget) Type() string            { return w.kind }
func (w *widget) DefaultProperty() string { return w.props[0] }

func (w *widget) HasProperty(name string) bool {
	for _, p := range w.props {
		if p == name {
			return true
		}
	}
	return false
}

// patternWidgets infers a widget per pattern kind, named after the kind.
var patternWidgets = callback.LeafInferrerFunc(func(p callback.Pattern, role callback.Role) (callback.Dependency, error) {
	if p.Kind == callback.PatternElement {
		return callback.Dependency{Ref: callback.HandleRef(p.Element), Property: p.Element.DefaultProperty(), Role: role}, nil
	}
	if role == callback.RoleOutput {
		return callback.Dependency{Ref: callback.HandleRef(newWidget("", "div", "children")), Property: "children", Role: role}, nil
	}
	return callback.Dependency{Ref: callback.HandleRef(newWidget("", p.Kind.String())), Property: "value", Role: role}, nil
})

func keys(deps []callback.Dependency) []string {
	out := make([]string, len(deps))
	for i, d := range deps {
		out[i] = d.Key()
	}
	return out
}
