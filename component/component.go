// Package component is a small UI element model for callback declarations:
// typed elements with a fixed property set, the inference policy that turns
// bare patterns into elements, and the coercion policy that turns returned
// figures and tables into elements.
package component

import (
	"fmt"
	"sort"
	"sync"

	j "github.com/goccy/go-json"

	fw "github.com/reoring/flatwire"
)

// Element types.
const (
	TypeDropdown    = "Dropdown"
	TypeRangeSlider = "RangeSlider"
	TypeTextInput   = "TextInput"
	TypeCheckbox    = "Checkbox"
	TypeGraph       = "Graph"
	TypeDataTable   = "DataTable"
	TypeDiv         = "Div"
)

type kindSpec struct {
	props []string // first entry is the default property
}

var kinds = map[string]kindSpec{
	TypeDropdown:    {props: []string{"value", "options", "multi", "clearable", "placeholder"}},
	TypeRangeSlider: {props: []string{"value", "min", "max", "step", "marks"}},
	TypeTextInput:   {props: []string{"value", "placeholder", "debounce"}},
	TypeCheckbox:    {props: []string{"value", "label"}},
	TypeGraph:       {props: []string{"figure", "config", "clickData", "hoverData", "relayoutData"}},
	TypeDataTable:   {props: []string{"data", "columns", "page_size", "selected_rows"}},
	TypeDiv:         {props: []string{"children", "title"}},
}

// Types lists the known element types in lexical order.
func Types() []string {
	out := make([]string, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Component is a UI element. It implements callback.Handle; its id may be
// assigned once, after construction.
type Component struct {
	mu    sync.RWMutex
	id    string
	kind  string
	props map[string]any
}

// New builds an element of a known type. Unknown types and properties are
// reported as invalid_property issues.
func New(kind string, props map[string]any) (*Component, error) {
	spec, ok := kinds[kind]
	if !ok {
		return nil, fw.Fail(fw.Root(), fw.CodeInvalidProperty, map[string]any{"property": "type", "type": kind})
	}
	c := &Component{kind: kind, props: make(map[string]any, len(props))}
	for k, v := range props {
		if !contains(spec.props, k) {
			return nil, fw.Fail(fw.Root().Field(k), fw.CodeInvalidProperty, map[string]any{"property": k, "type": kind})
		}
		c.props[k] = v
	}
	return c, nil
}

func mustNew(kind string, props map[string]any) *Component {
	c, err := New(kind, props)
	if err != nil {
		panic(err)
	}
	return c
}

// Dropdown offers a choice among options; the first option is selected.
func Dropdown(options ...any) *Component {
	props := map[string]any{"options": append([]any(nil), options...)}
	if len(options) > 0 {
		props["value"] = options[0]
	}
	return mustNew(TypeDropdown, props)
}

// RangeSlider selects an interval within [lo, hi]. A zero step is omitted.
func RangeSlider(lo, hi, step float64) *Component {
	props := map[string]any{"min": lo, "max": hi, "value": []any{lo, hi}}
	if step != 0 {
		props["step"] = step
	}
	return mustNew(TypeRangeSlider, props)
}

// TextInput is a free text field.
func TextInput(value string) *Component {
	return mustNew(TypeTextInput, map[string]any{"value": value})
}

// Checkbox is a boolean toggle.
func Checkbox(checked bool) *Component {
	return mustNew(TypeCheckbox, map[string]any{"value": checked})
}

// Graph displays a figure.
func Graph(figure any) *Component {
	return mustNew(TypeGraph, map[string]any{"figure": figure})
}

// DataTable displays rows of records.
func DataTable(rows []map[string]any) *Component {
	props := map[string]any{"data": rows}
	if cols := columns(rows); len(cols) > 0 {
		props["columns"] = cols
	}
	return mustNew(TypeDataTable, props)
}

// Div holds arbitrary content.
func Div(children any) *Component {
	return mustNew(TypeDiv, map[string]any{"children": children})
}

// WithID sets the id and returns c.
func (c *Component) WithID(id string) *Component {
	c.SetID(id)
	return c
}

func (c *Component) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

func (c *Component) SetID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = id
}

func (c *Component) Type() string { return c.kind }

func (c *Component) HasProperty(name string) bool { return contains(kinds[c.kind].props, name) }

func (c *Component) DefaultProperty() string { return kinds[c.kind].props[0] }

// Get returns a property value.
func (c *Component) Get(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.props[name]
	return v, ok
}

func (c *Component) String() string {
	if id := c.ID(); id != "" {
		return fmt.Sprintf("%s#%s", c.kind, id)
	}
	return c.kind
}

// MarshalJSON encodes the element as {"type", "id", "props"}.
func (c *Component) MarshalJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return j.Marshal(struct {
		Type  string         `json:"type"`
		ID    string         `json:"id,omitempty"`
		Props map[string]any `json:"props"`
	}{c.kind, c.id, c.props})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func columns(rows []map[string]any) []map[string]any {
	if len(rows) == 0 {
		return nil
	}
	names := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]map[string]any, len(names))
	for i, n := range names {
		out[i] = map[string]any{"name": n, "id": n}
	}
	return out
}
