package callback

import (
	"fmt"
	"strings"

	j "github.com/goccy/go-json"

	fw "github.com/reoring/flatwire"
)

// Role tags a Dependency with its part in a callback.
type Role int

const (
	RoleAuto Role = iota // Resolved from the bucket the dependency is declared in.
	RoleInput
	RoleState
	RoleOutput
)

func (r Role) String() string {
	switch r {
	case RoleAuto:
		return "auto"
	case RoleInput:
		return "input"
	case RoleState:
		return "state"
	case RoleOutput:
		return "output"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

func (r Role) valid() bool { return r >= RoleAuto && r <= RoleOutput }

// ParseRole parses "input", "state", "output" or "auto" (case-insensitive).
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto", "":
		return RoleAuto, nil
	case "input":
		return RoleInput, nil
	case "state":
		return RoleState, nil
	case "output":
		return RoleOutput, nil
	}
	return RoleAuto, fw.Fail(fw.Root(), fw.CodeInvalidRole, map[string]any{"role": s})
}

// Handle is the part of a UI component this package relies on. Components
// receive an id on first use when they have none.
type Handle interface {
	ID() string
	SetID(id string)
	Type() string
	HasProperty(name string) bool
	// DefaultProperty names the property bound when a handle is used as a
	// bare argument.
	DefaultProperty() string
}

// Ref identifies the external element a Dependency points at: a literal id,
// a key structure, or a Handle that is assigned an id lazily.
type Ref struct {
	id     string
	key    map[string]any
	handle Handle
}

// ID references an element by literal id.
func ID(id string) Ref { return Ref{id: id} }

// KeyRef references an element by a key structure (for example
// {"type": "filter", "index": 2}). The id is the canonical JSON encoding.
func KeyRef(key map[string]any) Ref {
	cp := make(map[string]any, len(key))
	for k, v := range key {
		cp[k] = v
	}
	return Ref{key: cp}
}

// HandleRef references a UI component.
func HandleRef(h Handle) Ref { return Ref{handle: h} }

// RefOf converts a string, a key map, a Handle or a Ref into a Ref.
func RefOf(target any) (Ref, error) {
	switch t := target.(type) {
	case Ref:
		return t, nil
	case string:
		return ID(t), nil
	case map[string]any:
		return KeyRef(t), nil
	case Handle:
		return HandleRef(t), nil
	}
	return Ref{}, fmt.Errorf("callback: unsupported dependency target %T", target)
}

// Handle returns the referenced component, if any.
func (r Ref) Handle() Handle { return r.handle }

// IsKey reports whether the reference is a key structure.
func (r Ref) IsKey() bool { return r.key != nil }

// Resolve returns the string id. A handle without an id is given one from ids
// first.
func (r Ref) Resolve(ids IDAllocator) (string, error) {
	switch {
	case r.handle != nil:
		if r.handle.ID() == "" {
			if ids == nil {
				return "", fmt.Errorf("callback: %s handle has no id and no allocator is configured", r.handle.Type())
			}
			r.handle.SetID(ids.NextID(r.handle.Type()))
		}
		return r.handle.ID(), nil
	case r.key != nil:
		b, err := j.Marshal(r.key)
		if err != nil {
			return "", fmt.Errorf("callback: encoding key id: %w", err)
		}
		return string(b), nil
	}
	return r.id, nil
}

// String renders the id without allocating one.
func (r Ref) String() string {
	if r.handle != nil {
		if id := r.handle.ID(); id != "" {
			return id
		}
		return "<" + r.handle.Type() + ">"
	}
	if r.key != nil {
		id, _ := r.Resolve(nil)
		return id
	}
	return r.id
}

// Dependency is a Grouping leaf binding an element property to a role. It is
// a value: derive modified copies with the With* methods.
type Dependency struct {
	Ref      Ref
	Property string
	Role     Role
	Label    string
}

func newDependency(target any, property string, role Role) Dependency {
	ref, err := RefOf(target)
	if err != nil {
		panic(err)
	}
	return Dependency{Ref: ref, Property: property, Role: role}
}

// Input declares an Input dependency. target is an id string, a key map, a
// Handle or a Ref; anything else panics.
func Input(target any, property string) Dependency {
	return newDependency(target, property, RoleInput)
}

// State declares a State dependency.
func State(target any, property string) Dependency {
	return newDependency(target, property, RoleState)
}

// Output declares an Output dependency.
func Output(target any, property string) Dependency {
	return newDependency(target, property, RoleOutput)
}

// Auto declares a dependency whose role comes from the bucket it is used in.
func Auto(target any, property string) Dependency {
	return newDependency(target, property, RoleAuto)
}

// WithLabel returns a copy carrying the label.
func (d Dependency) WithLabel(label string) Dependency { d.Label = label; return d }

// WithRole returns a copy with the role replaced.
func (d Dependency) WithRole(r Role) Dependency { d.Role = r; return d }

// Validate checks the role tag and, for handles, that the property is one
// the handle declares.
func (d Dependency) Validate() error {
	if !d.Role.valid() {
		return fw.Fail(fw.Root(), fw.CodeInvalidRole, map[string]any{"role": d.Role.String()})
	}
	if d.Property == "" {
		return fw.Fail(fw.Root(), fw.CodeInvalidProperty, map[string]any{"property": `""`, "type": d.Ref.String()})
	}
	if h := d.Ref.Handle(); h != nil && !h.HasProperty(d.Property) {
		return fw.Fail(fw.Root(), fw.CodeInvalidProperty, map[string]any{"property": d.Property, "type": h.Type()})
	}
	return nil
}

// Target returns the (id, property) pair handed to the protocol. The id is
// resolved without allocation, so call it on normalized dependencies.
func (d Dependency) Target() Target {
	return Target{ID: d.Ref.String(), Property: d.Property}
}

// Key renders "id.property".
func (d Dependency) Key() string { return d.Target().String() }

func (d Dependency) String() string {
	s := d.Role.String() + "(" + d.Key()
	if d.Label != "" {
		s += " " + d.Label
	}
	return s + ")"
}

// Target is an (id, property) pair as the protocol sees it.
type Target struct {
	ID       string `json:"id"`
	Property string `json:"property"`
}

func (t Target) String() string { return t.ID + "." + t.Property }

// Targets maps dependencies to protocol targets.
func Targets(deps []Dependency) []Target {
	out := make([]Target, len(deps))
	for i, d := range deps {
		out[i] = d.Target()
	}
	return out
}
