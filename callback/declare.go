package callback

import (
	"strconv"

	fw "github.com/reoring/flatwire"
)

// Form is the shape a bucket was declared in. It decides the calling
// convention for inputs and the expected shape of the return value for
// outputs.
type Form int

const (
	FormNone       Form = iota // nothing declared
	FormSingle                 // one bare entry: a single unwrapped value
	FormPositional             // an ordered list of entries
	FormKeyword                // name-keyed entries
)

func (f Form) String() string {
	switch f {
	case FormNone:
		return "none"
	case FormSingle:
		return "single"
	case FormPositional:
		return "positional"
	case FormKeyword:
		return "keyword"
	}
	return "Form(" + strconv.Itoa(int(f)) + ")"
}

// Name identifies an argument or output: an integer position or a keyword.
// Pos(0) and Keyword("0") are different names.
type Name struct {
	pos   int
	key   string
	keyed bool
}

// Pos names a positional entry.
func Pos(i int) Name { return Name{pos: i} }

// Keyword names a keyword entry.
func Keyword(k string) Name { return Name{key: k, keyed: true} }

// IsKeyword reports whether the name is a keyword.
func (n Name) IsKeyword() bool { return n.keyed }

// Index returns the position of a positional name (-1 for keywords).
func (n Name) Index() int {
	if n.keyed {
		return -1
	}
	return n.pos
}

// Key returns the keyword ("" for positional names).
func (n Name) Key() string { return n.key }

func (n Name) String() string {
	if n.keyed {
		return n.key
	}
	return strconv.Itoa(n.pos)
}

// path extends p with this name.
func (n Name) path(p fw.PathRef) fw.PathRef {
	if n.keyed {
		return p.Field(n.key)
	}
	return p.Index(n.pos)
}

// Field is a keyword entry of a Decl.
type Field struct {
	Name  string
	Value any
}

// F is shorthand for Field{Name: name, Value: v}.
func F(name string, v any) Field { return Field{Name: name, Value: v} }

type declEntry struct {
	name  string // keyword form only
	value any
}

// Decl is a declared bucket (inputs, state or outputs). The zero value
// declares nothing.
type Decl struct {
	form    Form
	entries []declEntry
}

// One declares a single entry passed (or returned) unwrapped.
func One(v any) Decl { return Decl{form: FormSingle, entries: []declEntry{{value: v}}} }

// List declares positional entries.
func List(vs ...any) Decl {
	d := Decl{form: FormPositional, entries: make([]declEntry, len(vs))}
	for i, v := range vs {
		d.entries[i] = declEntry{value: v}
	}
	return d
}

// Named declares keyword entries in the given order.
func Named(fields ...Field) Decl {
	d := Decl{form: FormKeyword, entries: make([]declEntry, len(fields))}
	for i, f := range fields {
		d.entries[i] = declEntry{name: f.Name, value: f.Value}
	}
	return d
}

// Form returns the declaration form (FormNone for the zero value).
func (d Decl) Form() Form { return d.form }

// Len returns the number of declared entries.
func (d Decl) Len() int { return len(d.entries) }

// Bucket says which declared bucket a Binding came from.
type Bucket int

const (
	BucketInput Bucket = iota
	BucketState
	BucketOutput
)

func (b Bucket) String() string {
	switch b {
	case BucketInput:
		return "inputs"
	case BucketState:
		return "state"
	case BucketOutput:
		return "outputs"
	}
	return "Bucket(" + strconv.Itoa(int(b)) + ")"
}

// role is the role a RoleAuto dependency takes in this bucket.
func (b Bucket) role() Role {
	switch b {
	case BucketState:
		return RoleState
	case BucketOutput:
		return RoleOutput
	}
	return RoleInput
}

// Binding is a named argument (or output) with its Grouping and the
// [Start, End) range its leaves occupy in the flat sequence.
type Binding struct {
	Name     Name
	Bucket   Bucket
	Grouping fw.Grouping[Dependency]
	Start    int
	End      int
}

// Len returns the number of flat values the binding spans.
func (b Binding) Len() int { return b.End - b.Start }

// Signature is the normalized form of a callback declaration.
type Signature struct {
	// InputForm is the calling convention shared by inputs and state.
	InputForm Form
	// OutputForm is the shape the return value must have.
	OutputForm Form
	// Args lists input bindings then state bindings, each in declaration
	// order. Ranges index into the combined Input-then-State flat sequence.
	Args []Binding
	// Outputs lists output bindings; ranges index into the flat output
	// sequence.
	Outputs []Binding

	InputDeps  []Dependency
	StateDeps  []Dependency
	OutputDeps []Dependency
}

// ArgCount is the number of flat values a call delivers.
func (s *Signature) ArgCount() int { return len(s.InputDeps) + len(s.StateDeps) }

// OutputSchema returns the shape the return value must have: the single
// output grouping, a sequence of the output groupings, or a mapping of them.
func (s *Signature) OutputSchema() fw.Grouping[Dependency] {
	switch s.OutputForm {
	case FormSingle:
		return s.Outputs[0].Grouping
	case FormKeyword:
		entries := make([]fw.Entry[Dependency], len(s.Outputs))
		for i, b := range s.Outputs {
			entries[i] = fw.E(b.Name.Key(), b.Grouping)
		}
		return fw.Map(entries...)
	}
	items := make([]fw.Grouping[Dependency], len(s.Outputs))
	for i, b := range s.Outputs {
		items[i] = b.Grouping
	}
	return fw.Seq(items...)
}
