// Package manifest reads callback declarations from YAML.
//
//	callbacks:
//	  - name: summary
//	    outputs: summary.children
//	    inputs: [[lo.value, hi.value], query.value]
//	    state: [unit.value]
//	    prevent_initial_call: true
//
// A bucket given as a scalar declares one entry, a sequence declares
// positional entries and a mapping declares keyword entries. Entries nest as
// sequences and mappings of "id.property" targets. An id written as a JSON
// object is a key structure.
package manifest

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	j "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	fw "github.com/reoring/flatwire"
	"github.com/reoring/flatwire/callback"
)

// Callback is one declared callback.
type Callback struct {
	Name               string
	Inputs             callback.Decl
	State              callback.Decl
	Outputs            callback.Decl
	PreventInitialCall bool
	// Line is the line of the declaration in its document.
	Line int
}

// Build declares the callback for fn. The manifest name and
// prevent_initial_call come after opts and so take precedence.
func (c Callback) Build(fn any, opts ...callback.Option) (*callback.Wrapper, error) {
	opts = append(opts, callback.PreventInitialCall(c.PreventInitialCall))
	if c.Name != "" {
		opts = append(opts, callback.WithName(c.Name))
	}
	return callback.New(fn, c.Outputs, c.Inputs, c.State, opts...)
}

// DuplicateKeyError reports a duplicate mapping key with the positions of
// both occurrences.
type DuplicateKeyError struct {
	Key       string
	FirstLine int
	FirstCol  int
	Line      int
	Col       int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate YAML key %q at %d:%d (first at %d:%d)", e.Key, e.Line, e.Col, e.FirstLine, e.FirstCol)
}

// Reader decodes a multi-document manifest stream.
type Reader struct {
	dec *yaml.Decoder
}

// NewReader constructs a Reader.
func NewReader(r io.Reader) *Reader { return &Reader{dec: yaml.NewDecoder(r)} }

// Next returns the callbacks of the next document, or io.EOF when the stream
// is exhausted.
func (r *Reader) Next() ([]Callback, error) {
	var root yaml.Node
	if err := r.dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		it := fw.NewIssue(fw.Root(), fw.CodeParseError, nil)
		it.Hint = err.Error()
		it.Cause = err
		return nil, fw.Issues{it}
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	return document(root.Content[0])
}

// ReadAll reads every document.
func (r *Reader) ReadAll() ([]Callback, error) {
	var out []Callback
	for {
		cbs, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, err
		}
		out = append(out, cbs...)
	}
}

// Load reads every callback from a manifest stream.
func Load(r io.Reader) ([]Callback, error) { return NewReader(r).ReadAll() }

// ParseTarget splits "id.property" at the last dot.
func ParseTarget(s string) (callback.Target, error) {
	i := strings.LastIndexByte(s, '.')
	if i <= 0 || i == len(s)-1 {
		return callback.Target{}, fmt.Errorf("target %q is not of the form id.property", s)
	}
	return callback.Target{ID: s[:i], Property: s[i+1:]}, nil
}

type parseError struct {
	path fw.PathRef
	node *yaml.Node
	err  error
}

func (e *parseError) Error() string { return fmt.Sprintf("line %d: %v", e.node.Line, e.err) }

func (e *parseError) Unwrap() error { return e.err }

func (e *parseError) issue() fw.Issues {
	it := fw.NewIssue(e.path, fw.CodeParseError, nil)
	it.Hint = fmt.Sprintf("line %d: %v", e.node.Line, e.err)
	it.Cause = e.err
	return fw.Issues{it}
}

func fail(path fw.PathRef, n *yaml.Node, format string, args ...any) error {
	return &parseError{path: path, node: n, err: fmt.Errorf(format, args...)}
}

func asIssues(err error) error {
	var pe *parseError
	if errors.As(err, &pe) {
		return pe.issue()
	}
	return err
}

func document(n *yaml.Node) ([]Callback, error) {
	root := fw.Root()
	fields, err := mapping(n, root, "callbacks")
	if err != nil {
		return nil, asIssues(err)
	}
	list, ok := fields["callbacks"]
	if !ok {
		return nil, nil
	}
	if list.Kind != yaml.SequenceNode {
		return nil, asIssues(fail(root.Field("callbacks"), list, "callbacks must be a sequence"))
	}
	out := make([]Callback, 0, len(list.Content))
	for i, c := range list.Content {
		cb, err := callbackOf(c, root.Field("callbacks").Index(i))
		if err != nil {
			return nil, asIssues(err)
		}
		out = append(out, cb)
	}
	return out, nil
}

// mapping indexes the entries of a mapping node, rejecting duplicate keys
// and keys outside allowed.
func mapping(n *yaml.Node, path fw.PathRef, allowed ...string) (map[string]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fail(path, n, "expected a mapping")
	}
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	first := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i]
		if prev, dup := first[k.Value]; dup {
			return nil, &parseError{path: path, node: k, err: &DuplicateKeyError{Key: k.Value, FirstLine: prev.Line, FirstCol: prev.Column, Line: k.Line, Col: k.Column}}
		}
		if allowed != nil && !contains(allowed, k.Value) {
			return nil, fail(path.Field(k.Value), k, "unknown key %q", k.Value)
		}
		first[k.Value] = k
		out[k.Value] = n.Content[i+1]
	}
	return out, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func callbackOf(n *yaml.Node, path fw.PathRef) (Callback, error) {
	fields, err := mapping(n, path, "name", "inputs", "state", "outputs", "prevent_initial_call")
	if err != nil {
		return Callback{}, err
	}
	cb := Callback{Line: n.Line}
	if v, ok := fields["name"]; ok {
		cb.Name = v.Value
	}
	if v, ok := fields["prevent_initial_call"]; ok {
		b, err := strconv.ParseBool(v.Value)
		if err != nil {
			return Callback{}, fail(path.Field("prevent_initial_call"), v, "prevent_initial_call: %v", err)
		}
		cb.PreventInitialCall = b
	}
	buckets := []struct {
		key string
		dep depFunc
		dst *callback.Decl
	}{
		{"inputs", callback.Input, &cb.Inputs},
		{"state", callback.State, &cb.State},
		{"outputs", callback.Output, &cb.Outputs},
	}
	for _, b := range buckets {
		v, ok := fields[b.key]
		if !ok {
			continue
		}
		d, err := decl(v, path.Field(b.key), b.dep)
		if err != nil {
			return Callback{}, err
		}
		*b.dst = d
	}
	return cb, nil
}

type depFunc = func(any, string) callback.Dependency

func decl(n *yaml.Node, path fw.PathRef, mk depFunc) (callback.Decl, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		d, err := leaf(n, path, mk)
		if err != nil {
			return callback.Decl{}, err
		}
		return callback.One(d), nil
	case yaml.SequenceNode:
		vs := make([]any, len(n.Content))
		for i, c := range n.Content {
			g, err := grouping(c, path.Index(i), mk)
			if err != nil {
				return callback.Decl{}, err
			}
			vs[i] = g
		}
		return callback.List(vs...), nil
	case yaml.MappingNode:
		if _, err := mapping(n, path); err != nil {
			return callback.Decl{}, err
		}
		fs := make([]callback.Field, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i].Value
			g, err := grouping(n.Content[i+1], path.Field(k), mk)
			if err != nil {
				return callback.Decl{}, err
			}
			fs = append(fs, callback.F(k, g))
		}
		return callback.Named(fs...), nil
	case yaml.AliasNode:
		return decl(n.Alias, path, mk)
	}
	return callback.Decl{}, fail(path, n, "unexpected node")
}

func grouping(n *yaml.Node, path fw.PathRef, mk depFunc) (fw.Grouping[callback.Dependency], error) {
	switch n.Kind {
	case yaml.SequenceNode:
		items := make([]fw.Grouping[callback.Dependency], len(n.Content))
		for i, c := range n.Content {
			g, err := grouping(c, path.Index(i), mk)
			if err != nil {
				return fw.Grouping[callback.Dependency]{}, err
			}
			items[i] = g
		}
		return fw.Seq(items...), nil
	case yaml.MappingNode:
		if _, err := mapping(n, path); err != nil {
			return fw.Grouping[callback.Dependency]{}, err
		}
		entries := make([]fw.Entry[callback.Dependency], 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i].Value
			g, err := grouping(n.Content[i+1], path.Field(k), mk)
			if err != nil {
				return fw.Grouping[callback.Dependency]{}, err
			}
			entries = append(entries, fw.E(k, g))
		}
		return fw.Map(entries...), nil
	case yaml.AliasNode:
		return grouping(n.Alias, path, mk)
	}
	d, err := leaf(n, path, mk)
	if err != nil {
		return fw.Grouping[callback.Dependency]{}, err
	}
	return fw.Leaf(d), nil
}

func leaf(n *yaml.Node, path fw.PathRef, mk depFunc) (callback.Dependency, error) {
	if n.Kind != yaml.ScalarNode {
		return callback.Dependency{}, fail(path, n, "expected an id.property target")
	}
	t, err := ParseTarget(n.Value)
	if err != nil {
		return callback.Dependency{}, fail(path, n, "%v", err)
	}
	if strings.HasPrefix(t.ID, "{") {
		var key map[string]any
		if err := j.Unmarshal([]byte(t.ID), &key); err != nil {
			return callback.Dependency{}, fail(path, n, "key id %s: %v", t.ID, err)
		}
		return mk(key, t.Property), nil
	}
	return mk(t.ID, t.Property), nil
}
