package callback

import (
	"fmt"

	"go.uber.org/zap"

	fw "github.com/reoring/flatwire"
	"github.com/reoring/flatwire/internal/logging"
)

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithClassifier installs the fallback consulted for bare arguments the
// built-in pattern classes do not recognize.
func WithClassifier(c Classifier) NormalizerOption {
	return func(n *Normalizer) { n.classify = c }
}

// WithNormalizerLogger sets the logger used for declaration diagnostics.
func WithNormalizerLogger(l *zap.Logger) NormalizerOption {
	return func(n *Normalizer) {
		if l != nil {
			n.log = l
		}
	}
}

// Normalizer turns declared buckets into Bindings. It holds no per-callback
// state and may be shared.
type Normalizer struct {
	ids      IDAllocator
	infer    LeafInferrer
	classify Classifier
	log      *zap.Logger
}

// NewNormalizer builds a Normalizer. A nil ids allocates random ids and a nil
// infer accepts prebuilt handles only.
func NewNormalizer(ids IDAllocator, infer LeafInferrer, opts ...NormalizerOption) *Normalizer {
	if ids == nil {
		ids = RandomIDs()
	}
	if infer == nil {
		infer = ElementsOnly
	}
	n := &Normalizer{ids: ids, infer: infer, log: logging.Named("callback")}
	for _, o := range opts {
		o(n)
	}
	return n
}

// declared is one named entry awaiting layout.
type declared struct {
	name   Name
	bucket Bucket
	value  any
	path   fw.PathRef
}

// Normalize resolves every entry of the three buckets into a Grouping of
// Dependencies and lays the groupings out on the flat call and response
// sequences. All declaration problems are reported together.
func (n *Normalizer) Normalize(inputs, state, outputs Decl) (*Signature, error) {
	var iss fw.Issues
	root := fw.Root()

	inForm, err := callForm(inputs, state)
	if err != nil {
		iss = append(iss, err...)
	}

	args := make([]declared, 0, inputs.Len()+state.Len())
	args = appendDeclared(args, inputs, BucketInput, 0, root.Field(BucketInput.String()))
	args = appendDeclared(args, state, BucketState, inputs.Len(), root.Field(BucketState.String()))
	iss = append(iss, duplicateNames(args)...)

	if outputs.Len() == 0 {
		iss = append(iss, fw.NewIssue(root.Field(BucketOutput.String()), fw.CodeNoOutputs, nil))
	}
	outs := appendDeclared(nil, outputs, BucketOutput, 0, root.Field(BucketOutput.String()))
	iss = append(iss, duplicateNames(outs)...)

	sig := &Signature{InputForm: inForm, OutputForm: outputs.Form()}

	pos := 0
	for _, d := range args {
		g, bad := n.grouping(d)
		iss = append(iss, bad...)
		b := Binding{Name: d.name, Bucket: d.bucket, Grouping: g, Start: pos}
		deps := fw.Leaves(g)
		pos += len(deps)
		b.End = pos
		sig.Args = append(sig.Args, b)
		if d.bucket == BucketState {
			sig.StateDeps = append(sig.StateDeps, deps...)
		} else {
			sig.InputDeps = append(sig.InputDeps, deps...)
		}
	}

	pos = 0
	seen := make(map[Target]fw.PathRef)
	for _, d := range outs {
		g, bad := n.grouping(d)
		iss = append(iss, bad...)
		b := Binding{Name: d.name, Bucket: BucketOutput, Grouping: g, Start: pos}
		deps := fw.Leaves(g)
		pos += len(deps)
		b.End = pos
		sig.Outputs = append(sig.Outputs, b)
		for _, dep := range deps {
			t := dep.Target()
			if _, dup := seen[t]; dup {
				iss = append(iss, fw.NewIssue(d.path, fw.CodeDuplicateOutput, map[string]any{"target": t.String()}))
				continue
			}
			seen[t] = d.path
		}
		sig.OutputDeps = append(sig.OutputDeps, deps...)
	}

	if len(iss) > 0 {
		n.log.Debug("callback declaration rejected", zap.Int("issues", len(iss)), zap.Error(iss))
		return nil, iss
	}
	n.log.Debug("callback normalized",
		zap.Int("inputs", len(sig.InputDeps)),
		zap.Int("state", len(sig.StateDeps)),
		zap.Int("outputs", len(sig.OutputDeps)),
		zap.Stringer("input_form", sig.InputForm),
		zap.Stringer("output_form", sig.OutputForm),
	)
	return sig, nil
}

// callForm derives the calling convention. Inputs and state share one
// argument list, so a keyword bucket cannot be combined with a positional one.
func callForm(inputs, state Decl) (Form, fw.Issues) {
	in, st := inputs.Form(), state.Form()
	switch {
	case in == FormNone:
		return st, nil
	case st == FormNone:
		return in, nil
	case (in == FormKeyword) != (st == FormKeyword):
		return FormNone, fw.Issues{fw.NewIssue(fw.Root(), fw.CodeMixedForms, nil)}
	case in == FormKeyword:
		return FormKeyword, nil
	}
	return FormPositional, nil
}

// appendDeclared names the entries of d. Positional names start at offset so
// positional state continues after the inputs.
func appendDeclared(dst []declared, d Decl, b Bucket, offset int, base fw.PathRef) []declared {
	for i, e := range d.entries {
		name := Pos(offset + i)
		if d.form == FormKeyword {
			name = Keyword(e.name)
		}
		path := base
		if d.form != FormSingle {
			path = name.path(base)
		}
		dst = append(dst, declared{name: name, bucket: b, value: e.value, path: path})
	}
	return dst
}

func duplicateNames(ds []declared) fw.Issues {
	var iss fw.Issues
	seen := make(map[Name]struct{}, len(ds))
	for _, d := range ds {
		if _, dup := seen[d.name]; dup {
			code := fw.CodeDuplicateArgument
			params := map[string]any{"name": d.name.String()}
			if d.bucket == BucketOutput {
				code = fw.CodeDuplicateOutput
				params = map[string]any{"target": d.name.String()}
			}
			iss = append(iss, fw.NewIssue(d.path, code, params))
			continue
		}
		seen[d.name] = struct{}{}
	}
	return iss
}

// grouping converts one declared entry into a Grouping of resolved,
// role-tagged Dependencies.
func (n *Normalizer) grouping(d declared) (fw.Grouping[Dependency], fw.Issues) {
	var raw fw.Grouping[any]
	switch v := d.value.(type) {
	case fw.Grouping[Dependency]:
		raw = fw.MapLeaves(v, func(dep Dependency) any { return dep })
	case fw.Grouping[any]:
		raw = v
	default:
		raw = fw.Leaf[any](v)
	}

	var iss fw.Issues
	out := fw.MapLeavesPath(raw, d.path, func(v any, p fw.PathRef) Dependency {
		dep, bad := n.leaf(d, v, p)
		iss = append(iss, bad...)
		return dep
	})
	return out, iss
}

func (n *Normalizer) leaf(d declared, v any, p fw.PathRef) (Dependency, fw.Issues) {
	want := d.bucket.role()
	dep, ok := v.(Dependency)
	if !ok {
		pat, ok := ClassifyPattern(v, n.classify)
		if !ok {
			return Dependency{}, fw.Issues{fw.NewIssue(p, fw.CodeUnsupportedPattern, map[string]any{"name": d.name.String(), "type": fmt.Sprintf("%T", v)})}
		}
		inferred, err := n.infer.InferLeaf(pat, want)
		if err != nil {
			it := fw.NewIssue(p, fw.CodeUnsupportedPattern, map[string]any{"name": d.name.String(), "type": pat.Kind.String()})
			if got, ok := fw.AsIssues(err); ok && len(got) > 0 && got[0].Code != fw.CodeUnsupportedPattern {
				return Dependency{}, got.Prefix(p)
			}
			it.Cause = err
			return Dependency{}, fw.Issues{it}
		}
		dep = inferred
	}

	role, ok := forceRole(dep.Role, d.bucket)
	if !ok {
		return Dependency{}, fw.Issues{fw.NewIssue(p, fw.CodeInvalidRole, map[string]any{"role": dep.Role.String()})}
	}
	dep.Role = role

	if _, err := dep.Ref.Resolve(n.ids); err != nil {
		it := fw.NewIssue(p, fw.CodeInvalidProperty, map[string]any{"property": dep.Property, "type": dep.Ref.String()})
		it.Cause = err
		return Dependency{}, fw.Issues{it}
	}
	if err := dep.Validate(); err != nil {
		if got, ok := fw.AsIssues(err); ok {
			return Dependency{}, got.Prefix(p)
		}
		return Dependency{}, fw.Issues{{Path: p.Pointer(), Code: fw.CodeInvalidProperty, Message: err.Error(), Cause: err}}
	}
	return dep, nil
}

// forceRole applies the bucket's role to a dependency. Auto takes the bucket
// role and Input is demoted to State inside the State bucket; any other
// disagreement is rejected.
func forceRole(r Role, b Bucket) (Role, bool) {
	want := b.role()
	switch {
	case !r.valid():
		return r, false
	case r == RoleAuto || r == want:
		return want, true
	case b == BucketState && r == RoleInput:
		return RoleState, true
	}
	return r, false
}
