package callback

import (
	"context"
	"reflect"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	fw "github.com/reoring/flatwire"
	"github.com/reoring/flatwire/internal/logging"
	"github.com/reoring/flatwire/internal/walk"
)

// Option configures New.
type Option func(*options)

type options struct {
	norm           *Normalizer
	ids            IDAllocator
	infer          LeafInferrer
	coerce         Coercer
	invoker        Invoker
	preventInitial bool
	log            *zap.Logger
	name           string
}

// WithNormalizer uses n instead of a Normalizer built from WithIDs and
// WithInferrer.
func WithNormalizer(n *Normalizer) Option { return func(o *options) { o.norm = n } }

// WithIDs sets the allocator for handles declared without an id.
func WithIDs(ids IDAllocator) Option { return func(o *options) { o.ids = ids } }

// WithInferrer sets the policy that turns bare patterns into dependencies.
func WithInferrer(inf LeafInferrer) Option { return func(o *options) { o.infer = inf } }

// WithCoercer sets the policy applied to values returned for content
// properties.
func WithCoercer(c Coercer) Option { return func(o *options) { o.coerce = c } }

// WithInvoker replaces the synchronous invocation step.
func WithInvoker(inv Invoker) Option { return func(o *options) { o.invoker = inv } }

// PreventInitialCall is passed through to the protocol on registration.
func PreventInitialCall(v bool) Option { return func(o *options) { o.preventInitial = v } }

// WithLogger sets the logger (default: the package logger).
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

// WithName names the callback in logs and registrations.
func WithName(name string) Option { return func(o *options) { o.name = name } }

// Wrapper binds a user function to the flat protocol. It is immutable after
// New apart from its one-time registration.
type Wrapper struct {
	name           string
	sig            *Signature
	fn             HandlerFunc
	coerce         Coercer
	invoker        Invoker
	preventInitial bool
	log            *zap.Logger
	registered     atomic.Bool
}

// New declares a callback. Every declaration problem is reported here, so a
// Wrapper that exists can always be registered.
func New(fn any, outputs, inputs, state Decl, opts ...Option) (*Wrapper, error) {
	o := options{coerce: Passthrough, invoker: Direct}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logging.Named("callback")
	}
	if o.norm == nil {
		o.norm = NewNormalizer(o.ids, o.infer, WithNormalizerLogger(o.log))
	}
	sig, err := o.norm.Normalize(inputs, state, outputs)
	if err != nil {
		return nil, err
	}
	if err := checkInvoker(o.invoker); err != nil {
		return nil, err
	}
	h, err := handlerOf(fn, sig)
	if err != nil {
		return nil, err
	}
	name := o.name
	if name == "" {
		keys := make([]string, len(sig.OutputDeps))
		for i, d := range sig.OutputDeps {
			keys[i] = d.Key()
		}
		name = strings.Join(keys, ",")
	}
	return &Wrapper{
		name:           name,
		sig:            sig,
		fn:             h,
		coerce:         o.coerce,
		invoker:        o.invoker,
		preventInitial: o.preventInitial,
		log:            o.log.With(zap.String("callback", name)),
	}, nil
}

func checkInvoker(inv Invoker) error {
	switch d := inv.(type) {
	case nil:
		return fw.Fail(fw.Root(), fw.CodeInvalidFunction, map[string]any{"detail": "invoker is nil"})
	case Deferred:
		if d.Scheduler == nil {
			return noScheduler()
		}
	case *Deferred:
		if d == nil || d.Scheduler == nil {
			return noScheduler()
		}
	}
	return nil
}

// Name returns the callback name.
func (w *Wrapper) Name() string { return w.name }

// Signature returns the normalized declaration. Callers must not modify it.
func (w *Wrapper) Signature() *Signature { return w.sig }

// Handle serves one protocol call: flat holds the Input values followed by
// the State values, in registration order. The result holds one value per
// output dependency in registration order.
func (w *Wrapper) Handle(ctx context.Context, flat []any) ([]any, error) {
	if want := w.sig.ArgCount(); len(flat) != want {
		err := fw.Fail(fw.Root(), fw.CodeFlatCount, map[string]any{"expected": want, "got": len(flat)})
		w.log.Debug("rejecting call", zap.Error(err))
		return nil, err
	}
	args := Args{form: w.sig.InputForm, names: make([]Name, len(w.sig.Args)), values: make([]fw.Grouping[any], len(w.sig.Args))}
	for i, b := range w.sig.Args {
		g, err := fw.Unflatten(b.Grouping, flat[b.Start:b.End])
		if err != nil {
			return nil, err
		}
		args.names[i] = b.Name
		args.values[i] = g
	}

	res, err := w.invoker.Invoke(ctx, Call{Name: w.name, Args: args, Outputs: w.sig.OutputSchema(), fn: w.fn})
	if err != nil {
		w.log.Debug("callback failed", zap.Error(err))
		return nil, err
	}
	out, err := w.respond(res)
	if err != nil {
		w.log.Warn("callback returned a value of the wrong shape", zap.Error(err))
		return nil, err
	}
	return out, nil
}

func (w *Wrapper) respond(res any) ([]any, error) {
	if IsNoUpdate(res) {
		out := make([]any, len(w.sig.OutputDeps))
		for i := range out {
			out[i] = NoUpdate
		}
		return out, nil
	}
	schema := w.sig.OutputSchema()
	res = w.expandEntries(res)
	if err := fw.Validate(res, schema); err != nil {
		return nil, err
	}
	flat, err := fw.Flatten(res, schema)
	if err != nil {
		return nil, err
	}
	for i, dep := range w.sig.OutputDeps {
		v := flat[i]
		if IsNoUpdate(v) || !w.coerce.IsContentProperty(dep.Property) {
			continue
		}
		if _, isHandle := v.(Handle); isHandle {
			continue
		}
		flat[i] = w.coerce.CoerceOutput(dep, v)
	}
	return flat, nil
}

// expandEntries prepares a positional or keyword result for validation:
// structs become maps keyed like ByAttr resolves fields, and a NoUpdate entry
// stands for NoUpdate at every leaf of its output.
func (w *Wrapper) expandEntries(res any) any {
	if _, isGrouping := res.(interface{ Kind() fw.NodeKind }); isGrouping {
		return res
	}
	switch w.sig.OutputForm {
	case FormKeyword:
		m, ok := walk.Map(res)
		if !ok {
			sv, isStruct := walk.Struct(res)
			if !isStruct {
				return res
			}
			m = structMap(sv)
		} else {
			m = copyMap(m)
		}
		for _, b := range w.sig.Outputs {
			if v, ok := m[b.Name.Key()]; ok && IsNoUpdate(v) {
				m[b.Name.Key()] = noUpdates(b.Grouping)
			}
		}
		return m
	case FormPositional:
		items, ok := walk.Seq(res)
		if !ok || len(items) != len(w.sig.Outputs) {
			return res
		}
		items = append([]any(nil), items...)
		for i, b := range w.sig.Outputs {
			if IsNoUpdate(items[i]) {
				items[i] = noUpdates(b.Grouping)
			}
		}
		return items
	}
	return res
}

func structMap(sv reflect.Value) map[string]any {
	fields := walk.Fields(sv.Type())
	m := make(map[string]any, len(fields))
	for k, i := range fields {
		m[k] = sv.Field(i).Interface()
	}
	return m
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func noUpdates(g fw.Grouping[Dependency]) fw.Grouping[any] {
	return fw.MapLeaves(g, func(Dependency) any { return NoUpdate })
}

// Register hands the callback to reg. A Wrapper registers at most once; a
// failed registration may be retried.
func (w *Wrapper) Register(ctx context.Context, reg Registry) error {
	if !w.registered.CompareAndSwap(false, true) {
		return fw.Fail(fw.Root(), fw.CodeAlreadyRegistered, nil)
	}
	err := reg.Register(ctx, Registration{
		Name:               w.name,
		Outputs:            Targets(w.sig.OutputDeps),
		Inputs:             Targets(w.sig.InputDeps),
		State:              Targets(w.sig.StateDeps),
		Handler:            w.Handle,
		PreventInitialCall: w.preventInitial,
		MultiOutput:        !(w.sig.OutputForm == FormSingle && w.sig.Outputs[0].Grouping.IsLeaf()),
	})
	if err != nil {
		w.registered.Store(false)
		w.log.Warn("registration failed", zap.Error(err))
		return err
	}
	w.log.Debug("registered",
		zap.Int("inputs", len(w.sig.InputDeps)),
		zap.Int("state", len(w.sig.StateDeps)),
		zap.Int("outputs", len(w.sig.OutputDeps)),
	)
	return nil
}
