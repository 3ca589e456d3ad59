// Package protocol is a reference implementation of the flat callback
// protocol: a registry of callback.Registrations and a JSON dispatcher that
// routes update requests to them.
package protocol

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	fw "github.com/reoring/flatwire"
	"github.com/reoring/flatwire/callback"
	"github.com/reoring/flatwire/internal/logging"
)

// OutputKey identifies a registration by its outputs: "id.prop" for a
// single-output callback, "..id1.p1...id2.p2.." otherwise.
func OutputKey(outputs []callback.Target, multi bool) string {
	if !multi && len(outputs) == 1 {
		return outputs[0].String()
	}
	parts := make([]string, len(outputs))
	for i, t := range outputs {
		parts[i] = t.String()
	}
	return ".." + strings.Join(parts, "...") + ".."
}

// Option configures a Registry.
type Option func(*Registry)

// WithMetrics records dispatches on m.
func WithMetrics(m *Metrics) Option { return func(r *Registry) { r.metrics = m } }

// WithLogger sets the logger (default: the package logger).
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// Registry stores registrations keyed by OutputKey. It is safe for
// concurrent use; every output property belongs to at most one callback.
type Registry struct {
	mu      sync.RWMutex
	byKey   map[string]callback.Registration
	owners  map[callback.Target]string
	order   []string
	metrics *Metrics
	log     *zap.Logger
}

var _ callback.Registry = (*Registry)(nil)

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		byKey:  make(map[string]callback.Registration),
		owners: make(map[callback.Target]string),
		log:    logging.Named("protocol"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register implements callback.Registry.
func (r *Registry) Register(ctx context.Context, reg callback.Registration) error {
	if len(reg.Outputs) == 0 {
		return fw.Fail(fw.Root(), fw.CodeNoOutputs, nil)
	}
	if reg.Handler == nil {
		return fw.Fail(fw.Root(), fw.CodeInvalidFunction, map[string]any{"detail": "registration has no handler"})
	}
	key := OutputKey(reg.Outputs, reg.MultiOutput)

	r.mu.Lock()
	defer r.mu.Unlock()
	var iss fw.Issues
	for i, t := range reg.Outputs {
		if owner, taken := r.owners[t]; taken {
			it := fw.NewIssue(fw.Root().Index(i), fw.CodeDuplicateOutput, map[string]any{"target": t.String()})
			it.Hint = "already produced by " + owner
			iss = append(iss, it)
		}
	}
	if len(iss) > 0 {
		return iss
	}
	for _, t := range reg.Outputs {
		r.owners[t] = key
	}
	r.byKey[key] = reg
	r.order = append(r.order, key)
	r.log.Debug("callback registered", zap.String("output", key), zap.String("name", reg.Name))
	return nil
}

// Lookup returns the registration for an output key.
func (r *Registry) Lookup(key string) (callback.Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byKey[key]
	return reg, ok
}

// Keys returns the registered output keys in registration order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Spec describes one registration for clients.
type Spec struct {
	Output             string            `json:"output"`
	Inputs             []callback.Target `json:"inputs"`
	State              []callback.Target `json:"state"`
	PreventInitialCall bool              `json:"prevent_initial_call"`
}

// Specs lists every registration, sorted by output key.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Spec, 0, len(r.order))
	for _, k := range r.order {
		reg := r.byKey[k]
		out = append(out, Spec{
			Output:             k,
			Inputs:             nonNil(reg.Inputs),
			State:              nonNil(reg.State),
			PreventInitialCall: reg.PreventInitialCall,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Output < out[j].Output })
	return out
}

func nonNil(ts []callback.Target) []callback.Target {
	if ts == nil {
		return []callback.Target{}
	}
	return ts
}
