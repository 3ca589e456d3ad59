package callback

import "context"

// Responder is the flat handler a protocol calls: flat Input-then-State
// values in, flat output values out.
type Responder func(ctx context.Context, flat []any) ([]any, error)

// Registration is what a Wrapper hands to the protocol.
type Registration struct {
	Name               string
	Outputs            []Target
	Inputs             []Target
	State              []Target
	Handler            Responder
	PreventInitialCall bool
	// MultiOutput is false only for a callback declared with One(leaf).
	MultiOutput bool
}

// Registry is the callback registration side of a protocol.
type Registry interface {
	Register(ctx context.Context, r Registration) error
}

// RegistryFunc adapts a function to Registry.
type RegistryFunc func(ctx context.Context, r Registration) error

func (f RegistryFunc) Register(ctx context.Context, r Registration) error { return f(ctx, r) }
