package callback

import (
	"context"
	"fmt"
	"runtime/debug"

	fw "github.com/reoring/flatwire"
)

// Args are the reconstructed arguments of one call, in binding order (inputs
// then state).
type Args struct {
	form   Form
	names  []Name
	values []fw.Grouping[any]
}

// Form is the calling convention the arguments were declared with.
func (a Args) Form() Form { return a.form }

// Len returns the number of arguments.
func (a Args) Len() int { return len(a.values) }

// Names returns the argument names in binding order.
func (a Args) Names() []Name { return append([]Name(nil), a.names...) }

// At returns the i-th argument as a plain Go value.
func (a Args) At(i int) any { return a.values[i].Interface() }

// Grouping returns the i-th argument as a Grouping.
func (a Args) Grouping(i int) fw.Grouping[any] { return a.values[i] }

// Get returns the keyword argument key as a plain Go value.
func (a Args) Get(key string) (any, bool) {
	for i, n := range a.names {
		if n.IsKeyword() && n.Key() == key {
			return a.values[i].Interface(), true
		}
	}
	return nil, false
}

// Positional returns every argument as a plain value in binding order.
func (a Args) Positional() []any {
	out := make([]any, len(a.values))
	for i := range a.values {
		out[i] = a.values[i].Interface()
	}
	return out
}

// Keywords returns the keyword arguments as plain values. Positional names
// are rendered in decimal.
func (a Args) Keywords() map[string]any {
	out := make(map[string]any, len(a.values))
	for i, n := range a.names {
		out[n.String()] = a.values[i].Interface()
	}
	return out
}

// HandlerFunc is the native callback signature. Functions of any other shape
// are adapted by reflection in New.
type HandlerFunc func(ctx context.Context, args Args) (any, error)

// Call is one pending invocation of a user function.
type Call struct {
	// Name identifies the callback in logs and schedulers.
	Name string
	Args Args
	// Outputs is the shape the result must have.
	Outputs fw.Grouping[Dependency]

	fn HandlerFunc
}

// Run invokes the user function. A panic in the function is returned as a
// *PanicError.
func (c Call) Run(ctx context.Context) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, &PanicError{Callback: c.Name, Value: r, Stack: debug.Stack()}
		}
	}()
	return c.fn(ctx, c.Args)
}

// PanicError reports a panic raised by a user function.
type PanicError struct {
	Callback string
	Value    any
	Stack    []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("callback %s panicked: %v", e.Callback, e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
