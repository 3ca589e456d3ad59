package callback

import (
	"context"

	fw "github.com/reoring/flatwire"
)

// Invoker runs a Call. The result goes through the same validation and
// flattening whichever Invoker produced it.
type Invoker interface {
	Invoke(ctx context.Context, c Call) (any, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, c Call) (any, error)

func (f InvokerFunc) Invoke(ctx context.Context, c Call) (any, error) { return f(ctx, c) }

// Direct runs the call synchronously.
var Direct Invoker = InvokerFunc(func(ctx context.Context, c Call) (any, error) { return c.Run(ctx) })

func noScheduler() error {
	return fw.Fail(fw.Root(), fw.CodeInvalidFunction, map[string]any{"detail": "deferred invoker has no scheduler"})
}

// Scheduler accepts calls for background execution. Delivery of the real
// result is the scheduler's business.
type Scheduler interface {
	Schedule(ctx context.Context, c Call) error
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(ctx context.Context, c Call) error

func (f SchedulerFunc) Schedule(ctx context.Context, c Call) error { return f(ctx, c) }

// Deferred hands each call to Scheduler and immediately answers with
// Placeholder. A nil Placeholder answers NoUpdate for every output leaf.
// Scheduler is required; New rejects a Deferred without one.
type Deferred struct {
	Scheduler   Scheduler
	Placeholder any
}

func (d Deferred) Invoke(ctx context.Context, c Call) (any, error) {
	if d.Scheduler == nil {
		return nil, noScheduler()
	}
	if err := d.Scheduler.Schedule(ctx, c); err != nil {
		return nil, err
	}
	if d.Placeholder != nil {
		return d.Placeholder, nil
	}
	return fw.MapLeaves(c.Outputs, func(Dependency) any { return NoUpdate }), nil
}
