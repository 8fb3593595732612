package intake

import (
	"context"
	"fmt"
)

// Outcome is the result of one collaborator call. A failed call carries Err
// and the zero Value; callers pick a fallback with Or.
type Outcome[T any] struct {
	Value T
	Err   error
}

func (o Outcome[T]) Ok() bool { return o.Err == nil }

// Or returns Value, or fallback when the call failed.
func (o Outcome[T]) Or(fallback T) T {
	if o.Err != nil {
		return fallback
	}
	return o.Value
}

// call runs fn, converting errors and panics into a failed Outcome that is
// logged and counted under collaborator/op.
func call[T any](ctx context.Context, o *Orchestrator, collaborator, op string, fn func(context.Context) (T, error)) (out Outcome[T]) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome[T]{Err: fmt.Errorf("intake: %s %s panicked: %v", collaborator, op, r)}
			o.collaboratorFailed(collaborator, op, out.Err)
		}
	}()
	v, err := fn(ctx)
	if err != nil {
		o.collaboratorFailed(collaborator, op, err)
		return Outcome[T]{Err: err}
	}
	return Outcome[T]{Value: v}
}

// do is call for operations without a result.
func do(ctx context.Context, o *Orchestrator, collaborator, op string, fn func(context.Context) error) Outcome[struct{}] {
	return call(ctx, o, collaborator, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
}
