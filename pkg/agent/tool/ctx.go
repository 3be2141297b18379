package tool

import "context"

// UpdateFunc posts a progress line while a tool runs. The chat pipeline binds
// it to the placeholder message shown in the thread.
type UpdateFunc func(ctx context.Context, message string)

type contextKey struct{}

// WithUpdate returns a new context that carries the given UpdateFunc.
func WithUpdate(ctx context.Context, fn UpdateFunc) context.Context {
	return context.WithValue(ctx, contextKey{}, fn)
}

// Update calls the UpdateFunc stored in ctx. No-op when none is present.
func Update(ctx context.Context, message string) {
	if fn, ok := ctx.Value(contextKey{}).(UpdateFunc); ok {
		fn(ctx, message)
	}
}
