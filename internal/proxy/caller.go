package proxy

import (
	"context"
)

type callerKey struct{}

// WithCaller attaches an opaque caller value to ctx. Proxies never inspect it;
// they hand it to whatever resolver they were built with.
func WithCaller(ctx context.Context, caller any) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the caller value attached by WithCaller, or nil.
func CallerFrom(ctx context.Context) any {
	return ctx.Value(callerKey{})
}

// ResolverFunc produces per-caller backing-store configuration, such as a
// client holding the caller's credentials.
type ResolverFunc[T any] func(ctx context.Context, caller any) (T, error)

// StaticResolver ignores the caller and always returns v.
func StaticResolver[T any](v T) ResolverFunc[T] {
	return func(context.Context, any) (T, error) { return v, nil }
}
