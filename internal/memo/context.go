package memo

import (
	"context"
	"errors"
	"fmt"
)

// ErrTypeMismatch is returned by Do when key already holds a value of another type.
var ErrTypeMismatch = errors.New("memo: type mismatch")

type scopeKey struct{}

// WithScope returns a copy of ctx carrying s.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// FromContext returns the scope carried by ctx, if any.
func FromContext(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	return s, ok && s != nil
}

// Do is the typed form of (*Scope).Do using the scope carried by ctx.
// Without a scope, fn runs directly and nothing is retained.
func Do[T any](ctx context.Context, key string, fn func(context.Context) (T, error)) (T, error) {
	s, ok := FromContext(ctx)
	if !ok {
		return fn(ctx)
	}

	v, err := s.Do(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if v == nil {
		var zero T
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: key %q holds %T, want %T", ErrTypeMismatch, key, v, zero)
	}
	return t, nil
}
