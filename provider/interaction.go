package provider

import "context"

// RequestResponse is a provider operation taking I and returning O.
type RequestResponse[I, O any] interface {
	Provider
	Execute(ctx context.Context, input I) (O, error)
}

// Bind exposes one operation of p as a RequestResponse so it can be wrapped
// with middleware. Name and IsAvailable delegate to p.
func Bind[I, O any, P Provider](p P, op func(ctx context.Context, p P, input I) (O, error)) RequestResponse[I, O] {
	return &boundRR[I, O, P]{p: p, op: op}
}

type boundRR[I, O any, P Provider] struct {
	p  P
	op func(ctx context.Context, p P, input I) (O, error)
}

func (b *boundRR[I, O, P]) Name() string                         { return b.p.Name() }
func (b *boundRR[I, O, P]) IsAvailable(ctx context.Context) bool { return b.p.IsAvailable(ctx) }

func (b *boundRR[I, O, P]) Execute(ctx context.Context, input I) (O, error) {
	return b.op(ctx, b.p, input)
}
