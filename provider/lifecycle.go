package provider

import "context"

// Preparable is implemented by providers that need setup before handling
// requests (load a model, check a permission, reach a sidecar).
type Preparable interface {
	Prepare(ctx context.Context) error
}

// Cleanable is implemented by providers holding resources that need explicit
// release. Registry.Close calls Cleanup on every cached instance.
type Cleanable interface {
	Cleanup(ctx context.Context) error
}
