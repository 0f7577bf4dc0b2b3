package simplemedia

import "context"

// NoopInvalidator is a no-operation implementation of Invalidator
// Useful when no cache is configured or for testing
type NoopInvalidator struct{}

// NewNoopInvalidator creates a new no-operation invalidator
func NewNoopInvalidator() Invalidator {
	return &NoopInvalidator{}
}

// OnContentChanged does nothing and returns no keys
func (n *NoopInvalidator) OnContentChanged(ctx context.Context, contentType, identifier string) ([]string, error) {
	return nil, nil
}
