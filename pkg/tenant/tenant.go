// Package tenant defines the tenant context that scopes every receipt
// store lookup, idempotency check, and chain-tip read/write — spec.md's
// tenant isolation requirement (§5, §9) is enforced by threading this
// context through every pipeline and store call, never by a shared
// global namespace.
package tenant

import "context"

type ctxKey struct{}

// ID is a tenant identifier. It is opaque except to pkg/store and the
// idempotency stores, which use it as a partition key.
type ID string

// WithTenant returns a context carrying tenantID for the remainder of a
// request's call chain.
func WithTenant(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the tenant ID a context was stamped with. The
// second return is false if no tenant was ever attached — callers must
// treat that as a hard failure, never as an implicit "default tenant".
func FromContext(ctx context.Context) (ID, bool) {
	id, ok := ctx.Value(ctxKey{}).(ID)
	return id, ok
}
