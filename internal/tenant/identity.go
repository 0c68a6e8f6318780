// Package tenant carries the acting tenant and actor on a request context.
//
// Identity is attached once at the edge (auth middleware, worker loop) and read by
// services when they open a tenant session. There is no package level state.
package tenant

import (
	"context"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/pkg/util"
)

type contextKey struct{}

// Identity names who is acting and on behalf of which tenant.
type Identity struct {
	TenantID uuid.UUID
	ActorID  uuid.UUID
}

// WithIdentity returns a child context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity on ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	if !ok || id.TenantID == uuid.Nil {
		return Identity{}, false
	}
	return id, true
}

// Require returns the identity on ctx or a validation error when none is bound.
func Require(ctx context.Context) (Identity, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return Identity{}, util.NewValidationError("no tenant bound to request", map[string]any{"reason": "MISSING_TENANT"})
	}
	return id, nil
}
