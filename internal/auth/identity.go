// Package auth defines the authenticated identity resolved for every request.
package auth

import "context"

// RoleAdmin is the privileged role allowed to list all owners' media,
// including soft-deleted records.
const RoleAdmin = "admin"

// Identity is the resolved caller: an opaque user id plus an optional role.
type Identity struct {
	ID   string
	Role string
}

// IsAdmin reports whether the identity carries the privileged role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// contextKey is an unexported type for context keys in this package.
type contextKey struct{}

// WithIdentity returns a context carrying the resolved identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext extracts the identity resolved by the auth middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok && id.ID != ""
}
