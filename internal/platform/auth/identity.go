package auth

import (
	"context"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
)

// Identity captures the principal details resolved by the upstream API
// gateway. The gateway terminates authentication; this service only trusts
// the headers it forwards.
type Identity struct {
	TenantID string
	UserID   string
	Role     domain.Role
}

// HasRole reports whether the identity carries the requested role.
func (i *Identity) HasRole(role domain.Role) bool {
	if i == nil {
		return false
	}
	return i.Role == role
}

// HasAnyRole reports whether the identity carries any of the provided roles.
func (i *Identity) HasAnyRole(roles ...domain.Role) bool {
	for _, role := range roles {
		if i.HasRole(role) {
			return true
		}
	}
	return false
}

type contextKey string

const identityContextKey contextKey = "github.com/loziogigio/vinc-pim-sub016/internal/platform/auth/identity"

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
