package auth

import (
	"context"
	"strings"
)

// Member roles. Anything unrecognized is treated as a plain user.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Identity is the request-scoped authenticated identity. The zero value
// is anonymous.
type Identity struct {
	Subject string
	Role    string
}

// Anonymous reports whether no subject is attached.
func (id Identity) Anonymous() bool {
	return strings.TrimSpace(id.Subject) == ""
}

// IsAdmin reports whether the identity carries the admin role.
func (id Identity) IsAdmin() bool {
	return !id.Anonymous() && id.Role == RoleAdmin
}

type ctxKey string

const identityKey ctxKey = "auth_identity"

// ContextWithIdentity stores the authenticated identity in the context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext extracts the identity from context. The second
// return is false for anonymous requests.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	if !ok || id.Anonymous() {
		return Identity{}, false
	}
	return id, true
}
