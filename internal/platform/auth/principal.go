package auth

import (
	"context"

	"github.com/google/uuid"
)

// Role is the single role attached to a login.
type Role string

const (
	RolePatient   Role = "patient"
	RoleDoctor    Role = "doctor"
	RoleLab       Role = "lab"
	RolePharmacy  Role = "pharmacy"
	RoleReception Role = "reception"
	RoleAdmin     Role = "admin"
)

var knownRoles = map[Role]bool{
	RolePatient: true, RoleDoctor: true, RoleLab: true,
	RolePharmacy: true, RoleReception: true, RoleAdmin: true,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return knownRoles[r] }

// Principal is the authenticated caller. Services receive it as an explicit
// argument; handlers read it from the request context once.
type Principal struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
}

// Is reports whether the principal holds any of roles. Admin holds them all.
func (p Principal) Is(roles ...Role) bool {
	if p.Role == RoleAdmin {
		return true
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal set by the auth middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
