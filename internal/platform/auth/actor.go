package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/smiledesk/dental/pkg/apperr"
)

// Role is the closed set of account roles.
type Role string

const (
	RolePatient    Role = "patient"
	RoleDentist    Role = "dentist"
	RoleSecretary  Role = "secretary"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Roles lists every role in ascending privilege.
var Roles = []Role{RolePatient, RoleDentist, RoleSecretary, RoleAdmin, RoleSuperAdmin}

// ParseRole validates s against the known roles.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// IsAdmin reports whether r has clinic-wide administrative rights.
func (r Role) IsAdmin() bool { return r == RoleAdmin || r == RoleSuperAdmin }

// Actor is the authenticated caller passed into every domain operation.
type Actor struct {
	UserID   uuid.UUID
	Role     Role
	ClinicID *uuid.UUID
}

// InClinic reports whether the actor is attached to clinicID.
func (a Actor) InClinic(clinicID *uuid.UUID) bool {
	return a.ClinicID != nil && clinicID != nil && *a.ClinicID == *clinicID
}

type contextKey string

const ActorKey contextKey = "actor"

// WithActor returns a copy of ctx carrying a.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ActorKey, a)
}

// ActorFromContext returns the actor stored by the auth middleware.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ActorKey).(Actor)
	return a, ok
}

// setActor stores a on both the request context and the echo context, where
// the request logger picks it up.
func setActor(c echo.Context, a Actor) {
	c.SetRequest(c.Request().WithContext(WithActor(c.Request().Context(), a)))
	c.Set("user_id", a.UserID.String())
	c.Set("user_role", string(a.Role))
}

// RequestActor returns the actor of an echo request, or an unauthorized
// error when the request was not authenticated.
func RequestActor(c echo.Context) (Actor, error) {
	a, ok := ActorFromContext(c.Request().Context())
	if !ok {
		return Actor{}, apperr.ErrUnauthorized
	}
	return a, nil
}
