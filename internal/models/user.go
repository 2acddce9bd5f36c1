// internal/models/user.go
package models

import (
	"fmt"
	"strings"
	"time"
)

// Role is the application-level authorization category. It is resolved
// exclusively from the coordination backend; the identity provider only
// proves identity.
type Role string

const (
	RoleDonor    Role = "donor"
	RoleHospital Role = "hospital"
	RolePatient  Role = "patient"
	RoleAdmin    Role = "admin"

	// RoleUnresolved marks a session whose backend role lookup has not
	// completed or definitively failed. It is a stable rest state and is
	// never auto-retried.
	RoleUnresolved Role = "unresolved"
)

// ParseRole normalizes a backend role string. The backend stores roles in
// upper case and serves them in lower case, so both are accepted.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleDonor:
		return RoleDonor, nil
	case RoleHospital:
		return RoleHospital, nil
	case RolePatient:
		return RolePatient, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return RoleUnresolved, fmt.Errorf("unknown role %q", s)
}

// IsAssignable reports whether the role is one of the four roles a user can
// register with. RoleUnresolved is a client-side marker, never assignable.
func (r Role) IsAssignable() bool {
	switch r {
	case RoleDonor, RoleHospital, RolePatient, RoleAdmin:
		return true
	}
	return false
}

// Upper returns the backend wire form used by the sync endpoint.
func (r Role) Upper() string {
	return strings.ToUpper(string(r))
}

// User is the backend's user record, keyed by the identity-provider ID.
type User struct {
	ID         int64     `json:"id"`
	IdentityID string    `json:"identityId"`
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SignUpProfile carries the registration details beyond credentials.
type SignUpProfile struct {
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
}
