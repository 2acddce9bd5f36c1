// internal/routeguard/guard.go
package routeguard

import "bloodconnect/internal/models"

// Action is the guard's verdict for a navigation attempt.
type Action int

const (
	// ActionRender lets the protected view through.
	ActionRender Action = iota
	// ActionLoading shows a neutral loading state; never a redirect.
	ActionLoading
	// ActionRedirect navigates to Decision.Location instead.
	ActionRedirect
)

// Decision is the guard's output. Location is set only for ActionRedirect.
type Decision struct {
	Action   Action
	Location string
}

// SignInPath is where anonymous visitors land.
const SignInPath = "/login"

// LandingPath is the generic fallback for sessions without a resolved role.
const LandingPath = "/"

// DashboardPath maps a role to its dashboard. Unresolved roles fall back to
// the landing path.
func DashboardPath(role models.Role) string {
	switch role {
	case models.RoleDonor:
		return "/donor/dashboard"
	case models.RoleHospital:
		return "/hospital/dashboard"
	case models.RolePatient:
		return "/patient/dashboard"
	case models.RoleAdmin:
		return "/admin/dashboard"
	default:
		return LandingPath
	}
}

// Decide gates one navigation to a role-scoped view. It is a pure function
// of the session value: callers must re-evaluate it on every session change
// and never cache the result.
func Decide(s models.Session, requiredRole models.Role) Decision {
	if s.IsLoading {
		return Decision{Action: ActionLoading}
	}
	if s.IsAnonymous() {
		return Decision{Action: ActionRedirect, Location: SignInPath}
	}
	if s.Role != requiredRole {
		return Decision{Action: ActionRedirect, Location: DashboardPath(s.Role)}
	}
	return Decision{Action: ActionRender}
}
