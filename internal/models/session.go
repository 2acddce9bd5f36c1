package models

// Session is the client's in-memory record of the current authenticated
// actor. It is exclusively owned by the session store; every other component
// receives value copies and must treat them as read-only.
type Session struct {
	IdentityID  string `json:"identityId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`

	// IsLoading is true between a successful sign-in and the completion
	// (or definitive failure) of the backend role lookup. Consumers must
	// not branch on Role while it is set.
	IsLoading bool `json:"isLoading"`
}

// Anonymous is the empty, unauthenticated session.
func Anonymous() Session {
	return Session{Role: RoleUnresolved}
}

// IsAnonymous reports whether no identity is attached to the session.
func (s Session) IsAnonymous() bool {
	return s.IdentityID == ""
}

// IsResolved reports whether the backend role lookup completed with one of
// the four assignable roles.
func (s Session) IsResolved() bool {
	return !s.IsAnonymous() && !s.IsLoading && s.Role.IsAssignable()
}
