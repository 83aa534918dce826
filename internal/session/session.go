// Package session tracks per-connection authentication state. A session is
// created when a client connects, populated exactly once by a successful
// login, and destroyed when the connection closes. Nothing survives a
// reconnect; clients must log in again.
package session

import "strings"

// Known roles as stored in the UsuariosSistema table.
const (
	RoleAlumno = "ALUMNO"
	RoleAsesor = "ASESOR"
	RoleAdmin  = "ADMIN"
)

// Session holds the identity attached to one live connection. Fields are
// written only by the login handler running on the session's own connection
// and read by later handlers on that same connection, so no locking is
// needed beyond the registry's.
type Session struct {
	Authenticated bool
	UserID        int
	Username      string
	Role          string
}

// Authenticate marks the session as logged in with the given identity.
func (s *Session) Authenticate(userID int, username, role string) {
	s.Authenticated = true
	s.UserID = userID
	s.Username = username
	s.Role = role
}

// HasRole reports whether the session's role matches any of the given roles.
// Comparison is case-insensitive and exact; there is no role hierarchy.
func (s *Session) HasRole(roles ...string) bool {
	for _, r := range roles {
		if strings.EqualFold(s.Role, r) {
			return true
		}
	}
	return false
}

// Authorized reports whether the session may run an action restricted to the
// given roles. A nil or unauthenticated session is never authorized. An
// empty role list means any authenticated session qualifies.
func Authorized(s *Session, roles []string) bool {
	if s == nil || !s.Authenticated {
		return false
	}
	if len(roles) == 0 {
		return true
	}
	return s.HasRole(roles...)
}
