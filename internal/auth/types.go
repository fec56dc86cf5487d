package auth

import "errors"

// Role is the authorisation tier carried by a listener token.
type Role string

const (
	// RoleViewer may read run status and history.
	RoleViewer Role = "viewer"

	// RoleOperator may also start, pause, resume and cancel runs. Requests
	// authenticated with the shared listener key act as operator.
	RoleOperator Role = "operator"
)

// ValidRoles is the set of roles a token may be issued for.
var ValidRoles = []Role{RoleViewer, RoleOperator}

// IsValidRole returns true if r can be issued in a token.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Principal is the identity behind an authenticated request.
type Principal struct {
	Subject string `json:"subject"`
	Role    Role   `json:"role"`
	// Method is "key" for the shared key, "token" for a bearer JWT, or
	// "none" when authentication is disabled.
	Method string `json:"method"`
}

// Domain errors for the auth package.
var (
	ErrUnauthorized = errors.New("auth: unauthorised")
	ErrForbidden    = errors.New("auth: forbidden")
	ErrTokenInvalid = errors.New("auth: invalid token")
	ErrKeyRequired  = errors.New("auth: signing key is empty")
)
