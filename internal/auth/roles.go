package auth

import "fmt"

// Role is the closed set of principals the authorization boundary knows about.
// Handlers match on Role values, never on raw strings from the token.
type Role string

const (
	RoleSuperadmin Role = "superadmin"
	RoleSubadmin   Role = "subadmin"
	RoleViewer     Role = "viewer"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSuperadmin, RoleSubadmin, RoleViewer:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role: %q", s)
}

// CanControlDetection reports whether the role may start or stop detection
// on a camera. ownsCamera is whether the camera's subadmin matches the caller.
func (r Role) CanControlDetection(ownsCamera bool) bool {
	switch r {
	case RoleSuperadmin:
		return true
	case RoleSubadmin:
		return ownsCamera
	default:
		return false
	}
}
