package model

// Package model contains domain models shared across layers.
// No persistence or transport logic lives here.

// Role is the privilege level carried by an authenticated caller.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Identity is the resolved caller of a request. A nil *Identity means the
// caller is anonymous.
type Identity struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

// IsAdmin is nil-safe so callers can pass an anonymous identity directly.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	return r == RoleUser || r == RoleAdmin
}
