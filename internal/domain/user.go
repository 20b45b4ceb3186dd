package domain

// Role enumerates dashboard roles.
type Role string

const (
	RoleL1     Role = "l1"
	RoleL2     Role = "l2"
	RoleL3     Role = "l3"
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

// Tier maps a support role to its level.
func (r Role) Tier() (Level, bool) {
	switch r {
	case RoleL1:
		return LevelL1, true
	case RoleL2:
		return LevelL2, true
	case RoleL3:
		return LevelL3, true
	}
	return "", false
}

// IsSupport reports whether the role belongs to a support tier.
func (r Role) IsSupport() bool {
	_, ok := r.Tier()
	return ok
}

// RoleForLevel returns the support role staffing a level.
func RoleForLevel(l Level) Role {
	return Role(l)
}

// User is anyone acting on tickets: clients, tier staff and admins.
type User struct {
	ID     string
	Name   string
	Email  string
	Role   Role
	Active bool
}
