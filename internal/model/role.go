package model

// Role is a user's authority level in the synagogue.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleGabai   Role = "gabai"
	RoleUser    Role = "user"
)

// rank orders roles by authority. Unknown roles rank 0 and never compare as
// at least any known role.
func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 4
	case RoleManager:
		return 3
	case RoleGabai:
		return 2
	case RoleUser:
		return 1
	default:
		return 0
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r.rank() > 0
}

// AtLeast reports whether r carries the same or more authority than other.
func (r Role) AtLeast(other Role) bool {
	return r.Valid() && other.Valid() && r.rank() >= other.rank()
}

// Above reports whether r carries strictly more authority than other.
func (r Role) Above(other Role) bool {
	return r.Valid() && other.Valid() && r.rank() > other.rank()
}

// Elevated reports whether r is a staff role (gabai or higher).
func (r Role) Elevated() bool {
	return r.AtLeast(RoleGabai)
}

// Roles lists every known role from most to least privileged.
func Roles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleGabai, RoleUser}
}
