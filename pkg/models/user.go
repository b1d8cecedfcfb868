package models

// UserRole controls post-execution redaction only. It never alters what is
// generated or executed.
type UserRole string

const (
	RoleStandardUser UserRole = "standard_user"
	RoleSuperUser    UserRole = "super_user"
)

// UserInfo is the authenticated caller.
type UserInfo struct {
	Email      string   `json:"email"`
	Name       string   `json:"name"`
	Department string   `json:"department"`
	Role       UserRole `json:"role"`
}

// IsSuperUser reports whether the caller may see SQL and raw results.
func (u *UserInfo) IsSuperUser() bool {
	return u.Role == RoleSuperUser
}
