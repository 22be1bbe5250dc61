package models

import "time"

// Admin roles. SuperAdmin manages other admins; at most one may exist.
const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// Admin describes an operator reviewing verification submissions.
type Admin struct {
	BaseModel

	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	FullName string `json:"full_name"`

	Role     string `gorm:"default:admin;index" json:"role"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	LastLoginAt *time.Time `json:"last_login_at"`
}

// IsSuperAdmin reports whether the admin holds the super_admin role.
func (a *Admin) IsSuperAdmin() bool {
	return a != nil && a.Role == RoleSuperAdmin
}
