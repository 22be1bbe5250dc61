package models

import "time"

// PortalUser owns devices and subscriptions on the device portal.
type PortalUser struct {
	BaseModel

	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	FullName string `json:"full_name"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	Devices       []Device       `gorm:"foreignKey:OwnerID" json:"devices,omitempty"`
	Subscriptions []Subscription `gorm:"foreignKey:UserID" json:"-"`

	LastLoginAt *time.Time `json:"last_login_at"`
}
