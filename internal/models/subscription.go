package models

import "time"

// Subscription states. A purchase starts inactive; a valid TOTP code
// activates it; the sweeper flips past-due active rows to expired.
const (
	SubscriptionInactive = "inactive"
	SubscriptionActive   = "active"
	SubscriptionExpired  = "expired"
)

// Plan is a purchasable, time-boxed subscription tier.
type Plan struct {
	BaseModel

	Code         string `gorm:"uniqueIndex;not null" json:"code"`
	Name         string `gorm:"not null" json:"name"`
	PriceCents   int64  `gorm:"not null" json:"price_cents"`
	DurationDays int    `gorm:"not null" json:"duration_days"`
}

// Subscription binds a device to a plan for a bounded period.
type Subscription struct {
	BaseModel

	UserID string      `gorm:"type:uuid;not null;index" json:"user_id"`
	User   *PortalUser `gorm:"foreignKey:UserID" json:"-"`

	DeviceID string  `gorm:"type:uuid;not null;index" json:"device_id"`
	Device   *Device `gorm:"foreignKey:DeviceID" json:"-"`

	PlanID string `gorm:"type:uuid;not null" json:"plan_id"`
	Plan   *Plan  `gorm:"foreignKey:PlanID" json:"plan,omitempty"`

	Status string `gorm:"default:inactive;index" json:"status"`

	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
}
