package models

import "time"

// Device is a registered unit on the subscription portal. Each device is
// enrolled with a TOTP secret at registration time; subscription activation
// requires a valid code from it.
type Device struct {
	BaseModel

	OwnerID string      `gorm:"type:uuid;not null;index;uniqueIndex:idx_owner_serial" json:"owner_id"`
	Owner   *PortalUser `gorm:"foreignKey:OwnerID" json:"-"`

	Name   string `gorm:"not null" json:"name"`
	Serial string `gorm:"not null;uniqueIndex:idx_owner_serial" json:"serial"`

	TOTPEnrolled bool `gorm:"default:false" json:"totp_enrolled"`

	Secret *DeviceTOTPSecret `gorm:"foreignKey:DeviceID" json:"-"`
}

// DeviceTOTPSecret stores the encrypted TOTP seed for a device.
type DeviceTOTPSecret struct {
	BaseModel

	DeviceID string `gorm:"type:uuid;uniqueIndex;not null" json:"device_id"`

	// Secret is AES-GCM encrypted with the process sealing key.
	Secret string `gorm:"not null" json:"-"`

	LastUsedAt *time.Time `json:"last_used_at"`
}
