package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Verification lifecycle states. "encrypted" and "unencrypted" are the
// domain's words for approved and declined; every record starts pending.
const (
	VerificationPending     = "pending"
	VerificationEncrypted   = "encrypted"
	VerificationUnencrypted = "unencrypted"
)

// ImageCount is the exact number of license photos carried by a submission.
const ImageCount = 2

// VerificationRecord is a single identity-verification submission. The
// canonical record keeps the bare phone number; every status-check
// resubmission stores a copy under a suffixed ("slugged") number so the
// unique index is never violated.
type VerificationRecord struct {
	BaseModel

	PhoneNumber string `gorm:"uniqueIndex;not null" json:"phone_number"`
	FullName    string `gorm:"not null" json:"full_name"`
	Address     string `gorm:"not null" json:"address"`

	ImageURLs      datatypes.JSONSlice[string] `json:"image_urls"`
	ImagePublicIDs datatypes.JSONSlice[string] `json:"image_public_ids"`

	Status string `gorm:"default:pending;index" json:"status"`

	// SealedData holds the AES-GCM ciphertext of the identity payload once
	// the record is approved. Never serialised in review views.
	SealedData *string `json:"-"`

	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	ApprovedByID  *string    `gorm:"type:uuid" json:"approved_by,omitempty"`
	ApprovedBy    *Admin     `gorm:"foreignKey:ApprovedByID" json:"-"`
	DeclineReason string     `json:"decline_reason,omitempty"`
}

// BeforeSave enforces the two-image invariant for any record carrying images.
func (r *VerificationRecord) BeforeSave(tx *gorm.DB) error {
	if len(r.ImageURLs) != ImageCount || len(r.ImagePublicIDs) != ImageCount {
		return fmt.Errorf("verification record requires exactly %d image urls and public ids", ImageCount)
	}
	return nil
}

// Processed reports whether an admin decision has already been recorded.
func (r *VerificationRecord) Processed() bool {
	return r.Status != VerificationPending
}
