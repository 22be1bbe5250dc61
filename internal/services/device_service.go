package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/medlemine/ashport/internal/auth/totp"
	"github.com/medlemine/ashport/internal/models"
	apperrors "github.com/medlemine/ashport/pkg/errors"
)

// ErrDeviceNotFound indicates the device does not exist or belongs to another
// user.
var ErrDeviceNotFound = apperrors.New("DEVICE_NOT_FOUND", "Device not found", http.StatusNotFound)

// RegisterDeviceInput describes a device registration request.
type RegisterDeviceInput struct {
	OwnerID string
	Name    string
	Serial  string
}

// DeviceEnrolment is returned from registration so the owner can load the
// device secret into an authenticator app.
type DeviceEnrolment struct {
	Device          *models.Device `json:"device"`
	ProvisioningURI string         `json:"provisioning_uri"`
	QRCodePNG       string         `json:"qr_code_png"`
}

// DeviceService manages registered devices and their TOTP enrolment.
type DeviceService struct {
	db   *gorm.DB
	totp *totp.Service
}

// NewDeviceService constructs a DeviceService instance.
func NewDeviceService(db *gorm.DB, totpService *totp.Service) (*DeviceService, error) {
	if db == nil {
		return nil, errors.New("device service: db is required")
	}
	if totpService == nil {
		return nil, errors.New("device service: totp service is required")
	}
	return &DeviceService{db: db, totp: totpService}, nil
}

// Register creates a device for the owner and enrols a TOTP secret for it.
// The provisioning URI and QR code are only returned here; later reads expose
// neither.
func (s *DeviceService) Register(ctx context.Context, input RegisterDeviceInput) (*DeviceEnrolment, error) {
	ctx = ensureContext(ctx)

	ownerID := strings.TrimSpace(input.OwnerID)
	name := strings.TrimSpace(input.Name)
	serial := strings.TrimSpace(input.Serial)
	if ownerID == "" {
		return nil, apperrors.NewBadRequest("owner is required")
	}
	if name == "" || serial == "" {
		return nil, apperrors.NewBadRequest("device name and serial are required")
	}

	var owner models.PortalUser
	if err := s.db.WithContext(ctx).Where("id = ?", ownerID).First(&owner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPortalUserNotFound
		}
		return nil, fmt.Errorf("device service: load owner: %w", err)
	}

	device := &models.Device{
		OwnerID: ownerID,
		Name:    name,
		Serial:  serial,
	}
	if err := s.db.WithContext(ctx).Create(device).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("a device with this serial is already registered")
		}
		return nil, fmt.Errorf("device service: create device: %w", err)
	}

	key, err := s.totp.Enroll(ctx, device.ID, fmt.Sprintf("%s:%s", owner.Email, serial))
	if err != nil {
		// Roll back the half-registered device so the owner can retry cleanly.
		if delErr := s.db.WithContext(ctx).Delete(device).Error; delErr != nil {
			return nil, fmt.Errorf("device service: enroll totp: %w (cleanup failed: %v)", err, delErr)
		}
		return nil, fmt.Errorf("device service: enroll totp: %w", err)
	}

	device.TOTPEnrolled = true
	if err := s.db.WithContext(ctx).Model(device).Update("totp_enrolled", true).Error; err != nil {
		return nil, fmt.Errorf("device service: mark enrolled: %w", err)
	}

	png, err := s.totp.ProvisioningQR(key)
	if err != nil {
		return nil, fmt.Errorf("device service: render qr: %w", err)
	}

	return &DeviceEnrolment{
		Device:          device,
		ProvisioningURI: key.String(),
		QRCodePNG:       base64.StdEncoding.EncodeToString(png),
	}, nil
}

// ProvisioningQR re-issues the enrolment QR code for an existing device.
func (s *DeviceService) ProvisioningQR(ctx context.Context, ownerID, deviceID string) ([]byte, error) {
	ctx = ensureContext(ctx)

	device, err := s.GetForOwner(ctx, ownerID, deviceID)
	if err != nil {
		return nil, err
	}

	var owner models.PortalUser
	if err := s.db.WithContext(ctx).Where("id = ?", device.OwnerID).First(&owner).Error; err != nil {
		return nil, fmt.Errorf("device service: load owner: %w", err)
	}

	key, err := s.totp.ProvisioningKey(ctx, device.ID, fmt.Sprintf("%s:%s", owner.Email, device.Serial))
	if err != nil {
		return nil, fmt.Errorf("device service: rebuild key: %w", err)
	}
	return s.totp.ProvisioningQR(key)
}

// ListForOwner returns the owner's devices, newest first.
func (s *DeviceService) ListForOwner(ctx context.Context, ownerID string) ([]models.Device, error) {
	ctx = ensureContext(ctx)

	var devices []models.Device
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", strings.TrimSpace(ownerID)).
		Order("created_at DESC").
		Find(&devices).Error
	if err != nil {
		return nil, fmt.Errorf("device service: list devices: %w", err)
	}
	return devices, nil
}

// GetForOwner loads a device scoped to its owner. Devices owned by other
// users report not found rather than forbidden.
func (s *DeviceService) GetForOwner(ctx context.Context, ownerID, deviceID string) (*models.Device, error) {
	ctx = ensureContext(ctx)

	var device models.Device
	err := s.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", strings.TrimSpace(deviceID), strings.TrimSpace(ownerID)).
		First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("device service: load device: %w", err)
	}
	return &device, nil
}

// Delete removes a device and its TOTP secret. Subscriptions referencing the
// device are kept for history.
func (s *DeviceService) Delete(ctx context.Context, ownerID, deviceID string) error {
	ctx = ensureContext(ctx)

	device, err := s.GetForOwner(ctx, ownerID, deviceID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("device_id = ?", device.ID).Delete(&models.DeviceTOTPSecret{}).Error; err != nil {
			return fmt.Errorf("device service: delete secret: %w", err)
		}
		if err := tx.Delete(device).Error; err != nil {
			return fmt.Errorf("device service: delete device: %w", err)
		}
		return nil
	})
}
