package totp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/skip2/go-qrcode"
	"gorm.io/gorm"

	"github.com/medlemine/ashport/internal/models"
	"github.com/medlemine/ashport/pkg/crypto"
)

const (
	defaultIssuer     = "Ashport"
	defaultQRCodeSize = 256
)

// Option allows customising the TOTP service.
type Option func(*Service)

// WithIssuer overrides the default issuer string encoded in provisioning URIs.
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		if strings.TrimSpace(issuer) != "" {
			s.issuer = issuer
		}
	}
}

// WithQRCodeSize controls the pixel size of generated QR codes.
func WithQRCodeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.qrCodeSize = size
		}
	}
}

// WithClock injects a custom clock, primarily for testing.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.now = clock
		}
	}
}

// Service manages per-device TOTP secrets. Secrets are stored encrypted with
// the process sealing key; subscription activation calls VerifyCode.
type Service struct {
	db            *gorm.DB
	encryptionKey []byte

	issuer     string
	qrCodeSize int
	now        func() time.Time
}

// NewService constructs a TOTP service backed by the provided database.
func NewService(db *gorm.DB, encryptionKey []byte, opts ...Option) (*Service, error) {
	if db == nil {
		return nil, errors.New("totp: db is required")
	}
	if len(encryptionKey) == 0 {
		return nil, errors.New("totp: encryption key is required")
	}

	service := &Service{
		db:            db,
		encryptionKey: encryptionKey,
		issuer:        defaultIssuer,
		qrCodeSize:    defaultQRCodeSize,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Enroll provisions a new TOTP secret for a device, replacing any previous one.
func (s *Service) Enroll(ctx context.Context, deviceID, accountName string) (*otp.Key, error) {
	deviceID = strings.TrimSpace(deviceID)
	accountName = strings.TrimSpace(accountName)

	if deviceID == "" || accountName == "" {
		return nil, errors.New("totp: device id and account name are required")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: accountName,
	})
	if err != nil {
		return nil, fmt.Errorf("totp: generate key: %w", err)
	}

	encryptedSecret, err := crypto.Encrypt([]byte(key.Secret()), s.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("totp: encrypt secret: %w", err)
	}

	var secret models.DeviceTOTPSecret
	if err := s.db.WithContext(ctx).Where("device_id = ?", deviceID).First(&secret).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("totp: load device secret: %w", err)
		}

		secret = models.DeviceTOTPSecret{
			DeviceID: deviceID,
			Secret:   encryptedSecret,
		}

		if err := s.db.WithContext(ctx).Create(&secret).Error; err != nil {
			return nil, fmt.Errorf("totp: create device secret: %w", err)
		}
	} else {
		secret.Secret = encryptedSecret
		secret.LastUsedAt = nil

		if err := s.db.WithContext(ctx).Save(&secret).Error; err != nil {
			return nil, fmt.Errorf("totp: update device secret: %w", err)
		}
	}

	return key, nil
}

// VerifyCode checks a submitted TOTP code against the device's stored secret.
func (s *Service) VerifyCode(ctx context.Context, deviceID, code string) (bool, error) {
	deviceID = strings.TrimSpace(deviceID)
	code = strings.TrimSpace(code)
	if deviceID == "" || code == "" {
		return false, errors.New("totp: device id and code are required")
	}

	secret, err := s.loadSecret(ctx, deviceID)
	if err != nil {
		return false, err
	}

	rawSecret, err := crypto.Decrypt(secret.Secret, s.encryptionKey)
	if err != nil {
		return false, fmt.Errorf("totp: decrypt secret: %w", err)
	}

	valid, err := totp.ValidateCustom(code, string(rawSecret), s.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false, fmt.Errorf("totp: validate code: %w", err)
	}

	if valid {
		now := s.now()
		if err := s.db.WithContext(ctx).Model(secret).Update("last_used_at", &now).Error; err != nil {
			return false, fmt.Errorf("totp: update last used: %w", err)
		}
	}

	return valid, nil
}

// ProvisioningQR returns a PNG-encoded QR code for the provided TOTP key.
func (s *Service) ProvisioningQR(key *otp.Key) ([]byte, error) {
	if key == nil {
		return nil, errors.New("totp: key is required")
	}
	return qrcode.Encode(key.String(), qrcode.Medium, s.qrCodeSize)
}

// ProvisioningKey rebuilds the otpauth key from the stored secret so the QR
// code can be re-issued after enrolment.
func (s *Service) ProvisioningKey(ctx context.Context, deviceID, accountName string) (*otp.Key, error) {
	accountName = strings.TrimSpace(accountName)
	if accountName == "" {
		return nil, errors.New("totp: account name is required")
	}

	secret, err := s.loadSecret(ctx, strings.TrimSpace(deviceID))
	if err != nil {
		return nil, err
	}

	rawSecret, err := crypto.Decrypt(secret.Secret, s.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("totp: decrypt secret: %w", err)
	}

	uri := url.URL{
		Scheme: "otpauth",
		Host:   "totp",
		Path:   "/" + s.issuer + ":" + accountName,
		RawQuery: url.Values{
			"secret":    {string(rawSecret)},
			"issuer":    {s.issuer},
			"period":    {"30"},
			"algorithm": {"SHA1"},
			"digits":    {"6"},
		}.Encode(),
	}

	key, err := otp.NewKeyFromURL(uri.String())
	if err != nil {
		return nil, fmt.Errorf("totp: build key: %w", err)
	}
	return key, nil
}

func (s *Service) loadSecret(ctx context.Context, deviceID string) (*models.DeviceTOTPSecret, error) {
	var secret models.DeviceTOTPSecret
	if err := s.db.WithContext(ctx).Where("device_id = ?", deviceID).First(&secret).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("totp: secret not found for device %s", deviceID)
		}
		return nil, fmt.Errorf("totp: load secret: %w", err)
	}

	return &secret, nil
}
