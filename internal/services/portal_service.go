package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/medlemine/ashport/internal/models"
	"github.com/medlemine/ashport/pkg/crypto"
	apperrors "github.com/medlemine/ashport/pkg/errors"
	"github.com/medlemine/ashport/pkg/metrics"
)

// ErrPortalUserNotFound indicates the requested portal user does not exist.
var ErrPortalUserNotFound = apperrors.New("PORTAL_USER_NOT_FOUND", "User not found", http.StatusNotFound)

// RegisterPortalUserInput describes a portal signup request.
type RegisterPortalUserInput struct {
	Email    string
	Password string
	FullName string
}

// PortalService manages subscriber accounts on the device portal.
type PortalService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPortalService constructs a PortalService instance.
func NewPortalService(db *gorm.DB) (*PortalService, error) {
	if db == nil {
		return nil, errors.New("portal service: db is required")
	}
	return &PortalService{db: db, now: time.Now}, nil
}

// Register creates a new portal user with a hashed password.
func (s *PortalService) Register(ctx context.Context, input RegisterPortalUserInput) (*models.PortalUser, error) {
	ctx = ensureContext(ctx)

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return nil, apperrors.NewBadRequest("password is required")
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("portal service: hash password: %w", err)
	}

	user := &models.PortalUser{
		Email:    email,
		Password: hashed,
		FullName: strings.TrimSpace(input.FullName),
		IsActive: true,
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("an account with this email already exists")
		}
		return nil, fmt.Errorf("portal service: create user: %w", err)
	}

	return user, nil
}

// Authenticate verifies portal credentials and returns the active user.
func (s *PortalService) Authenticate(ctx context.Context, email, password string) (*models.PortalUser, error) {
	ctx = ensureContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	var user models.PortalUser
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.AuthAttempts.WithLabelValues("portal", "failure").Inc()
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("portal service: load user: %w", err)
	}

	if !crypto.VerifyPassword(user.Password, password) {
		metrics.AuthAttempts.WithLabelValues("portal", "failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		metrics.AuthAttempts.WithLabelValues("portal", "failure").Inc()
		return nil, apperrors.ErrAccountInactive
	}

	now := s.now()
	user.LastLoginAt = &now
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", &now).Error; err != nil {
		return nil, fmt.Errorf("portal service: stamp login: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("portal", "success").Inc()
	return &user, nil
}

// GetByID loads a single portal user.
func (s *PortalService) GetByID(ctx context.Context, id string) (*models.PortalUser, error) {
	ctx = ensureContext(ctx)

	var user models.PortalUser
	err := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPortalUserNotFound
		}
		return nil, fmt.Errorf("portal service: load user: %w", err)
	}
	return &user, nil
}
