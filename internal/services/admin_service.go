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

var (
	// ErrAdminNotFound indicates the requested admin does not exist.
	ErrAdminNotFound = apperrors.New("ADMIN_NOT_FOUND", "Admin not found", http.StatusNotFound)
	// ErrSuperAdminExists enforces the single-super-admin invariant via a
	// pre-check query. The check-then-create window is not transactional.
	ErrSuperAdminExists = apperrors.New("SUPER_ADMIN_EXISTS", "A super admin already exists", http.StatusConflict)
)

// CreateAdminInput describes the fields accepted when creating an admin.
type CreateAdminInput struct {
	Email    string
	Password string
	FullName string
	Role     string
}

// AdminService manages operator accounts and credential checks.
type AdminService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAdminService constructs an AdminService instance.
func NewAdminService(db *gorm.DB) (*AdminService, error) {
	if db == nil {
		return nil, errors.New("admin service: db is required")
	}
	return &AdminService{db: db, now: time.Now}, nil
}

// Create provisions a new admin with a hashed password. Only one super admin
// may exist.
func (s *AdminService) Create(ctx context.Context, input CreateAdminInput) (*models.Admin, error) {
	ctx = ensureContext(ctx)

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return nil, apperrors.NewBadRequest("password is required")
	}

	role := strings.TrimSpace(input.Role)
	if role == "" {
		role = models.RoleAdmin
	}
	if role != models.RoleAdmin && role != models.RoleSuperAdmin {
		return nil, apperrors.NewBadRequest("role must be admin or super_admin")
	}

	if role == models.RoleSuperAdmin {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Admin{}).Where("role = ?", models.RoleSuperAdmin).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("admin service: count super admins: %w", err)
		}
		if count > 0 {
			return nil, ErrSuperAdminExists
		}
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("admin service: hash password: %w", err)
	}

	admin := &models.Admin{
		Email:    email,
		Password: hashed,
		FullName: strings.TrimSpace(input.FullName),
		Role:     role,
		IsActive: true,
	}

	if err := s.db.WithContext(ctx).Create(admin).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("an admin with this email already exists")
		}
		return nil, fmt.Errorf("admin service: create admin: %w", err)
	}

	return admin, nil
}

// Authenticate verifies credentials and returns the active admin.
func (s *AdminService) Authenticate(ctx context.Context, email, password string) (*models.Admin, error) {
	ctx = ensureContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	var admin models.Admin
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&admin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.AuthAttempts.WithLabelValues("admin", "failure").Inc()
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("admin service: load admin: %w", err)
	}

	if !crypto.VerifyPassword(admin.Password, password) {
		metrics.AuthAttempts.WithLabelValues("admin", "failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	if !admin.IsActive {
		metrics.AuthAttempts.WithLabelValues("admin", "failure").Inc()
		return nil, apperrors.ErrAccountInactive
	}

	now := s.now()
	admin.LastLoginAt = &now
	if err := s.db.WithContext(ctx).Model(&admin).Update("last_login_at", &now).Error; err != nil {
		return nil, fmt.Errorf("admin service: stamp login: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("admin", "success").Inc()
	return &admin, nil
}

// GetByID loads a single admin.
func (s *AdminService) GetByID(ctx context.Context, id string) (*models.Admin, error) {
	ctx = ensureContext(ctx)

	var admin models.Admin
	err := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).First(&admin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("admin service: load admin: %w", err)
	}
	return &admin, nil
}

// List returns every admin, newest first.
func (s *AdminService) List(ctx context.Context) ([]models.Admin, error) {
	ctx = ensureContext(ctx)

	var admins []models.Admin
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&admins).Error; err != nil {
		return nil, fmt.Errorf("admin service: list admins: %w", err)
	}
	return admins, nil
}

// SetActive toggles an admin's active flag. A deactivated admin fails the
// bearer re-check on their next privileged call.
func (s *AdminService) SetActive(ctx context.Context, id string, active bool) (*models.Admin, error) {
	ctx = ensureContext(ctx)

	admin, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	admin.IsActive = active
	if err := s.db.WithContext(ctx).Model(admin).Update("is_active", active).Error; err != nil {
		return nil, fmt.Errorf("admin service: update active flag: %w", err)
	}
	return admin, nil
}
