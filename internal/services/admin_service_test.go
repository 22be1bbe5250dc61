package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/medlemine/ashport/internal/database/testutil"
	"github.com/medlemine/ashport/internal/models"
	apperrors "github.com/medlemine/ashport/pkg/errors"
)

func TestCreateAdminHashesPassword(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewAdminService(db)
	require.NoError(t, err)

	admin, err := svc.Create(context.Background(), CreateAdminInput{
		Email:    "Ops@Example.com",
		Password: "correct horse",
		FullName: "Ops Admin",
	})
	require.NoError(t, err)
	require.Equal(t, "ops@example.com", admin.Email)
	require.Equal(t, models.RoleAdmin, admin.Role)
	require.NotEqual(t, "correct horse", admin.Password)
	require.True(t, admin.IsActive)
}

func TestCreateAdminDuplicateEmail(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewAdminService(db)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Create(ctx, CreateAdminInput{Email: "ops@example.com", Password: "pw-one"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateAdminInput{Email: "ops@example.com", Password: "pw-two"})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, 409, appErr.StatusCode)
}

func TestOnlyOneSuperAdmin(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewAdminService(db)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateAdminInput{
		Email:    "root@example.com",
		Password: "pw",
		Role:     models.RoleSuperAdmin,
	})
	require.NoError(t, err)
	require.True(t, first.IsSuperAdmin())

	_, err = svc.Create(ctx, CreateAdminInput{
		Email:    "root2@example.com",
		Password: "pw",
		Role:     models.RoleSuperAdmin,
	})
	require.ErrorIs(t, err, ErrSuperAdminExists)
}

func TestAuthenticateAdmin(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewAdminService(db)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Create(ctx, CreateAdminInput{Email: "ops@example.com", Password: "correct horse"})
	require.NoError(t, err)

	admin, err := svc.Authenticate(ctx, "ops@example.com", "correct horse")
	require.NoError(t, err)
	require.NotNil(t, admin.LastLoginAt)

	_, err = svc.Authenticate(ctx, "ops@example.com", "wrong")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "correct horse")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestAuthenticateDeactivatedAdmin(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewAdminService(db)
	require.NoError(t, err)
	ctx := context.Background()

	admin, err := svc.Create(ctx, CreateAdminInput{Email: "ops@example.com", Password: "pw"})
	require.NoError(t, err)

	_, err = svc.SetActive(ctx, admin.ID, false)
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "ops@example.com", "pw")
	require.ErrorIs(t, err, apperrors.ErrAccountInactive)
}
