package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/medlemine/ashport/internal/database/testutil"
	apperrors "github.com/medlemine/ashport/pkg/errors"
)

func TestPortalRegisterAndAuthenticate(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewPortalService(db)
	require.NoError(t, err)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterPortalUserInput{
		Email:    "Jane@Example.com",
		Password: "pw",
		FullName: "Jane Doe",
	})
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", user.Email)
	require.NotEqual(t, "pw", user.Password)

	authed, err := svc.Authenticate(ctx, "jane@example.com", "pw")
	require.NoError(t, err)
	require.Equal(t, user.ID, authed.ID)
	require.NotNil(t, authed.LastLoginAt)

	_, err = svc.Authenticate(ctx, "jane@example.com", "nope")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestPortalRegisterDuplicateEmail(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewPortalService(db)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Register(ctx, RegisterPortalUserInput{Email: "jane@example.com", Password: "pw"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterPortalUserInput{Email: "jane@example.com", Password: "pw"})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, 409, appErr.StatusCode)
}
