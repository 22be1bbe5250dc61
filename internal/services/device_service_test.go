package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/medlemine/ashport/internal/auth/totp"
	"github.com/medlemine/ashport/internal/database/testutil"
	"github.com/medlemine/ashport/internal/models"
	apperrors "github.com/medlemine/ashport/pkg/errors"
)

func newDeviceFixture(t *testing.T) (*DeviceService, *models.PortalUser) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	totpSvc, err := totp.NewService(db, totpTestKey)
	require.NoError(t, err)

	portal, err := NewPortalService(db)
	require.NoError(t, err)

	devices, err := NewDeviceService(db, totpSvc)
	require.NoError(t, err)

	user, err := portal.Register(context.Background(), RegisterPortalUserInput{
		Email:    "jane@example.com",
		Password: "pw",
	})
	require.NoError(t, err)

	return devices, user
}

func TestRegisterDeviceEnrolsTOTP(t *testing.T) {
	devices, user := newDeviceFixture(t)

	enrolment, err := devices.Register(context.Background(), RegisterDeviceInput{
		OwnerID: user.ID,
		Name:    "Living room unit",
		Serial:  "SN-0001",
	})
	require.NoError(t, err)

	require.True(t, enrolment.Device.TOTPEnrolled)
	require.True(t, strings.HasPrefix(enrolment.ProvisioningURI, "otpauth://totp/"))
	require.NotEmpty(t, enrolment.QRCodePNG)
}

func TestRegisterDeviceDuplicateSerialPerOwner(t *testing.T) {
	devices, user := newDeviceFixture(t)
	ctx := context.Background()

	_, err := devices.Register(ctx, RegisterDeviceInput{OwnerID: user.ID, Name: "A", Serial: "SN-0001"})
	require.NoError(t, err)

	_, err = devices.Register(ctx, RegisterDeviceInput{OwnerID: user.ID, Name: "B", Serial: "SN-0001"})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, 409, appErr.StatusCode)
}

func TestDevicesAreOwnerScoped(t *testing.T) {
	devices, user := newDeviceFixture(t)
	ctx := context.Background()

	enrolment, err := devices.Register(ctx, RegisterDeviceInput{OwnerID: user.ID, Name: "A", Serial: "SN-0001"})
	require.NoError(t, err)

	got, err := devices.GetForOwner(ctx, user.ID, enrolment.Device.ID)
	require.NoError(t, err)
	require.Equal(t, "SN-0001", got.Serial)

	_, err = devices.GetForOwner(ctx, "someone-else", enrolment.Device.ID)
	require.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestDeleteDeviceRemovesSecret(t *testing.T) {
	devices, user := newDeviceFixture(t)
	ctx := context.Background()

	enrolment, err := devices.Register(ctx, RegisterDeviceInput{OwnerID: user.ID, Name: "A", Serial: "SN-0001"})
	require.NoError(t, err)

	require.NoError(t, devices.Delete(ctx, user.ID, enrolment.Device.ID))

	var count int64
	require.NoError(t, devices.db.Model(&models.DeviceTOTPSecret{}).
		Where("device_id = ?", enrolment.Device.ID).Count(&count).Error)
	require.Zero(t, count)

	listed, err := devices.ListForOwner(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, listed)
}
