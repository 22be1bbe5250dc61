package services

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp"
	gototp "github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/medlemine/ashport/internal/auth/totp"
	"github.com/medlemine/ashport/internal/database/testutil"
	"github.com/medlemine/ashport/internal/models"
)

var totpTestKey = []byte("0123456789abcdef0123456789abcdef")

type portalFixture struct {
	db            *gorm.DB
	portal        *PortalService
	devices       *DeviceService
	subscriptions *SubscriptionService

	user      *models.PortalUser
	enrolment *DeviceEnrolment
	secret    string
	clock     *time.Time
}

// newPortalFixture seeds a portal user with one enrolled device and a plan
// catalogue, sharing a controllable clock between TOTP and subscriptions.
func newPortalFixture(t *testing.T) *portalFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := &at

	totpSvc, err := totp.NewService(db, totpTestKey, totp.WithClock(func() time.Time { return *clock }))
	require.NoError(t, err)

	portal, err := NewPortalService(db)
	require.NoError(t, err)

	devices, err := NewDeviceService(db, totpSvc)
	require.NoError(t, err)

	subscriptions, err := NewSubscriptionService(db, totpSvc)
	require.NoError(t, err)
	subscriptions.now = func() time.Time { return *clock }

	ctx := context.Background()
	user, err := portal.Register(ctx, RegisterPortalUserInput{
		Email:    "jane@example.com",
		Password: "pw",
		FullName: "Jane Doe",
	})
	require.NoError(t, err)

	enrolment, err := devices.Register(ctx, RegisterDeviceInput{
		OwnerID: user.ID,
		Name:    "Living room unit",
		Serial:  "SN-0001",
	})
	require.NoError(t, err)
	require.True(t, enrolment.Device.TOTPEnrolled)

	key, err := otp.NewKeyFromURL(enrolment.ProvisioningURI)
	require.NoError(t, err)

	return &portalFixture{
		db:            db,
		portal:        portal,
		devices:       devices,
		subscriptions: subscriptions,
		user:          user,
		enrolment:     enrolment,
		secret:        key.Secret(),
		clock:         clock,
	}
}

func (f *portalFixture) code(t *testing.T) string {
	t.Helper()

	code, err := gototp.GenerateCode(f.secret, *f.clock)
	require.NoError(t, err)
	return code
}

func TestPurchaseStartsInactive(t *testing.T) {
	f := newPortalFixture(t)
	ctx := context.Background()

	sub, err := f.subscriptions.Purchase(ctx, f.user.ID, f.enrolment.Device.ID, "monthly")
	require.NoError(t, err)
	require.Equal(t, models.SubscriptionInactive, sub.Status)
	require.Nil(t, sub.StartsAt)
	require.Nil(t, sub.EndsAt)
}

func TestPurchaseUnknownPlan(t *testing.T) {
	f := newPortalFixture(t)

	_, err := f.subscriptions.Purchase(context.Background(), f.user.ID, f.enrolment.Device.ID, "lifetime")
	require.ErrorIs(t, err, ErrPlanNotFound)
}

func TestPurchaseForeignDevice(t *testing.T) {
	f := newPortalFixture(t)
	ctx := context.Background()

	other, err := f.portal.Register(ctx, RegisterPortalUserInput{
		Email:    "mallory@example.com",
		Password: "pw",
	})
	require.NoError(t, err)

	_, err = f.subscriptions.Purchase(ctx, other.ID, f.enrolment.Device.ID, "monthly")
	require.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestActivateWithValidCode(t *testing.T) {
	f := newPortalFixture(t)
	ctx := context.Background()

	sub, err := f.subscriptions.Purchase(ctx, f.user.ID, f.enrolment.Device.ID, "monthly")
	require.NoError(t, err)

	activated, err := f.subscriptions.Activate(ctx, f.user.ID, sub.ID, f.code(t))
	require.NoError(t, err)
	require.Equal(t, models.SubscriptionActive, activated.Status)
	require.NotNil(t, activated.StartsAt)
	require.NotNil(t, activated.EndsAt)
	require.Equal(t, activated.StartsAt.AddDate(0, 0, 30), *activated.EndsAt)
}

func TestActivateRejectsBadCode(t *testing.T) {
	f := newPortalFixture(t)
	ctx := context.Background()

	sub, err := f.subscriptions.Purchase(ctx, f.user.ID, f.enrolment.Device.ID, "monthly")
	require.NoError(t, err)

	_, err = f.subscriptions.Activate(ctx, f.user.ID, sub.ID, "000000")
	require.ErrorIs(t, err, ErrInvalidTOTPCode)

	reloaded, err := f.subscriptions.GetForUser(ctx, f.user.ID, sub.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubscriptionInactive, reloaded.Status)
}

func TestActivateIsExactlyOnce(t *testing.T) {
	f := newPortalFixture(t)
	ctx := context.Background()

	sub, err := f.subscriptions.Purchase(ctx, f.user.ID, f.enrolment.Device.ID, "monthly")
	require.NoError(t, err)

	_, err = f.subscriptions.Activate(ctx, f.user.ID, sub.ID, f.code(t))
	require.NoError(t, err)

	_, err = f.subscriptions.Activate(ctx, f.user.ID, sub.ID, f.code(t))
	require.ErrorIs(t, err, ErrSubscriptionNotActivatable)
}

func TestProgressTracksElapsedDays(t *testing.T) {
	f := newPortalFixture(t)
	ctx := context.Background()

	sub, err := f.subscriptions.Purchase(ctx, f.user.ID, f.enrolment.Device.ID, "monthly")
	require.NoError(t, err)

	before, err := f.subscriptions.Progress(ctx, f.user.ID, sub.ID)
	require.NoError(t, err)
	require.Equal(t, 0, before.DaysElapsed)
	require.Equal(t, 30, before.DaysRemaining)

	_, err = f.subscriptions.Activate(ctx, f.user.ID, sub.ID, f.code(t))
	require.NoError(t, err)

	*f.clock = f.clock.AddDate(0, 0, 10)

	during, err := f.subscriptions.Progress(ctx, f.user.ID, sub.ID)
	require.NoError(t, err)
	require.Equal(t, 10, during.DaysElapsed)
	require.Equal(t, 20, during.DaysRemaining)
	require.InDelta(t, 33.3, during.PercentUsed, 0.5)

	*f.clock = f.clock.AddDate(0, 0, 60)

	after, err := f.subscriptions.Progress(ctx, f.user.ID, sub.ID)
	require.NoError(t, err)
	require.Equal(t, 30, after.DaysElapsed)
	require.Equal(t, 0, after.DaysRemaining)
	require.InDelta(t, 100, after.PercentUsed, 0.01)
}

func TestSweepExpiredFlipsPastDueSubscriptions(t *testing.T) {
	f := newPortalFixture(t)
	ctx := context.Background()

	sub, err := f.subscriptions.Purchase(ctx, f.user.ID, f.enrolment.Device.ID, "monthly")
	require.NoError(t, err)

	_, err = f.subscriptions.Activate(ctx, f.user.ID, sub.ID, f.code(t))
	require.NoError(t, err)

	swept, err := f.subscriptions.SweepExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, swept)

	*f.clock = f.clock.AddDate(0, 0, 31)

	swept, err = f.subscriptions.SweepExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, swept)

	reloaded, err := f.subscriptions.GetForUser(ctx, f.user.ID, sub.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubscriptionExpired, reloaded.Status)
}

func TestPlansOrderedByPrice(t *testing.T) {
	f := newPortalFixture(t)

	plans, err := f.subscriptions.Plans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 3)
	require.Equal(t, "monthly", plans[0].Code)
	require.Equal(t, "yearly", plans[2].Code)
}
