package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/medlemine/ashport/internal/auth/totp"
	testutil "github.com/medlemine/ashport/internal/database/testutil"
	"github.com/medlemine/ashport/internal/models"
	"github.com/medlemine/ashport/internal/services"
)

func newCleanerFixture(t *testing.T) (*gorm.DB, *services.SubscriptionService, *services.AuditService) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate(), testutil.WithSeedData())

	totpSvc, err := totp.NewService(db, []byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	subscriptionSvc, err := services.NewSubscriptionService(db, totpSvc)
	require.NoError(t, err)

	auditSvc, err := services.NewAuditService(db)
	require.NoError(t, err)

	return db, subscriptionSvc, auditSvc
}

func seedSubscription(t *testing.T, db *gorm.DB, status string, endsAt time.Time) models.Subscription {
	t.Helper()

	owner := models.PortalUser{Email: "owner-" + status + "@example.com", Password: "hash", FullName: "Owner"}
	require.NoError(t, db.Create(&owner).Error)

	device := models.Device{OwnerID: owner.ID, Name: "Reader", Serial: "SN-" + status}
	require.NoError(t, db.Create(&device).Error)

	var plan models.Plan
	require.NoError(t, db.Where("code = ?", "monthly").First(&plan).Error)

	starts := endsAt.AddDate(0, 0, -plan.DurationDays)
	sub := models.Subscription{
		UserID:   owner.ID,
		DeviceID: device.ID,
		PlanID:   plan.ID,
		Status:   status,
		StartsAt: &starts,
		EndsAt:   &endsAt,
	}
	require.NoError(t, db.Create(&sub).Error)
	return sub
}

func TestCleanerRunOnce(t *testing.T) {
	db, subscriptionSvc, auditSvc := newCleanerFixture(t)

	overdue := seedSubscription(t, db, models.SubscriptionActive, time.Now().Add(-time.Hour))
	current := seedSubscription(t, db, models.SubscriptionInactive, time.Now().AddDate(0, 0, 30))

	require.NoError(t, auditSvc.Log(context.Background(), services.AuditEntry{
		Action: "verification.approve",
		Result: "success",
	}))
	require.NoError(t, auditSvc.Log(context.Background(), services.AuditEntry{
		Action: "verification.decline",
		Result: "success",
	}))
	// Age one entry past the retention window.
	require.NoError(t, db.Model(&models.AuditLog{}).
		Where("action = ?", "verification.approve").
		Update("created_at", time.Now().AddDate(0, 0, -120)).Error)

	cleaner := NewCleaner(subscriptionSvc, auditSvc, WithAuditRetentionDays(90))
	require.NoError(t, cleaner.RunOnce(context.Background()))

	var swept models.Subscription
	require.NoError(t, db.First(&swept, "id = ?", overdue.ID).Error)
	require.Equal(t, models.SubscriptionExpired, swept.Status)

	var untouched models.Subscription
	require.NoError(t, db.First(&untouched, "id = ?", current.ID).Error)
	require.Equal(t, models.SubscriptionInactive, untouched.Status)

	var remaining []models.AuditLog
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, "verification.decline", remaining[0].Action)
}

func TestCleanerStartAndStop(t *testing.T) {
	_, subscriptionSvc, auditSvc := newCleanerFixture(t)

	cleaner := NewCleaner(subscriptionSvc, auditSvc,
		WithSubscriptionSchedule("@every 1h"),
		WithAuditSchedule("@daily"),
	)
	require.NoError(t, cleaner.Start())

	stopCtx := cleaner.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}

func TestCleanerRejectsBadSchedule(t *testing.T) {
	_, subscriptionSvc, auditSvc := newCleanerFixture(t)

	cleaner := NewCleaner(subscriptionSvc, auditSvc, WithSubscriptionSchedule("not-a-schedule"))
	require.Error(t, cleaner.Start())
}

func TestCleanerDisabledWithoutServices(t *testing.T) {
	cleaner := NewCleaner(nil, nil)
	require.NoError(t, cleaner.Start())
	require.NoError(t, cleaner.RunOnce(context.Background()))
}
