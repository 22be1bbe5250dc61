package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/medlemine/ashport/internal/auth/totp"
	"github.com/medlemine/ashport/internal/models"
	apperrors "github.com/medlemine/ashport/pkg/errors"
	"github.com/medlemine/ashport/pkg/logger"
	"github.com/medlemine/ashport/pkg/metrics"
)

var (
	// ErrPlanNotFound indicates an unknown plan code or id.
	ErrPlanNotFound = apperrors.New("PLAN_NOT_FOUND", "Plan not found", http.StatusNotFound)
	// ErrSubscriptionNotFound indicates the subscription does not exist or
	// belongs to another user.
	ErrSubscriptionNotFound = apperrors.New("SUBSCRIPTION_NOT_FOUND", "Subscription not found", http.StatusNotFound)
	// ErrSubscriptionNotActivatable is returned when activation is attempted
	// on a subscription that already left the inactive state.
	ErrSubscriptionNotActivatable = apperrors.New("SUBSCRIPTION_NOT_ACTIVATABLE", "Subscription cannot be activated", http.StatusConflict)
	// ErrInvalidTOTPCode is returned when the device code does not verify.
	ErrInvalidTOTPCode = apperrors.New("INVALID_TOTP_CODE", "Invalid device code", http.StatusUnauthorized)
)

// SubscriptionProgress reports how far an active subscription has run.
type SubscriptionProgress struct {
	Status        string     `json:"status"`
	StartsAt      *time.Time `json:"starts_at,omitempty"`
	EndsAt        *time.Time `json:"ends_at,omitempty"`
	DaysTotal     int        `json:"days_total"`
	DaysElapsed   int        `json:"days_elapsed"`
	DaysRemaining int        `json:"days_remaining"`
	PercentUsed   float64    `json:"percent_used"`
}

// SubscriptionService manages purchases, TOTP-gated activation and expiry.
type SubscriptionService struct {
	db   *gorm.DB
	totp *totp.Service
	log  *zap.Logger
	now  func() time.Time
}

// NewSubscriptionService constructs a SubscriptionService instance.
func NewSubscriptionService(db *gorm.DB, totpService *totp.Service) (*SubscriptionService, error) {
	if db == nil {
		return nil, errors.New("subscription service: db is required")
	}
	if totpService == nil {
		return nil, errors.New("subscription service: totp service is required")
	}
	return &SubscriptionService{
		db:   db,
		totp: totpService,
		log:  logger.WithModule("subscriptions"),
		now:  time.Now,
	}, nil
}

// Plans returns every purchasable plan ordered by price.
func (s *SubscriptionService) Plans(ctx context.Context) ([]models.Plan, error) {
	ctx = ensureContext(ctx)

	var plans []models.Plan
	if err := s.db.WithContext(ctx).Order("price_cents ASC").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("subscription service: list plans: %w", err)
	}
	return plans, nil
}

// PlanByCode resolves a plan by its code.
func (s *SubscriptionService) PlanByCode(ctx context.Context, code string) (*models.Plan, error) {
	ctx = ensureContext(ctx)

	var plan models.Plan
	err := s.db.WithContext(ctx).Where("code = ?", strings.TrimSpace(code)).First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("subscription service: load plan: %w", err)
	}
	return &plan, nil
}

// Purchase creates an inactive subscription binding a device to a plan. The
// clock only starts at activation.
func (s *SubscriptionService) Purchase(ctx context.Context, userID, deviceID, planCode string) (*models.Subscription, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	deviceID = strings.TrimSpace(deviceID)
	if userID == "" || deviceID == "" {
		return nil, apperrors.NewBadRequest("user and device are required")
	}

	plan, err := s.PlanByCode(ctx, planCode)
	if err != nil {
		return nil, err
	}

	var device models.Device
	err = s.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", deviceID, userID).
		First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("subscription service: load device: %w", err)
	}

	sub := &models.Subscription{
		UserID:   userID,
		DeviceID: device.ID,
		PlanID:   plan.ID,
		Plan:     plan,
		Status:   models.SubscriptionInactive,
	}
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return nil, fmt.Errorf("subscription service: create subscription: %w", err)
	}

	return sub, nil
}

// Activate starts the subscription clock after verifying a TOTP code from the
// bound device. Activation is exactly-once; subsequent attempts conflict.
func (s *SubscriptionService) Activate(ctx context.Context, userID, subscriptionID, code string) (*models.Subscription, error) {
	ctx = ensureContext(ctx)

	sub, err := s.GetForUser(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}

	if sub.Status != models.SubscriptionInactive {
		metrics.SubscriptionActivations.WithLabelValues("conflict").Inc()
		return nil, ErrSubscriptionNotActivatable
	}

	valid, err := s.totp.VerifyCode(ctx, sub.DeviceID, code)
	if err != nil {
		return nil, fmt.Errorf("subscription service: verify code: %w", err)
	}
	if !valid {
		metrics.SubscriptionActivations.WithLabelValues("invalid_code").Inc()
		return nil, ErrInvalidTOTPCode
	}

	now := s.now()
	ends := now.AddDate(0, 0, sub.Plan.DurationDays)

	sub.Status = models.SubscriptionActive
	sub.StartsAt = &now
	sub.EndsAt = &ends
	sub.ActivatedAt = &now

	err = s.db.WithContext(ctx).Model(sub).Updates(map[string]any{
		"status":       models.SubscriptionActive,
		"starts_at":    &now,
		"ends_at":      &ends,
		"activated_at": &now,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("subscription service: activate: %w", err)
	}

	metrics.SubscriptionActivations.WithLabelValues("success").Inc()
	s.log.Info("subscription activated",
		zap.String("subscription_id", sub.ID),
		zap.String("device_id", sub.DeviceID),
		zap.Time("ends_at", ends))

	return sub, nil
}

// ListForUser returns the user's subscriptions with plans preloaded, newest
// first.
func (s *SubscriptionService) ListForUser(ctx context.Context, userID string) ([]models.Subscription, error) {
	ctx = ensureContext(ctx)

	var subs []models.Subscription
	err := s.db.WithContext(ctx).
		Preload("Plan").
		Where("user_id = ?", strings.TrimSpace(userID)).
		Order("created_at DESC").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("subscription service: list subscriptions: %w", err)
	}
	return subs, nil
}

// GetForUser loads a subscription scoped to its owner.
func (s *SubscriptionService) GetForUser(ctx context.Context, userID, subscriptionID string) (*models.Subscription, error) {
	ctx = ensureContext(ctx)

	var sub models.Subscription
	err := s.db.WithContext(ctx).
		Preload("Plan").
		Where("id = ? AND user_id = ?", strings.TrimSpace(subscriptionID), strings.TrimSpace(userID)).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("subscription service: load subscription: %w", err)
	}
	return &sub, nil
}

// Progress computes elapsed and remaining time for a subscription. Inactive
// subscriptions report zero progress; expired ones report full use.
func (s *SubscriptionService) Progress(ctx context.Context, userID, subscriptionID string) (*SubscriptionProgress, error) {
	sub, err := s.GetForUser(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}

	progress := &SubscriptionProgress{Status: sub.Status}
	if sub.Plan != nil {
		progress.DaysTotal = sub.Plan.DurationDays
	}

	if sub.StartsAt == nil || sub.EndsAt == nil {
		progress.DaysRemaining = progress.DaysTotal
		return progress, nil
	}

	progress.StartsAt = sub.StartsAt
	progress.EndsAt = sub.EndsAt

	now := s.now()
	if now.After(*sub.EndsAt) {
		now = *sub.EndsAt
	}

	elapsed := int(now.Sub(*sub.StartsAt).Hours() / 24)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > progress.DaysTotal {
		elapsed = progress.DaysTotal
	}

	progress.DaysElapsed = elapsed
	progress.DaysRemaining = progress.DaysTotal - elapsed
	if progress.DaysTotal > 0 {
		progress.PercentUsed = float64(elapsed) / float64(progress.DaysTotal) * 100
	}

	return progress, nil
}

// SweepExpired flips active subscriptions whose end date has passed to
// expired. It is invoked periodically by the maintenance scheduler and
// returns the number of rows updated.
func (s *SubscriptionService) SweepExpired(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("status = ? AND ends_at IS NOT NULL AND ends_at < ?", models.SubscriptionActive, s.now()).
		Update("status", models.SubscriptionExpired)
	if result.Error != nil {
		return 0, fmt.Errorf("subscription service: sweep expired: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.log.Info("expired subscriptions swept", zap.Int64("count", result.RowsAffected))
	}
	return result.RowsAffected, nil
}
