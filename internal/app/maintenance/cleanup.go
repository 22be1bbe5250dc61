package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/medlemine/ashport/internal/services"
	"github.com/medlemine/ashport/pkg/logger"
)

const (
	defaultAuditRetentionDays = 90
	defaultSubscriptionSpec   = "@hourly"
	defaultAuditSpec          = "@daily"
)

// Cleaner coordinates background maintenance tasks: expiring overdue
// subscriptions and pruning stale audit logs.
type Cleaner struct {
	subscriptions *services.SubscriptionService
	audit         *services.AuditService
	cron          *cron.Cron
	now           func() time.Time
	log           *zap.Logger
	enabled       bool
	retention     int

	subscriptionSchedule string
	auditSchedule        string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithSubscriptionSchedule overrides the cron specification for the subscription sweep.
func WithSubscriptionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.subscriptionSchedule = spec
		}
	}
}

// WithAuditSchedule overrides the cron specification for audit retention enforcement.
func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency results in
// the corresponding cleanup job being skipped.
func NewCleaner(subscriptions *services.SubscriptionService, audit *services.AuditService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		subscriptions:        subscriptions,
		audit:                audit,
		now:                  time.Now,
		retention:            defaultAuditRetentionDays,
		subscriptionSchedule: defaultSubscriptionSpec,
		auditSchedule:        defaultAuditSpec,
		log:                  logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.subscriptions != nil || cleaner.audit != nil

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one cleanup is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.subscriptions != nil {
		if _, err := c.cron.AddFunc(c.subscriptionSchedule, func() {
			ctx := context.Background()
			expired, err := c.subscriptions.SweepExpired(ctx)
			if err != nil {
				c.log.Warn("subscription sweep failed", zap.Error(err))
				return
			}
			if expired > 0 {
				c.log.Info("subscriptions expired", zap.Int64("count", expired))
			}
		}); err != nil {
			return err
		}
	}

	if c.audit != nil && c.retention > 0 {
		if _, err := c.cron.AddFunc(c.auditSchedule, func() {
			ctx := context.Background()
			if _, err := c.audit.CleanupOlderThan(ctx, c.auditCutoff()); err != nil {
				c.log.Warn("audit cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Primarily used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.subscriptions != nil {
		if _, err := c.subscriptions.SweepExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.audit != nil && c.retention > 0 {
		if _, err := c.audit.CleanupOlderThan(ctx, c.auditCutoff()); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func (c *Cleaner) auditCutoff() time.Time {
	return c.now().AddDate(0, 0, -c.retention)
}
