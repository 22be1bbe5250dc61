package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/medlemine/ashport/internal/api"
	"github.com/medlemine/ashport/internal/app"
	"github.com/medlemine/ashport/internal/app/maintenance"
	iauth "github.com/medlemine/ashport/internal/auth"
	"github.com/medlemine/ashport/internal/auth/totp"
	"github.com/medlemine/ashport/internal/database"
	"github.com/medlemine/ashport/internal/realtime"
	"github.com/medlemine/ashport/internal/sealing"
	"github.com/medlemine/ashport/internal/services"
	"github.com/medlemine/ashport/internal/storage"
	"github.com/medlemine/ashport/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB      *gorm.DB
	Images  storage.ImageStore
	Cleaner *maintenance.Cleaner
	Router  *gin.Engine
}

// bootstrapRuntime initialises the database, image store, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	masterKey, err := app.DecodeKey(cfg.Sealing.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("decode sealing encryption key: %w", err)
	}

	sealer, err := sealing.New(masterKey)
	if err != nil {
		return nil, fmt.Errorf("initialise sealer: %w", err)
	}

	stack.Images, err = initialiseImageStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	totpSvc, err := totp.NewService(stack.DB, masterKey)
	if err != nil {
		return nil, fmt.Errorf("initialise totp service: %w", err)
	}

	auditSvc, err := services.NewAuditService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise audit service: %w", err)
	}

	adminSvc, err := services.NewAdminService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise admin service: %w", err)
	}

	portalSvc, err := services.NewPortalService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise portal service: %w", err)
	}

	verificationSvc, err := services.NewVerificationService(stack.DB, stack.Images, sealer, auditSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise verification service: %w", err)
	}

	deviceSvc, err := services.NewDeviceService(stack.DB, totpSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise device service: %w", err)
	}

	subscriptionSvc, err := services.NewSubscriptionService(stack.DB, totpSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise subscription service: %w", err)
	}

	stack.Cleaner = maintenance.NewCleaner(subscriptionSvc, auditSvc,
		maintenance.WithSubscriptionSchedule(cfg.Maintenance.SubscriptionSweep),
		maintenance.WithAuditSchedule(cfg.Maintenance.AuditSweep),
		maintenance.WithAuditRetentionDays(cfg.Maintenance.AuditRetentionDays),
	)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		JWT:            jwtSvc,
		Admins:         adminSvc,
		Portal:         portalSvc,
		Verifications:  verificationSvc,
		Devices:        deviceSvc,
		Subscriptions:  subscriptionSvc,
		Relay:          realtime.NewRelay(),
		MetricsEnabled: cfg.Monitoring.Prometheus.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			ctx = stopCtx
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseOpenConfig()

	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

// initialiseImageStore connects to the configured MinIO endpoint, or falls back
// to the in-memory store when no endpoint is set. Memory-held images do not
// survive a restart, so the fallback is only suitable for local development.
func initialiseImageStore(ctx context.Context, cfg *app.Config, log *zap.Logger) (storage.ImageStore, error) {
	if strings.TrimSpace(cfg.Storage.Endpoint) == "" {
		log.Warn("no image host configured; storing license photos in memory")
		return storage.NewMemoryImageStore(), nil
	}

	store, err := storage.NewMinioImageStore(ctx, cfg.Storage.ImageStoreConfig())
	if err != nil {
		return nil, fmt.Errorf("connect image store: %w", err)
	}

	log.Info("image store connected",
		zap.String("endpoint", cfg.Storage.Endpoint),
		zap.String("bucket", cfg.Storage.Bucket))
	return store, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}

func ensureSecretsPresent(cfg *app.Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Auth.JWT.Secret = strings.TrimSpace(cfg.Auth.JWT.Secret)
	if cfg.Auth.JWT.Secret == "" {
		return errors.New("auth.jwt.secret must be configured")
	}

	cfg.Sealing.EncryptionKey = strings.TrimSpace(cfg.Sealing.EncryptionKey)
	keyLen, err := app.KeyByteLength(cfg.Sealing.EncryptionKey)
	if err != nil {
		return fmt.Errorf("sealing.encryption_key: %w", err)
	}
	if keyLen != 16 && keyLen != 24 && keyLen != 32 {
		return fmt.Errorf("sealing.encryption_key must decode to 16, 24, or 32 bytes (current: %d)", keyLen)
	}

	return nil
}
