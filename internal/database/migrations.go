package database

import (
	"gorm.io/gorm"

	"github.com/medlemine/ashport/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Admin{},
		&models.VerificationRecord{},
		&models.AuditLog{},
		&models.PortalUser{},
		&models.Device{},
		&models.DeviceTOTPSecret{},
		&models.Plan{},
		&models.Subscription{},
	)
}

// SeedData populates the default subscription plan catalogue.
func SeedData(db *gorm.DB) error {
	plans := []models.Plan{
		{
			BaseModel:    models.BaseModel{ID: "plan-monthly"},
			Code:         "monthly",
			Name:         "Monthly",
			PriceCents:   1500,
			DurationDays: 30,
		},
		{
			BaseModel:    models.BaseModel{ID: "plan-quarterly"},
			Code:         "quarterly",
			Name:         "Quarterly",
			PriceCents:   4000,
			DurationDays: 90,
		},
		{
			BaseModel:    models.BaseModel{ID: "plan-yearly"},
			Code:         "yearly",
			Name:         "Yearly",
			PriceCents:   14000,
			DurationDays: 365,
		},
	}

	for _, plan := range plans {
		if err := db.Where(models.Plan{Code: plan.Code}).Attrs(plan).FirstOrCreate(&models.Plan{}).Error; err != nil {
			return err
		}
	}

	return nil
}
