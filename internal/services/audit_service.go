package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/medlemine/ashport/internal/models"
)

// AuditEntry captures a single audit event to persist.
type AuditEntry struct {
	AdminID   *string
	Action    string
	Resource  string
	Result    string
	IPAddress string
	Metadata  map[string]any
}

// AuditFilters encapsulates optional filters when querying audit logs.
type AuditFilters struct {
	AdminID string
	Action  string
	Result  string
	Since   *time.Time
	Until   *time.Time
}

// AuditService persists and retrieves audit log entries.
type AuditService struct {
	db *gorm.DB
}

// NewAuditService constructs an AuditService using the provided database handle.
func NewAuditService(db *gorm.DB) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	return &AuditService{db: db}, nil
}

// Log stores an audit entry, marshalling metadata into JSON form.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(entry.Action) == "" {
		return errors.New("audit service: action is required")
	}
	if strings.TrimSpace(entry.Result) == "" {
		return errors.New("audit service: result is required")
	}

	payload := ""
	if entry.Metadata != nil {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("audit service: marshal metadata: %w", err)
		}
		payload = string(encoded)
	}

	record := models.AuditLog{
		Action:    strings.TrimSpace(entry.Action),
		Resource:  strings.TrimSpace(entry.Resource),
		Result:    strings.TrimSpace(entry.Result),
		IPAddress: strings.TrimSpace(entry.IPAddress),
		Metadata:  payload,
	}

	if entry.AdminID != nil && strings.TrimSpace(*entry.AdminID) != "" {
		id := strings.TrimSpace(*entry.AdminID)
		record.AdminID = &id
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("audit service: create entry: %w", err)
	}
	return nil
}

// List returns audit entries matching the filters, newest first.
func (s *AuditService) List(ctx context.Context, filters AuditFilters, limit int) ([]models.AuditLog, error) {
	ctx = ensureContext(ctx)

	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := s.db.WithContext(ctx).Model(&models.AuditLog{}).Order("created_at DESC").Limit(limit)
	if filters.AdminID != "" {
		query = query.Where("admin_id = ?", filters.AdminID)
	}
	if filters.Action != "" {
		query = query.Where("action = ?", filters.Action)
	}
	if filters.Result != "" {
		query = query.Where("result = ?", filters.Result)
	}
	if filters.Since != nil {
		query = query.Where("created_at >= ?", *filters.Since)
	}
	if filters.Until != nil {
		query = query.Where("created_at <= ?", *filters.Until)
	}

	var entries []models.AuditLog
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("audit service: list entries: %w", err)
	}
	return entries, nil
}

// CleanupOlderThan removes audit entries past the retention window.
func (s *AuditService) CleanupOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("audit service: cleanup: %w", result.Error)
	}
	return result.RowsAffected, nil
}
