package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/medlemine/ashport/internal/models"
	"github.com/medlemine/ashport/internal/sealing"
	"github.com/medlemine/ashport/internal/storage"
	apperrors "github.com/medlemine/ashport/pkg/errors"
	"github.com/medlemine/ashport/pkg/logger"
	"github.com/medlemine/ashport/pkg/metrics"
)

var (
	// ErrVerificationNotFound indicates the requested record does not exist.
	ErrVerificationNotFound = apperrors.New("VERIFICATION_NOT_FOUND", "Verification record not found", http.StatusNotFound)
	// ErrAlreadyProcessed guards the terminal state machine: an admin decision is recorded exactly once.
	ErrAlreadyProcessed = apperrors.New("VERIFICATION_ALREADY_PROCESSED", "Verification already processed", http.StatusConflict)
	// ErrNotSealed is returned when a reveal is attempted on a record that was never approved.
	ErrNotSealed = apperrors.New("VERIFICATION_NOT_SEALED", "Verification record is not encrypted", http.StatusBadRequest)
	// ErrPhoneVariationsExhausted is fatal: the 5-digit suffix space for one number is used up.
	ErrPhoneVariationsExhausted = apperrors.New("PHONE_VARIATIONS_EXHAUSTED", "Maximum phone number variations reached", http.StatusInternalServerError)
	// ErrPhoneTaken surfaces the duplicate-key insert from two racing first submissions.
	ErrPhoneTaken = apperrors.New("PHONE_NUMBER_TAKEN", "A submission for this phone number already exists", http.StatusConflict)
)

const imageFolder = "verifications"

// SubmitVerificationInput carries a fresh identity submission. Exactly two
// license photos are required.
type SubmitVerificationInput struct {
	FullName    string
	Address     string
	PhoneNumber string
	Images      [][]byte
}

// StatusCheckResult is returned to a submitter asking "what is my status".
type StatusCheckResult struct {
	Status        string     `json:"status"`
	DeclineReason string     `json:"decline_reason,omitempty"`
	TotalChecks   int        `json:"total_checks"`
	LastCheckDate *time.Time `json:"last_check_date,omitempty"`
}

// StatusCheckStats summarises every submission made under one phone number.
type StatusCheckStats struct {
	TotalChecks        int        `json:"total_checks"`
	OriginalUserStatus string     `json:"original_user_status"`
	LastCheckDate      *time.Time `json:"last_check_date,omitempty"`
}

// ReviewRecord is the admin-facing projection of a verification record. It
// deliberately has no field for the sealed payload, so ciphertext can never
// leak through list or detail views.
type ReviewRecord struct {
	ID            string     `json:"id"`
	PhoneNumber   string     `json:"phone_number"`
	FullName      string     `json:"full_name"`
	Address       string     `json:"address"`
	ImageURLs     []string   `json:"image_urls"`
	Status        string     `json:"status"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	ApprovedByID  *string    `json:"approved_by,omitempty"`
	DeclineReason string     `json:"decline_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ListReviewOptions controls pagination and filtering of the review queue.
type ListReviewOptions struct {
	Status   string
	Page     int
	PageSize int
}

// VerificationService implements submission, phone-number disambiguation, the
// review state machine, and the sealed-data reveal.
type VerificationService struct {
	db     *gorm.DB
	images storage.ImageStore
	sealer *sealing.Sealer
	audit  *AuditService
	log    *zap.Logger
	now    func() time.Time
}

// NewVerificationService constructs the service.
func NewVerificationService(db *gorm.DB, images storage.ImageStore, sealer *sealing.Sealer, audit *AuditService) (*VerificationService, error) {
	if db == nil {
		return nil, errors.New("verification service: db is required")
	}
	if images == nil {
		return nil, errors.New("verification service: image store is required")
	}
	if sealer == nil {
		return nil, errors.New("verification service: sealer is required")
	}

	return &VerificationService{
		db:     db,
		images: images,
		sealer: sealer,
		audit:  audit,
		log:    logger.WithModule("verification"),
		now:    time.Now,
	}, nil
}

// GenerateUniquePhoneNumber returns the phone number to store for a new
// submission. The first-ever submission keeps the clean number; later ones
// get a zero-padded 5-digit suffix. The count-then-insert window is not
// transactional: two racing first submissions can both see count zero, and
// the loser surfaces a duplicate-key conflict instead of being retried.
func (s *VerificationService) GenerateUniquePhoneNumber(ctx context.Context, original string) (string, error) {
	ctx = ensureContext(ctx)

	original = strings.TrimSpace(original)
	if original == "" {
		return "", apperrors.NewBadRequest("phone number is required")
	}

	count, err := s.countByPrefix(ctx, original)
	if err != nil {
		return "", err
	}
	if count == 0 {
		return original, nil
	}

	// The clean number counts as the zeroth entry, so the first slugged
	// variant gets suffix 00000.
	for suffix := int(count) - 1; suffix <= maxSlugSuffix; suffix++ {
		candidate := original + slugSuffix(suffix)

		taken, err := s.phoneExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", ErrPhoneVariationsExhausted
}

// Submit uploads both license photos and creates a pending record.
func (s *VerificationService) Submit(ctx context.Context, input SubmitVerificationInput) (*models.VerificationRecord, error) {
	ctx = ensureContext(ctx)

	input.FullName = strings.TrimSpace(input.FullName)
	input.Address = strings.TrimSpace(input.Address)
	input.PhoneNumber = strings.TrimSpace(input.PhoneNumber)

	if input.FullName == "" {
		return nil, apperrors.NewBadRequest("full name is required")
	}
	if input.Address == "" {
		return nil, apperrors.NewBadRequest("address is required")
	}
	if input.PhoneNumber == "" {
		return nil, apperrors.NewBadRequest("phone number is required")
	}
	if len(input.Images) != models.ImageCount {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("exactly %d images are required", models.ImageCount))
	}

	phoneNumber, err := s.GenerateUniquePhoneNumber(ctx, input.PhoneNumber)
	if err != nil {
		return nil, err
	}

	// Uploads are sequential per file; a slow host lengthens the request.
	urls := make([]string, 0, models.ImageCount)
	publicIDs := make([]string, 0, models.ImageCount)
	for i, image := range input.Images {
		result, err := s.images.Upload(ctx, image, imageFolder, fmt.Sprintf("%s-%d", uuid.NewString(), i))
		if err != nil {
			metrics.ImageUploads.WithLabelValues("failure").Inc()
			s.cleanupImages(publicIDs)
			if errors.Is(err, storage.ErrImageTooLarge) {
				return nil, apperrors.ErrUpstreamStorage.WithMessage("image exceeds maximum allowed size")
			}
			return nil, apperrors.ErrUpstreamStorage.WithInternal(err)
		}
		metrics.ImageUploads.WithLabelValues("success").Inc()
		urls = append(urls, result.URL)
		publicIDs = append(publicIDs, result.PublicID)
	}

	record := &models.VerificationRecord{
		PhoneNumber:    phoneNumber,
		FullName:       input.FullName,
		Address:        input.Address,
		ImageURLs:      urls,
		ImagePublicIDs: publicIDs,
		Status:         models.VerificationPending,
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		s.cleanupImages(publicIDs)
		if isUniqueConstraintError(err) {
			return nil, ErrPhoneTaken
		}
		return nil, fmt.Errorf("verification service: create record: %w", err)
	}

	return record, nil
}

// CheckStatus answers "what is my status" for the canonical number and
// records the check itself as a new slugged submission, preserving the full
// resubmission trail.
func (s *VerificationService) CheckStatus(ctx context.Context, original string) (*StatusCheckResult, error) {
	ctx = ensureContext(ctx)

	original = strings.TrimSpace(original)
	if original == "" {
		return nil, apperrors.NewBadRequest("phone number is required")
	}

	canonical, err := s.byPhoneNumber(ctx, original)
	if err != nil {
		return nil, err
	}

	slugged, err := s.GenerateUniquePhoneNumber(ctx, original)
	if err != nil {
		return nil, err
	}

	copyRecord := &models.VerificationRecord{
		PhoneNumber:    slugged,
		FullName:       canonical.FullName,
		Address:        canonical.Address,
		ImageURLs:      canonical.ImageURLs,
		ImagePublicIDs: canonical.ImagePublicIDs,
		Status:         models.VerificationPending,
	}

	if err := s.db.WithContext(ctx).Create(copyRecord).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrPhoneTaken
		}
		return nil, fmt.Errorf("verification service: record status check: %w", err)
	}

	metrics.StatusChecks.Inc()

	stats, err := s.StatusCheckStats(ctx, original)
	if err != nil {
		return nil, err
	}

	return &StatusCheckResult{
		Status:        canonical.Status,
		DeclineReason: canonical.DeclineReason,
		TotalChecks:   stats.TotalChecks,
		LastCheckDate: stats.LastCheckDate,
	}, nil
}

// EntriesByPhoneNumber returns the canonical record plus every slugged
// variant, newest first.
func (s *VerificationService) EntriesByPhoneNumber(ctx context.Context, original string) ([]models.VerificationRecord, error) {
	ctx = ensureContext(ctx)

	original = strings.TrimSpace(original)
	if original == "" {
		return nil, apperrors.NewBadRequest("phone number is required")
	}

	var records []models.VerificationRecord
	err := s.db.WithContext(ctx).
		Where("phone_number LIKE ?", likePrefix(original)).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("verification service: list entries: %w", err)
	}
	return records, nil
}

// StatusCheckStats derives per-number statistics by scanning the entries
// list in-process.
func (s *VerificationService) StatusCheckStats(ctx context.Context, original string) (*StatusCheckStats, error) {
	entries, err := s.EntriesByPhoneNumber(ctx, original)
	if err != nil {
		return nil, err
	}

	stats := &StatusCheckStats{TotalChecks: len(entries)}
	for _, entry := range entries {
		if stats.LastCheckDate == nil || entry.CreatedAt.After(*stats.LastCheckDate) {
			created := entry.CreatedAt
			stats.LastCheckDate = &created
		}
		if entry.PhoneNumber == original {
			stats.OriginalUserStatus = entry.Status
		}
	}
	return stats, nil
}

// ListForReview returns the admin review queue without sealed payloads.
func (s *VerificationService) ListForReview(ctx context.Context, opts ListReviewOptions) ([]ReviewRecord, int64, error) {
	ctx = ensureContext(ctx)

	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 || opts.PageSize > 100 {
		opts.PageSize = 20
	}

	query := s.db.WithContext(ctx).Model(&models.VerificationRecord{})
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("verification service: count records: %w", err)
	}

	var records []models.VerificationRecord
	err := query.
		Order("created_at DESC").
		Offset((opts.Page - 1) * opts.PageSize).
		Limit(opts.PageSize).
		Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("verification service: list records: %w", err)
	}

	reviews := make([]ReviewRecord, len(records))
	for i := range records {
		reviews[i] = toReviewRecord(&records[i])
	}
	return reviews, total, nil
}

// GetForReview returns a single record projection for the review dashboard.
func (s *VerificationService) GetForReview(ctx context.Context, id string) (*ReviewRecord, error) {
	record, err := s.byID(ensureContext(ctx), id)
	if err != nil {
		return nil, err
	}
	review := toReviewRecord(record)
	return &review, nil
}

// Approve seals the identity payload and moves the record to encrypted.
// The decision is terminal: a second approve or decline conflicts.
func (s *VerificationService) Approve(ctx context.Context, id, adminID string) (*ReviewRecord, error) {
	ctx = ensureContext(ctx)

	record, err := s.byID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Processed() {
		return nil, ErrAlreadyProcessed
	}

	sealed, err := s.sealer.SealIdentity(sealing.IdentityPayload{
		FullName:    record.FullName,
		Address:     record.Address,
		PhoneNumber: record.PhoneNumber,
	})
	if err != nil {
		return nil, fmt.Errorf("verification service: seal payload: %w", err)
	}

	now := s.now()
	record.Status = models.VerificationEncrypted
	record.SealedData = &sealed
	record.ApprovedAt = &now
	record.ApprovedByID = &adminID

	if err := s.db.WithContext(ctx).Save(record).Error; err != nil {
		return nil, fmt.Errorf("verification service: save approval: %w", err)
	}

	metrics.VerificationDecisions.WithLabelValues("approved").Inc()
	s.auditDecision(ctx, adminID, "verification.approve", record.ID)

	review := toReviewRecord(record)
	return &review, nil
}

// Decline moves the record to unencrypted with a reason and best-effort
// deletes the two hosted images. The status change matters more than the
// cleanup: a failed delete is logged and swallowed.
func (s *VerificationService) Decline(ctx context.Context, id, adminID, reason string) (*ReviewRecord, error) {
	ctx = ensureContext(ctx)

	record, err := s.byID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Processed() {
		return nil, ErrAlreadyProcessed
	}

	record.Status = models.VerificationUnencrypted
	record.DeclineReason = strings.TrimSpace(reason)

	if err := s.db.WithContext(ctx).Save(record).Error; err != nil {
		return nil, fmt.Errorf("verification service: save decline: %w", err)
	}

	metrics.VerificationDecisions.WithLabelValues("declined").Inc()
	s.auditDecision(ctx, adminID, "verification.decline", record.ID)
	s.cleanupImages(record.ImagePublicIDs)

	review := toReviewRecord(record)
	return &review, nil
}

// Decrypted reveals the sealed identity payload of an approved record.
func (s *VerificationService) Decrypted(ctx context.Context, id string) (*sealing.IdentityPayload, error) {
	ctx = ensureContext(ctx)

	record, err := s.byID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status != models.VerificationEncrypted || record.SealedData == nil {
		return nil, ErrNotSealed
	}

	payload, err := s.sealer.OpenIdentity(*record.SealedData)
	if err != nil {
		return nil, fmt.Errorf("verification service: open sealed data: %w", err)
	}
	return &payload, nil
}

// Delete removes a record and best-effort purges its hosted images.
func (s *VerificationService) Delete(ctx context.Context, id, adminID string) error {
	ctx = ensureContext(ctx)

	record, err := s.byID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(record).Error; err != nil {
		return fmt.Errorf("verification service: delete record: %w", err)
	}

	s.auditDecision(ctx, adminID, "verification.delete", record.ID)
	s.cleanupImages(record.ImagePublicIDs)
	return nil
}

func (s *VerificationService) countByPrefix(ctx context.Context, original string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.VerificationRecord{}).
		Where("phone_number LIKE ?", likePrefix(original)).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("verification service: count prefix matches: %w", err)
	}
	return count, nil
}

func (s *VerificationService) phoneExists(ctx context.Context, phoneNumber string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.VerificationRecord{}).
		Where("phone_number = ?", phoneNumber).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("verification service: check phone: %w", err)
	}
	return count > 0, nil
}

func (s *VerificationService) byPhoneNumber(ctx context.Context, phoneNumber string) (*models.VerificationRecord, error) {
	var record models.VerificationRecord
	err := s.db.WithContext(ctx).Where("phone_number = ?", phoneNumber).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVerificationNotFound
		}
		return nil, fmt.Errorf("verification service: load by phone: %w", err)
	}
	return &record, nil
}

func (s *VerificationService) byID(ctx context.Context, id string) (*models.VerificationRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.NewBadRequest("record id is required")
	}

	var record models.VerificationRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVerificationNotFound
		}
		return nil, fmt.Errorf("verification service: load by id: %w", err)
	}
	return &record, nil
}

// cleanupImages deletes hosted images without failing the caller.
func (s *VerificationService) cleanupImages(publicIDs []string) {
	for _, publicID := range publicIDs {
		if publicID == "" {
			continue
		}
		if err := s.images.Destroy(context.Background(), publicID); err != nil {
			s.log.Warn("image cleanup failed",
				zap.String("public_id", publicID),
				zap.Error(err),
			)
		}
	}
}

func (s *VerificationService) auditDecision(ctx context.Context, adminID, action, recordID string) {
	if s.audit == nil {
		return
	}
	entry := AuditEntry{
		Action:   action,
		Resource: recordID,
		Result:   "success",
	}
	if adminID != "" {
		entry.AdminID = &adminID
	}
	if err := s.audit.Log(ctx, entry); err != nil {
		s.log.Warn("audit write failed", zap.Error(err))
	}
}

func toReviewRecord(record *models.VerificationRecord) ReviewRecord {
	return ReviewRecord{
		ID:            record.ID,
		PhoneNumber:   record.PhoneNumber,
		FullName:      record.FullName,
		Address:       record.Address,
		ImageURLs:     record.ImageURLs,
		Status:        record.Status,
		ApprovedAt:    record.ApprovedAt,
		ApprovedByID:  record.ApprovedByID,
		DeclineReason: record.DeclineReason,
		CreatedAt:     record.CreatedAt,
	}
}

// likePrefix builds the prefix pattern for slug queries. Phone numbers carry
// only digits and a leading plus, so no LIKE metacharacter escaping is needed.
func likePrefix(original string) string {
	return original + "%"
}
