package handlers

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medlemine/ashport/internal/models"
	"github.com/medlemine/ashport/internal/services"
	"github.com/medlemine/ashport/pkg/errors"
	"github.com/medlemine/ashport/pkg/response"
)

// VerificationHandler serves the public submission surface and the admin
// review dashboard.
type VerificationHandler struct {
	verifications *services.VerificationService
}

func NewVerificationHandler(verifications *services.VerificationService) *VerificationHandler {
	return &VerificationHandler{verifications: verifications}
}

type submitVerificationRequest struct {
	FullName    string   `json:"full_name" validate:"required,max=120"`
	Address     string   `json:"address" validate:"required,max=500"`
	PhoneNumber string   `json:"phone_number" validate:"required,e164"`
	Images      []string `json:"images" validate:"required,len=2"`
}

// POST /api/verifications
func (h *VerificationHandler) Submit(c *gin.Context) {
	var req submitVerificationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	images := make([][]byte, 0, len(req.Images))
	for _, encoded := range req.Images {
		// Tolerate data-URI prefixes from browser file pickers.
		if idx := strings.Index(encoded, ","); idx != -1 && strings.HasPrefix(encoded, "data:") {
			encoded = encoded[idx+1:]
		}
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			response.Error(c, errors.NewBadRequest("images must be base64 encoded"))
			return
		}
		if len(decoded) == 0 {
			response.Error(c, errors.NewBadRequest("images must not be empty"))
			return
		}
		images = append(images, decoded)
	}

	record, err := h.verifications.Submit(requestContext(c), services.SubmitVerificationInput{
		FullName:    req.FullName,
		Address:     req.Address,
		PhoneNumber: req.PhoneNumber,
		Images:      images,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusCreated, gin.H{
		"id":           record.ID,
		"phone_number": record.PhoneNumber,
		"status":       record.Status,
	}, "Submission received and pending review")
}

type statusCheckRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,e164"`
}

// POST /api/verifications/status-check
func (h *VerificationHandler) CheckStatus(c *gin.Context) {
	var req statusCheckRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.verifications.CheckStatus(requestContext(c), req.PhoneNumber)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GET /api/verifications?status=&page=&page_size=
func (h *VerificationHandler) List(c *gin.Context) {
	status := strings.TrimSpace(c.Query("status"))
	switch status {
	case "", models.VerificationPending, models.VerificationEncrypted, models.VerificationUnencrypted:
	default:
		response.Error(c, errors.NewBadRequest("unknown status filter"))
		return
	}

	page := parseIntQuery(c, "page", 1)
	pageSize := parseIntQuery(c, "page_size", 20)

	records, total, err := h.verifications.ListForReview(requestContext(c), services.ListReviewOptions{
		Status:   status,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize != 0 {
		totalPages++
	}

	response.SuccessWithMeta(c, http.StatusOK, records, &response.Meta{
		Page:       page,
		PerPage:    pageSize,
		Total:      int(total),
		TotalPages: totalPages,
	})
}

// GET /api/verifications/:id
func (h *VerificationHandler) Get(c *gin.Context) {
	record, err := h.verifications.GetForReview(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, record)
}

// GET /api/verifications/phone/:phone
func (h *VerificationHandler) Entries(c *gin.Context) {
	phone := strings.TrimSpace(c.Param("phone"))
	if phone == "" {
		response.Error(c, errors.NewBadRequest("phone number is required"))
		return
	}

	entries, err := h.verifications.EntriesByPhoneNumber(requestContext(c), phone)
	if err != nil {
		response.Error(c, err)
		return
	}

	stats, err := h.verifications.StatusCheckStats(requestContext(c), phone)
	if err != nil {
		response.Error(c, err)
		return
	}

	views := make([]gin.H, len(entries))
	for i := range entries {
		views[i] = gin.H{
			"id":           entries[i].ID,
			"phone_number": entries[i].PhoneNumber,
			"status":       entries[i].Status,
			"created_at":   entries[i].CreatedAt,
		}
	}

	response.Success(c, http.StatusOK, gin.H{
		"entries": views,
		"stats":   stats,
	})
}

// POST /api/verifications/:id/approve
func (h *VerificationHandler) Approve(c *gin.Context) {
	admin, ok := currentAdmin(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	record, err := h.verifications.Approve(requestContext(c), c.Param("id"), admin.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, record, "Verification approved and encrypted")
}

type declineRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// POST /api/verifications/:id/decline
func (h *VerificationHandler) Decline(c *gin.Context) {
	admin, ok := currentAdmin(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req declineRequest
	if !bindAndValidate(c, &req) {
		return
	}

	record, err := h.verifications.Decline(requestContext(c), c.Param("id"), admin.ID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, record, "Verification declined")
}

// GET /api/verifications/:id/decrypted
func (h *VerificationHandler) Decrypted(c *gin.Context) {
	payload, err := h.verifications.Decrypted(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, payload)
}

// DELETE /api/verifications/:id
func (h *VerificationHandler) Delete(c *gin.Context) {
	admin, ok := currentAdmin(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.verifications.Delete(requestContext(c), c.Param("id"), admin.ID); err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, nil, "Verification deleted")
}
