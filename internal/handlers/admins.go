package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medlemine/ashport/internal/services"
	"github.com/medlemine/ashport/pkg/response"
)

// AdminHandler manages operator accounts. Mutations require the super admin.
type AdminHandler struct {
	admins *services.AdminService
}

func NewAdminHandler(admins *services.AdminService) *AdminHandler {
	return &AdminHandler{admins: admins}
}

type createAdminRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"omitempty,max=120"`
	Role     string `json:"role" validate:"omitempty,oneof=admin super_admin"`
}

// POST /api/admins
func (h *AdminHandler) Create(c *gin.Context) {
	var req createAdminRequest
	if !bindAndValidate(c, &req) {
		return
	}

	admin, err := h.admins.Create(requestContext(c), services.CreateAdminInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     req.Role,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, adminView(admin))
}

// GET /api/admins
func (h *AdminHandler) List(c *gin.Context) {
	admins, err := h.admins.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	views := make([]gin.H, len(admins))
	for i := range admins {
		views[i] = adminView(&admins[i])
	}
	response.Success(c, http.StatusOK, views)
}

type setActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// PATCH /api/admins/:id/active
func (h *AdminHandler) SetActive(c *gin.Context) {
	var req setActiveRequest
	if !bindAndValidate(c, &req) {
		return
	}

	admin, err := h.admins.SetActive(requestContext(c), c.Param("id"), *req.IsActive)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, adminView(admin))
}
