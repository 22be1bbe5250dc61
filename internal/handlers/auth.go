package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/medlemine/ashport/internal/auth"
	"github.com/medlemine/ashport/internal/models"
	"github.com/medlemine/ashport/internal/services"
	"github.com/medlemine/ashport/pkg/errors"
	"github.com/medlemine/ashport/pkg/response"
)

// AuthHandler manages login for both realms and portal signup.
type AuthHandler struct {
	jwt    *iauth.JWTService
	admins *services.AdminService
	portal *services.PortalService
}

func NewAuthHandler(jwt *iauth.JWTService, admins *services.AdminService, portal *services.PortalService) *AuthHandler {
	return &AuthHandler{jwt: jwt, admins: admins, portal: portal}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// POST /api/auth/login
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	admin, err := h.admins.Authenticate(requestContext(c), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	token, err := h.jwt.GenerateAccessToken(iauth.AccessTokenInput{
		UserID: admin.ID,
		Realm:  iauth.RealmAdmin,
		Role:   admin.Role,
	})
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"tokens": tokenResponse{AccessToken: token},
		"admin":  adminView(admin),
	})
}

type portalRegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"omitempty,max=120"`
}

// POST /api/portal/register
func (h *AuthHandler) PortalRegister(c *gin.Context) {
	var req portalRegisterRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.portal.Register(requestContext(c), services.RegisterPortalUserInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	token, err := h.jwt.GenerateAccessToken(iauth.AccessTokenInput{
		UserID: user.ID,
		Realm:  iauth.RealmPortal,
	})
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"tokens": tokenResponse{AccessToken: token},
		"user":   user,
	})
}

// POST /api/portal/login
func (h *AuthHandler) PortalLogin(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.portal.Authenticate(requestContext(c), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	token, err := h.jwt.GenerateAccessToken(iauth.AccessTokenInput{
		UserID: user.ID,
		Realm:  iauth.RealmPortal,
	})
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"tokens": tokenResponse{AccessToken: token},
		"user":   user,
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	admin, ok := currentAdmin(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}
	response.Success(c, http.StatusOK, adminView(admin))
}

func adminView(admin *models.Admin) gin.H {
	return gin.H{
		"id":        admin.ID,
		"email":     admin.Email,
		"full_name": admin.FullName,
		"role":      admin.Role,
		"is_active": admin.IsActive,
	}
}
