package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/medlemine/ashport/internal/auth"
	"github.com/medlemine/ashport/internal/models"
	"github.com/medlemine/ashport/internal/services"
	"github.com/medlemine/ashport/pkg/errors"
	"github.com/medlemine/ashport/pkg/response"
)

const (
	CtxClaimsKey     = "authClaims"
	CtxUserIDKey     = "userID"
	CtxAdminKey      = "admin"
	CtxPortalUserKey = "portalUser"
)

func bearerToken(c *gin.Context) (string, bool) {
	authz := c.GetHeader("Authorization")
	if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
		return "", false
	}
	return strings.TrimSpace(authz[7:]), true
}

func validateRealm(c *gin.Context, jwt *iauth.JWTService, realm string) (*iauth.Claims, bool) {
	token, ok := bearerToken(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		c.Abort()
		return nil, false
	}

	claims, err := jwt.ValidateAccessToken(token)
	if err != nil || claims.Realm != realm {
		// Normalise all validation failures to 401
		c.Header("WWW-Authenticate", "Bearer")
		response.Error(c, errors.ErrUnauthorized)
		c.Abort()
		return nil, false
	}
	return claims, true
}

// AdminAuth enforces an admin-realm JWT and re-checks the account on every
// request, so deactivated admins lose access immediately.
func AdminAuth(jwt *iauth.JWTService, admins *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := validateRealm(c, jwt, iauth.RealmAdmin)
		if !ok {
			return
		}

		admin, err := admins.GetByID(c.Request.Context(), claims.UserID)
		if err != nil || !admin.IsActive {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxAdminKey, admin)
		c.Next()
	}
}

// RequireSuperAdmin restricts a route to the super admin. Must run after
// AdminAuth.
func RequireSuperAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(CtxAdminKey)
		admin, ok := value.(*models.Admin)
		if !exists || !ok || !admin.IsSuperAdmin() {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// PortalAuth enforces a portal-realm JWT and re-checks the subscriber account.
func PortalAuth(jwt *iauth.JWTService, portal *services.PortalService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := validateRealm(c, jwt, iauth.RealmPortal)
		if !ok {
			return
		}

		user, err := portal.GetByID(c.Request.Context(), claims.UserID)
		if err != nil || !user.IsActive {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxPortalUserKey, user)
		c.Next()
	}
}
