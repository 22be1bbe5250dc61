package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/medlemine/ashport/internal/middleware"
	"github.com/medlemine/ashport/internal/models"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentAdmin returns the admin installed by the AdminAuth middleware.
func currentAdmin(c *gin.Context) (*models.Admin, bool) {
	value, exists := c.Get(middleware.CtxAdminKey)
	if !exists {
		return nil, false
	}
	admin, ok := value.(*models.Admin)
	return admin, ok
}

// currentPortalUser returns the subscriber installed by the PortalAuth middleware.
func currentPortalUser(c *gin.Context) (*models.PortalUser, bool) {
	value, exists := c.Get(middleware.CtxPortalUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.PortalUser)
	return user, ok
}
