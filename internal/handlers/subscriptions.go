package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medlemine/ashport/internal/services"
	"github.com/medlemine/ashport/pkg/errors"
	"github.com/medlemine/ashport/pkg/response"
)

// SubscriptionHandler serves the plan catalogue and the purchase/activation
// flow.
type SubscriptionHandler struct {
	subscriptions *services.SubscriptionService
}

func NewSubscriptionHandler(subscriptions *services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions}
}

// GET /api/plans
func (h *SubscriptionHandler) Plans(c *gin.Context) {
	plans, err := h.subscriptions.Plans(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, plans)
}

type purchaseRequest struct {
	DeviceID string `json:"device_id" validate:"required"`
	PlanCode string `json:"plan_code" validate:"required"`
}

// POST /api/subscriptions
func (h *SubscriptionHandler) Purchase(c *gin.Context) {
	user, ok := currentPortalUser(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req purchaseRequest
	if !bindAndValidate(c, &req) {
		return
	}

	sub, err := h.subscriptions.Purchase(requestContext(c), user.ID, req.DeviceID, req.PlanCode)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusCreated, sub,
		"Subscription created; activate it with a code from the device authenticator")
}

type activateRequest struct {
	Code string `json:"code" validate:"required,len=6"`
}

// POST /api/subscriptions/:id/activate
func (h *SubscriptionHandler) Activate(c *gin.Context) {
	user, ok := currentPortalUser(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req activateRequest
	if !bindAndValidate(c, &req) {
		return
	}

	sub, err := h.subscriptions.Activate(requestContext(c), user.ID, c.Param("id"), req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, sub, "Subscription activated")
}

// GET /api/subscriptions
func (h *SubscriptionHandler) List(c *gin.Context) {
	user, ok := currentPortalUser(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	subs, err := h.subscriptions.ListForUser(requestContext(c), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, subs)
}

// GET /api/subscriptions/:id
func (h *SubscriptionHandler) Get(c *gin.Context) {
	user, ok := currentPortalUser(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	sub, err := h.subscriptions.GetForUser(requestContext(c), user.ID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, sub)
}

// GET /api/subscriptions/:id/progress
func (h *SubscriptionHandler) Progress(c *gin.Context) {
	user, ok := currentPortalUser(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	progress, err := h.subscriptions.Progress(requestContext(c), user.ID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, progress)
}
