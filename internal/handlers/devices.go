package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medlemine/ashport/internal/services"
	"github.com/medlemine/ashport/pkg/errors"
	"github.com/medlemine/ashport/pkg/response"
)

// DeviceHandler serves device registration and management for portal users.
type DeviceHandler struct {
	devices *services.DeviceService
}

func NewDeviceHandler(devices *services.DeviceService) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

type registerDeviceRequest struct {
	Name   string `json:"name" validate:"required,max=120"`
	Serial string `json:"serial" validate:"required,max=64"`
}

// POST /api/devices
func (h *DeviceHandler) Register(c *gin.Context) {
	user, ok := currentPortalUser(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req registerDeviceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	enrolment, err := h.devices.Register(requestContext(c), services.RegisterDeviceInput{
		OwnerID: user.ID,
		Name:    req.Name,
		Serial:  req.Serial,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusCreated, enrolment,
		"Scan the QR code with an authenticator app; codes are required to activate subscriptions")
}

// GET /api/devices
func (h *DeviceHandler) List(c *gin.Context) {
	user, ok := currentPortalUser(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	devices, err := h.devices.ListForOwner(requestContext(c), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, devices)
}

// GET /api/devices/:id
func (h *DeviceHandler) Get(c *gin.Context) {
	user, ok := currentPortalUser(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	device, err := h.devices.GetForOwner(requestContext(c), user.ID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, device)
}

// GET /api/devices/:id/qr
func (h *DeviceHandler) QR(c *gin.Context) {
	user, ok := currentPortalUser(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	png, err := h.devices.ProvisioningQR(requestContext(c), user.ID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// DELETE /api/devices/:id
func (h *DeviceHandler) Delete(c *gin.Context) {
	user, ok := currentPortalUser(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.devices.Delete(requestContext(c), user.ID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, nil, "Device removed")
}
