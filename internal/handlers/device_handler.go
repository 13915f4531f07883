package handlers

import (
	"net/http"

	"github.com/zesbe/hallowa-sub001/internal/models"
	"github.com/zesbe/hallowa-sub001/internal/services"

	"github.com/gin-gonic/gin"
)

// DeviceHandler handles WhatsApp device management requests
type DeviceHandler struct {
	deviceService *services.DeviceService
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(deviceService *services.DeviceService) *DeviceHandler {
	return &DeviceHandler{deviceService: deviceService}
}

// Register creates a device (POST /api/devices). The response includes the
// device API key once; it is never returned again.
func (h *DeviceHandler) Register(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.CreateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	device, err := h.deviceService.Register(userID, req.Name, req.WebhookURL)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"device":  device,
		"api_key": device.APIKey,
	})
}

// List retrieves the user's devices (GET /api/devices)
func (h *DeviceHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	devices, err := h.deviceService.List(userID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

// Get retrieves one device (GET /api/devices/:id)
func (h *DeviceHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	device, err := h.deviceService.Get(userID, c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, device)
}

// Update changes a device's name or webhook (PUT /api/devices/:id)
func (h *DeviceHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.UpdateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	device, err := h.deviceService.Update(userID, c.Param("id"), &req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, device)
}

// Connect starts pairing (POST /api/devices/:id/connect)
func (h *DeviceHandler) Connect(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	device, err := h.deviceService.Connect(userID, c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, device)
}

// Disconnect drops the session (POST /api/devices/:id/disconnect)
func (h *DeviceHandler) Disconnect(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.deviceService.Disconnect(userID, c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Device disconnected"})
}

// Delete removes a device (DELETE /api/devices/:id)
func (h *DeviceHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.deviceService.Delete(userID, c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Device deleted"})
}
