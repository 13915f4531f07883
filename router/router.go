// Package router exposes the /bridge API surface the external WhatsApp
// session bridge polls. The whole group sits behind the shared bridge token;
// every operation is additionally scoped to the device whose API key the
// bridge presents.
package router

import (
	"context"
	"errors"
	"net/http"

	"github.com/zesbe/hallowa-sub001/internal/config"
	"github.com/zesbe/hallowa-sub001/internal/models"
	"github.com/zesbe/hallowa-sub001/internal/services"
	"github.com/zesbe/hallowa-sub001/pkg/logger"
	"github.com/zesbe/hallowa-sub001/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DeviceService defines the device operations the bridge surface needs
type DeviceService interface {
	AuthenticateBridge(apiKey string) (*models.Device, error)
	HandleStatusReport(deviceID string, report *models.DeviceStatusReport) error
}

// QueueService defines the queue operations the bridge surface needs
type QueueService interface {
	Claim(device *models.Device, limit int) ([]*models.QueuedMessage, error)
	Resolve(device *models.Device, messageID, status string, sendErr *string) (*models.QueuedMessage, error)
}

// ChatbotService defines the inbound-message handling the bridge surface needs
type ChatbotService interface {
	HandleInbound(ctx context.Context, device *models.Device, from, body string) (string, error)
}

// Bridge wires the bridge-facing routes onto a gin engine
type Bridge struct {
	cfg     *config.Config
	devices DeviceService
	queue   QueueService
	chatbot ChatbotService
}

// NewBridge creates the bridge route handler set
func NewBridge(cfg *config.Config, devices DeviceService, queue QueueService, chatbot ChatbotService) *Bridge {
	if devices == nil || queue == nil || chatbot == nil {
		panic("bridge services cannot be nil")
	}
	return &Bridge{
		cfg:     cfg,
		devices: devices,
		queue:   queue,
		chatbot: chatbot,
	}
}

// Register mounts the /bridge group behind the shared-token middleware
func (b *Bridge) Register(engine *gin.Engine) {
	group := engine.Group("/bridge", middleware.BridgeTokenMiddleware(b.cfg))
	{
		group.POST("/queue/claim", b.handleClaim)
		group.POST("/queue/:id/result", b.handleResult)
		group.POST("/devices/:id/status", b.handleDeviceStatus)
		group.POST("/inbound", b.handleInbound)
	}
}

// authDevice resolves the device from the X-Device-Key header
func (b *Bridge) authDevice(c *gin.Context) (*models.Device, bool) {
	apiKey := c.GetHeader("X-Device-Key")
	if apiKey == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Device key is required"})
		return nil, false
	}

	device, err := b.devices.AuthenticateBridge(apiKey)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid device key"})
		return nil, false
	}

	return device, true
}

type claimRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
	Limit    int    `json:"limit"`
}

// handleClaim atomically hands the device a batch of pending sends
// (POST /bridge/queue/claim)
func (b *Bridge) handleClaim(c *gin.Context) {
	device, ok := b.authDevice(c)
	if !ok {
		return
	}

	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Device_id is required"})
		return
	}
	if req.DeviceID != device.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Device key does not match device_id"})
		return
	}

	messages, err := b.queue.Claim(device, req.Limit)
	if err != nil {
		logger.Error("Queue claim failed",
			zap.String("device_id", device.ID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to claim messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"messages": messages,
	})
}

type resultRequest struct {
	Status string `json:"status" binding:"required"`
	Error  string `json:"error,omitempty"`
}

// handleResult records the delivery outcome of a claimed row
// (POST /bridge/queue/:id/result)
func (b *Bridge) handleResult(c *gin.Context) {
	device, ok := b.authDevice(c)
	if !ok {
		return
	}

	var req resultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status is required"})
		return
	}

	var sendErr *string
	if req.Error != "" {
		sendErr = &req.Error
	}

	message, err := b.queue.Resolve(device, c.Param("id"), req.Status, sendErr)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMessageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrNotMessageDevice):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrAlreadyResolved):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": message,
	})
}

// handleDeviceStatus applies a connection event (POST /bridge/devices/:id/status)
func (b *Bridge) handleDeviceStatus(c *gin.Context) {
	device, ok := b.authDevice(c)
	if !ok {
		return
	}

	deviceID := c.Param("id")
	if deviceID != device.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Device key does not match device"})
		return
	}

	var report models.DeviceStatusReport
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status is required"})
		return
	}

	if err := b.devices.HandleStatusReport(deviceID, &report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type inboundRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
	From     string `json:"from" binding:"required"`
	Body     string `json:"body" binding:"required"`
}

// handleInbound records an inbound chat message and runs the auto-reply
// pipeline (POST /bridge/inbound)
func (b *Bridge) handleInbound(c *gin.Context) {
	device, ok := b.authDevice(c)
	if !ok {
		return
	}

	var req inboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Device_id, from, and body are required"})
		return
	}
	if req.DeviceID != device.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Device key does not match device_id"})
		return
	}

	reply, err := b.chatbot.HandleInbound(c.Request.Context(), device, req.From, req.Body)
	if err != nil {
		logger.Error("Inbound handling failed",
			zap.String("device_id", device.ID),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"reply":   reply,
	})
}
