package handlers

import (
	"net/http"

	"github.com/zesbe/hallowa-sub001/internal/models"
	"github.com/zesbe/hallowa-sub001/internal/services"
	"github.com/zesbe/hallowa-sub001/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BroadcastHandler handles bulk send requests
type BroadcastHandler struct {
	broadcastService *services.BroadcastService
}

// NewBroadcastHandler creates a new broadcast handler
func NewBroadcastHandler(broadcastService *services.BroadcastService) *BroadcastHandler {
	return &BroadcastHandler{broadcastService: broadcastService}
}

// Create stores a draft or scheduled broadcast (POST /api/broadcasts)
func (h *BroadcastHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.CreateBroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name and device_id are required"})
		return
	}

	broadcast, err := h.broadcastService.Create(userID, &req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, broadcast)
}

// QuickSend validates and dispatches an ad-hoc send (POST /api/broadcasts/quick-send)
func (h *BroadcastHandler) QuickSend(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.QuickSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Device_id and message are required"})
		return
	}

	broadcast, err := h.broadcastService.QuickSend(userID, &req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	logger.Info("Quick send dispatched",
		zap.String("user_id", userID),
		zap.String("broadcast_id", broadcast.ID),
		zap.Int("recipients", broadcast.Recipients),
	)

	c.JSON(http.StatusOK, broadcast)
}

// List retrieves the user's broadcasts (GET /api/broadcasts)
func (h *BroadcastHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	limit, offset := pagination(c)
	broadcasts, err := h.broadcastService.List(userID, limit, offset)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"broadcasts": broadcasts})
}

// Get retrieves one broadcast with its progress counters (GET /api/broadcasts/:id)
func (h *BroadcastHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	broadcast, err := h.broadcastService.Get(userID, c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, broadcast)
}

// Send dispatches a draft immediately (POST /api/broadcasts/:id/send)
func (h *BroadcastHandler) Send(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	broadcast, err := h.broadcastService.SendNow(userID, c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, broadcast)
}

// Cancel stops a draft or scheduled broadcast (POST /api/broadcasts/:id/cancel)
func (h *BroadcastHandler) Cancel(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.broadcastService.Cancel(userID, c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Broadcast cancelled"})
}
