package handlers

import (
	"net/http"

	"github.com/zesbe/hallowa-sub001/internal/services"

	"github.com/gin-gonic/gin"
)

// MessageHandler serves the dashboard's read views over the queue and the
// delivery history log.
type MessageHandler struct {
	queueService *services.QueueService
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(queueService *services.QueueService) *MessageHandler {
	return &MessageHandler{queueService: queueService}
}

// History retrieves the user's delivery log (GET /api/messages/history)
// Optional filters: device_id, broadcast_id, direction
func (h *MessageHandler) History(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	limit, offset := pagination(c)
	entries, err := h.queueService.History(
		userID,
		c.Query("device_id"),
		c.Query("broadcast_id"),
		c.Query("direction"),
		limit, offset,
	)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": entries})
}

// QueueStats summarizes the user's queue by status (GET /api/queue/stats)
func (h *MessageHandler) QueueStats(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	stats, err := h.queueService.Stats(userID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
