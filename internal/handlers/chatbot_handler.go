package handlers

import (
	"net/http"

	"github.com/zesbe/hallowa-sub001/internal/models"
	"github.com/zesbe/hallowa-sub001/internal/services"

	"github.com/gin-gonic/gin"
)

// ChatbotHandler handles auto-reply rule management
type ChatbotHandler struct {
	chatbotService *services.ChatbotService
}

// NewChatbotHandler creates a new chatbot handler
func NewChatbotHandler(chatbotService *services.ChatbotService) *ChatbotHandler {
	return &ChatbotHandler{chatbotService: chatbotService}
}

// Create adds a rule (POST /api/chatbot/rules). Requires the ai_chatbot add-on.
func (h *ChatbotHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.CreateChatbotRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Keyword and reply are required"})
		return
	}

	rule, err := h.chatbotService.CreateRule(userID, &req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rule)
}

// List retrieves the user's rules in priority order (GET /api/chatbot/rules)
func (h *ChatbotHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	rules, err := h.chatbotService.ListRules(userID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// Update applies changes to a rule (PUT /api/chatbot/rules/:id)
func (h *ChatbotHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.CreateChatbotRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	rule, err := h.chatbotService.UpdateRule(userID, c.Param("id"), &req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, rule)
}

// activeRequest toggles a rule on or off
type activeRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetActive toggles a rule (POST /api/chatbot/rules/:id/active)
func (h *ChatbotHandler) SetActive(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req activeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Active flag is required"})
		return
	}

	rule, err := h.chatbotService.SetRuleActive(userID, c.Param("id"), *req.Active)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, rule)
}

// Delete removes a rule (DELETE /api/chatbot/rules/:id)
func (h *ChatbotHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.chatbotService.DeleteRule(userID, c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Rule deleted"})
}
