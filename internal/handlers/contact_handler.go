package handlers

import (
	"net/http"

	"github.com/zesbe/hallowa-sub001/internal/models"
	"github.com/zesbe/hallowa-sub001/internal/services"
	"github.com/zesbe/hallowa-sub001/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MaxImportRows caps one bulk contact upload.
const MaxImportRows = 5000

// ContactHandler handles address-book requests
type ContactHandler struct {
	contactService *services.ContactService
}

// NewContactHandler creates a new contact handler
func NewContactHandler(contactService *services.ContactService) *ContactHandler {
	return &ContactHandler{contactService: contactService}
}

// Create adds a contact (POST /api/contacts)
func (h *ContactHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Phone is required"})
		return
	}

	contact, err := h.contactService.Create(userID, &req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, contact)
}

// List retrieves contacts with optional search/tag filters (GET /api/contacts)
func (h *ContactHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	limit, offset := pagination(c)
	contacts, err := h.contactService.List(userID, c.Query("search"), c.Query("tag"), limit, offset)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}

// Get retrieves one contact (GET /api/contacts/:id)
func (h *ContactHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	contact, err := h.contactService.Get(userID, c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, contact)
}

// Update applies changes to a contact (PUT /api/contacts/:id)
func (h *ContactHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	contact, err := h.contactService.Update(userID, c.Param("id"), &req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, contact)
}

// Delete removes a contact (DELETE /api/contacts/:id)
func (h *ContactHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.contactService.Delete(userID, c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Contact deleted"})
}

// importRequest is the bulk upload body
type importRequest struct {
	Contacts []*models.CreateContactRequest `json:"contacts" binding:"required"`
}

// Import bulk-creates contacts (POST /api/contacts/import). Invalid rows are
// reported per-row; the import never aborts halfway.
func (h *ContactHandler) Import(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Contacts list is required"})
		return
	}
	if len(req.Contacts) > MaxImportRows {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Too many contacts in one import"})
		return
	}

	result, err := h.contactService.Import(userID, req.Contacts)
	if err != nil {
		abortWithError(c, err)
		return
	}

	logger.Info("Contacts imported",
		zap.String("user_id", userID),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
	)

	c.JSON(http.StatusOK, result)
}
