package handlers

import (
	"net/http"

	"github.com/zesbe/hallowa-sub001/internal/services"

	"github.com/gin-gonic/gin"
)

// AddonHandler serves the add-on catalog and the user's grants
type AddonHandler struct {
	addonService *services.AddonService
}

// NewAddonHandler creates a new addon handler
func NewAddonHandler(addonService *services.AddonService) *AddonHandler {
	return &AddonHandler{addonService: addonService}
}

// Catalog lists purchasable add-ons (GET /api/addons)
func (h *AddonHandler) Catalog(c *gin.Context) {
	addons, err := h.addonService.Catalog()
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"addons": addons})
}

// Mine lists the user's grants with expiry (GET /api/addons/mine)
func (h *AddonHandler) Mine(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	grants, err := h.addonService.Mine(userID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"addons": grants})
}
