package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/zesbe/hallowa-sub001/internal/services"

	"github.com/gin-gonic/gin"
)

// statusFor maps service errors to HTTP status codes. Ownership failures
// present as 404 so tenants cannot probe for other tenants' resource IDs.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrDeviceNotFound),
		errors.Is(err, services.ErrNotDeviceOwner),
		errors.Is(err, services.ErrContactNotFound),
		errors.Is(err, services.ErrNotContactOwner),
		errors.Is(err, services.ErrTemplateNotFound),
		errors.Is(err, services.ErrNotTemplateOwner),
		errors.Is(err, services.ErrBroadcastNotFound),
		errors.Is(err, services.ErrNotBroadcastOwner),
		errors.Is(err, services.ErrRuleNotFound),
		errors.Is(err, services.ErrNotRuleOwner),
		errors.Is(err, services.ErrPaymentNotFound):
		return http.StatusNotFound

	case errors.Is(err, services.ErrQuotaExceeded),
		errors.Is(err, services.ErrPlanExpired),
		errors.Is(err, services.ErrAddonRequired):
		return http.StatusPaymentRequired

	case errors.Is(err, services.ErrNotCancellable),
		errors.Is(err, services.ErrDuplicateContact),
		errors.Is(err, services.ErrDuplicateTemplate),
		errors.Is(err, services.ErrTemplateArchived),
		errors.Is(err, services.ErrAlreadyResolved):
		return http.StatusConflict

	default:
		return http.StatusBadRequest
	}
}

// abortWithError writes the standard error envelope for a service failure
func abortWithError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// currentUserID extracts the authenticated user ID set by the auth middleware
func currentUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", false
	}
	id, ok := userID.(string)
	if !ok || id == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", false
	}
	return id, true
}

// pagination reads limit/offset query parameters with defaults
func pagination(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
