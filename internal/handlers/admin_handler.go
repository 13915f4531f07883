package handlers

import (
	"net/http"

	"github.com/zesbe/hallowa-sub001/internal/db"
	"github.com/zesbe/hallowa-sub001/internal/models"
	"github.com/zesbe/hallowa-sub001/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler handles platform administration: tenant management and the
// platform-wide stats view. Routes are gated by permission middleware.
type AdminHandler struct {
	userService   UserServiceInterface
	userRepo      db.UserRepository
	deviceRepo    db.DeviceRepository
	broadcastRepo db.BroadcastRepository
	queueRepo     db.QueueRepository
	paymentRepo   db.PaymentRepository
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	userService UserServiceInterface,
	userRepo db.UserRepository,
	deviceRepo db.DeviceRepository,
	broadcastRepo db.BroadcastRepository,
	queueRepo db.QueueRepository,
	paymentRepo db.PaymentRepository,
) *AdminHandler {
	return &AdminHandler{
		userService:   userService,
		userRepo:      userRepo,
		deviceRepo:    deviceRepo,
		broadcastRepo: broadcastRepo,
		queueRepo:     queueRepo,
		paymentRepo:   paymentRepo,
	}
}

// ListUsers retrieves users with pagination (GET /api/admin/users)
func (h *AdminHandler) ListUsers(c *gin.Context) {
	limit, offset := pagination(c)

	users, err := h.userService.ListUsers(limit, offset)
	if err != nil {
		abortWithError(c, err)
		return
	}

	responses := make([]*models.UserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, u.ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{"users": responses})
}

// GetUser retrieves one user (GET /api/admin/users/:id)
func (h *AdminHandler) GetUser(c *gin.Context) {
	user, err := h.userService.GetUser(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}

// UpdateUser applies an admin profile update, including activation state
// (PUT /api/admin/users/:id)
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	user, err := h.userService.UpdateUser(c.Param("id"), &req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	logger.Info("User updated by admin", zap.String("user_id", user.ID))

	c.JSON(http.StatusOK, user.ToResponse())
}

// setPlanRequest changes a tenant's plan out of band of the payment flow
type setPlanRequest struct {
	Plan         string `json:"plan" binding:"required"`
	DurationDays int    `json:"duration_days"`
}

// SetPlan changes a tenant's plan (POST /api/admin/users/:id/plan)
func (h *AdminHandler) SetPlan(c *gin.Context) {
	var req setPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Plan is required"})
		return
	}

	if req.Plan != models.PlanTrial && req.Plan != models.PlanBasic && req.Plan != models.PlanPro {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid plan"})
		return
	}

	if err := h.userService.SetPlan(c.Param("id"), req.Plan, req.DurationDays); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Plan updated"})
}

// resetPasswordRequest carries the admin-set password
type resetPasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// ResetPassword force-sets a user's password (POST /api/admin/users/:id/password/reset)
func (h *AdminHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at least 8 characters"})
		return
	}

	targetUserID := c.Param("id")
	if err := h.userService.AdminSetPassword(targetUserID, req.NewPassword); err != nil {
		abortWithError(c, err)
		return
	}

	logger.Info("Password reset by admin", zap.String("user_id", targetUserID))

	c.JSON(http.StatusOK, gin.H{"message": "Password reset successfully"})
}

// DeleteUser removes a tenant account (DELETE /api/admin/users/:id)
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	if err := h.userService.DeleteUser(c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}

// Stats reports platform totals (GET /api/admin/stats)
func (h *AdminHandler) Stats(c *gin.Context) {
	users, err := h.userRepo.Count()
	if err != nil {
		abortWithError(c, err)
		return
	}
	devices, err := h.deviceRepo.Count()
	if err != nil {
		abortWithError(c, err)
		return
	}
	broadcasts, err := h.broadcastRepo.Count()
	if err != nil {
		abortWithError(c, err)
		return
	}
	messages, err := h.queueRepo.CountHistory()
	if err != nil {
		abortWithError(c, err)
		return
	}
	revenue, err := h.paymentRepo.SumPaid()
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users":      users,
		"devices":    devices,
		"broadcasts": broadcasts,
		"messages":   messages,
		"revenue":    revenue.String(),
	})
}
