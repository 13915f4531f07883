package handlers

import (
	"net/http"

	"github.com/zesbe/hallowa-sub001/internal/models"
	"github.com/zesbe/hallowa-sub001/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserHandler handles account self-service requests
type UserHandler struct {
	userService UserServiceInterface
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService UserServiceInterface) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// Register handles user registration (POST /api/auth/register)
// New accounts start on the 7-day trial plan
func (h *UserHandler) Register(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if req.Username == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username is required"})
			return
		}
		if req.Email == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email is required"})
			return
		}
		if req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password is required"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	user, err := h.userService.CreateUser(req.Username, req.Email, req.Password)
	if err != nil {
		logger.Warn("User registration failed",
			zap.String("username", req.Username),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logger.Info("User registered",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
	)

	c.JSON(http.StatusCreated, user.ToResponse())
}

// Me returns the authenticated user's account (GET /api/users/me)
func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := h.userService.GetUser(userID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}

// UpdateMe applies a self-service profile update (PUT /api/users/me)
func (h *UserHandler) UpdateMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	// Self-service updates cannot deactivate the account
	req.Active = nil

	user, err := h.userService.UpdateUser(userID, &req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}

// ChangePassword handles self-service password change (POST /api/users/me/password)
// Requires the user's current password for verification
func (h *UserHandler) ChangePassword(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if err := h.userService.ChangePassword(userID, req.OldPassword, req.NewPassword); err != nil {
		logger.Warn("Password change failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logger.Info("Password changed", zap.String("user_id", userID))

	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

// totpRequest carries the verification code for enabling 2FA
type totpRequest struct {
	Code string `json:"code" binding:"required"`
}

// GenerateTOTP creates a new 2FA secret (POST /api/users/me/totp/generate)
// 2FA stays disabled until the user verifies a code via EnableTOTP
func (h *UserHandler) GenerateTOTP(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	secret, err := h.userService.GenerateTOTPSecret(userID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"secret": secret})
}

// EnableTOTP turns on 2FA after code verification (POST /api/users/me/totp/enable)
func (h *UserHandler) EnableTOTP(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req totpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Verification code is required"})
		return
	}

	if err := h.userService.EnableTOTP(userID, req.Code); err != nil {
		abortWithError(c, err)
		return
	}

	logger.Info("TOTP enabled", zap.String("user_id", userID))

	c.JSON(http.StatusOK, gin.H{"message": "Two-factor authentication enabled"})
}

// DisableTOTP turns off 2FA (POST /api/users/me/totp/disable)
func (h *UserHandler) DisableTOTP(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.userService.DisableTOTP(userID); err != nil {
		abortWithError(c, err)
		return
	}

	logger.Info("TOTP disabled", zap.String("user_id", userID))

	c.JSON(http.StatusOK, gin.H{"message": "Two-factor authentication disabled"})
}
