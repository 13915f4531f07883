package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/zesbe/hallowa-sub001/internal/models"
	"github.com/zesbe/hallowa-sub001/internal/services"
	"github.com/zesbe/hallowa-sub001/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PaymentHandler handles checkout creation and the gateway's callback
type PaymentHandler struct {
	paymentService *services.PaymentService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// Create starts a checkout at the gateway (POST /api/payments)
func (h *PaymentHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Item_code is required"})
		return
	}

	payment, err := h.paymentService.CreateCheckout(c.Request.Context(), userID, &req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":      true,
		"payment":      payment,
		"checkout_url": payment.CheckoutURL,
	})
}

// List retrieves the user's payment history (GET /api/payments)
func (h *PaymentHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	limit, offset := pagination(c)
	payments, err := h.paymentService.List(userID, limit, offset)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// Callback receives the gateway's status report (POST /api/payments/callback)
// The route is public; authenticity comes from the HMAC signature over the
// raw request body. Replayed reports are acknowledged without re-fulfilling.
func (h *PaymentHandler) Callback(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	signature := c.GetHeader("X-Callback-Signature")
	if !h.paymentService.VerifyCallback(rawBody, signature) {
		logger.Warn("Payment callback rejected - bad signature",
			zap.String("client_ip", c.ClientIP()),
		)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	var cb models.PaymentCallback
	if err := json.Unmarshal(rawBody, &cb); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid callback format"})
		return
	}

	if err := h.paymentService.HandleCallback(&cb); err != nil {
		if errors.Is(err, services.ErrUnknownCallbackRef) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		logger.Error("Payment callback failed",
			zap.String("merchant_ref", cb.MerchantRef),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
