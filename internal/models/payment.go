package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment states mirroring the gateway's transaction lifecycle
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentExpired = "expired"
	PaymentFailed  = "failed"
)

// Payment represents one gateway transaction buying a plan or an add-on.
// MerchantRef is our idempotency key; Reference is the gateway's.
type Payment struct {
	ID          string          `json:"id"`           // UUID
	UserID      string          `json:"user_id"`      // Paying tenant
	MerchantRef string          `json:"merchant_ref"` // Our reference sent to the gateway
	Reference   string          `json:"reference"`    // Gateway transaction reference
	ItemCode    string          `json:"item_code"`    // plan:basic, plan:pro, addon:ai_chatbot, ...
	Method      string          `json:"method"`       // Payment channel chosen at checkout
	Amount      decimal.Decimal `json:"amount"`
	Fee         decimal.Decimal `json:"fee"`
	Status      string          `json:"status"`
	CheckoutURL string          `json:"checkout_url,omitempty"`
	PaidAt      *int64          `json:"paid_at,omitempty"`
	CreatedAt   int64           `json:"created_at"`
	UpdatedAt   int64           `json:"updated_at"`
}

// CreatePaymentRequest represents the request body for starting a checkout
type CreatePaymentRequest struct {
	ItemCode string `json:"item_code" binding:"required"`
	Method   string `json:"method,omitempty"`
}

// PaymentCallback is the JSON body the gateway posts on status changes.
// The raw body is HMAC-signed; handlers verify before decoding.
type PaymentCallback struct {
	Reference   string          `json:"reference"`
	MerchantRef string          `json:"merchant_ref"`
	Status      string          `json:"status"` // PAID/EXPIRED/FAILED
	AmountPaid  decimal.Decimal `json:"total_amount"`
	PaidAt      int64           `json:"paid_at,omitempty"`
}

// NewPayment creates a pending Payment with a generated merchant reference.
func NewPayment(userID, itemCode string, amount decimal.Decimal) *Payment {
	now := time.Now().Unix()
	id := uuid.New().String()
	return &Payment{
		ID:          id,
		UserID:      userID,
		MerchantRef: fmt.Sprintf("HW-%d-%s", now, id[:8]),
		ItemCode:    itemCode,
		Amount:      amount,
		Fee:         decimal.Zero,
		Status:      PaymentPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsPaid reports whether the payment has settled.
func (p *Payment) IsPaid() bool {
	return p.Status == PaymentPaid
}

// Total returns amount plus gateway fee.
func (p *Payment) Total() decimal.Decimal {
	return p.Amount.Add(p.Fee)
}
