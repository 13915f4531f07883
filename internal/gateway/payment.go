// Package gateway holds the HTTP clients for the external services the
// platform glues together: the payment gateway and the optional AI reply
// endpoint.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/zesbe/hallowa-sub001/internal/config"
	"github.com/zesbe/hallowa-sub001/pkg/utils"

	"github.com/shopspring/decimal"
)

var (
	// ErrGatewayUnavailable indicates the gateway could not be reached
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrGatewayRejected indicates the gateway refused the transaction
	ErrGatewayRejected = errors.New("payment gateway rejected the transaction")
)

// PaymentGateway is the surface the payment service depends on. The HTTP
// implementation talks to a Tripay-style merchant API; tests substitute it.
type PaymentGateway interface {
	CreateTransaction(ctx context.Context, req *TransactionRequest) (*Transaction, error)
	VerifyCallback(rawBody []byte, signature string) bool
}

// TransactionRequest describes a checkout to create at the gateway
type TransactionRequest struct {
	MerchantRef  string          `json:"merchant_ref"`
	Method       string          `json:"method,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	CustomerName string          `json:"customer_name"`
	ItemName     string          `json:"item_name"`
	CallbackURL  string          `json:"callback_url,omitempty"`
	Signature    string          `json:"signature"`
}

// Transaction is the gateway's view of a created checkout
type Transaction struct {
	Reference   string          `json:"reference"`
	CheckoutURL string          `json:"checkout_url"`
	Method      string          `json:"payment_method"`
	Fee         decimal.Decimal `json:"total_fee"`
	Status      string          `json:"status"`
}

type createResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    Transaction `json:"data"`
}

// PaymentClient is the HTTP implementation of PaymentGateway
type PaymentClient struct {
	baseURL      string
	merchantCode string
	apiKey       string
	privateKey   string
	callbackURL  string
	httpClient   *http.Client
}

// NewPaymentClient creates a gateway client from config
func NewPaymentClient(cfg *config.Config) *PaymentClient {
	return &PaymentClient{
		baseURL:      cfg.Gateway.BaseURL,
		merchantCode: cfg.Gateway.MerchantCode,
		apiKey:       cfg.Gateway.APIKey,
		privateKey:   cfg.Gateway.PrivateKey,
		callbackURL:  cfg.Gateway.CallbackURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateTransaction signs and posts a checkout to the gateway. The merchant
// signature is HMAC-SHA256 over merchantCode+merchantRef+amount with the
// private key, per the gateway's contract.
func (c *PaymentClient) CreateTransaction(ctx context.Context, req *TransactionRequest) (*Transaction, error) {
	if req == nil {
		return nil, errors.New("transaction request cannot be nil")
	}

	payload := c.merchantCode + req.MerchantRef + req.Amount.StringFixed(0)
	req.Signature = utils.SignHMAC(payload, c.privateKey)
	if req.CallbackURL == "" {
		req.CallbackURL = c.callbackURL
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/transaction/create", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	var decoded createResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || !decoded.Success {
		if decoded.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrGatewayRejected, decoded.Message)
		}
		return nil, fmt.Errorf("%w: status %d", ErrGatewayRejected, resp.StatusCode)
	}

	return &decoded.Data, nil
}

// VerifyCallback checks the gateway's HMAC-SHA256 signature over the raw
// callback body.
func (c *PaymentClient) VerifyCallback(rawBody []byte, signature string) bool {
	if signature == "" {
		return false
	}
	return utils.VerifyHMAC(string(rawBody), signature, c.privateKey)
}
