package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zesbe/hallowa-sub001/internal/db"
	"github.com/zesbe/hallowa-sub001/internal/gateway"
	"github.com/zesbe/hallowa-sub001/internal/models"
	"github.com/zesbe/hallowa-sub001/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrPaymentNotFound indicates the payment does not exist
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrUnknownItem indicates an item code outside the catalog
	ErrUnknownItem = errors.New("unknown item code")

	// ErrUnknownCallbackRef indicates a callback for a reference we never issued
	ErrUnknownCallbackRef = errors.New("unknown merchant reference")
)

// Plan subscriptions sold at checkout, 30 days each. Add-on prices live in
// the addons catalog instead.
const planDurationDays = 30

var planPrices = map[string]decimal.Decimal{
	models.PlanBasic: decimal.NewFromInt(99000),
	models.PlanPro:   decimal.NewFromInt(249000),
}

// PaymentService provides checkout creation against the payment gateway and
// idempotent fulfillment of its status callbacks.
type PaymentService struct {
	repo      db.PaymentRepository
	addonRepo db.AddonRepository
	userSvc   *UserService
	gw        gateway.PaymentGateway
}

// NewPaymentService creates a new PaymentService instance
func NewPaymentService(repo db.PaymentRepository, addonRepo db.AddonRepository, userSvc *UserService, gw gateway.PaymentGateway) *PaymentService {
	return &PaymentService{
		repo:      repo,
		addonRepo: addonRepo,
		userSvc:   userSvc,
		gw:        gw,
	}
}

// CreateCheckout prices the item, creates a gateway transaction, and persists
// the pending payment. The returned payment carries the checkout URL the
// dashboard redirects to.
func (s *PaymentService) CreateCheckout(ctx context.Context, userID string, req *models.CreatePaymentRequest) (*models.Payment, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	user, err := s.userSvc.GetUser(userID)
	if err != nil {
		return nil, err
	}

	amount, itemName, err := s.priceItem(req.ItemCode)
	if err != nil {
		return nil, err
	}

	payment := models.NewPayment(userID, req.ItemCode, amount)
	payment.Method = req.Method

	if err := s.repo.Create(payment); err != nil {
		return nil, err
	}

	tx, err := s.gw.CreateTransaction(ctx, &gateway.TransactionRequest{
		MerchantRef:  payment.MerchantRef,
		Method:       req.Method,
		Amount:       amount,
		CustomerName: user.Username,
		ItemName:     itemName,
	})
	if err != nil {
		// Keep the row so the failed attempt shows in history
		if markErr := s.repo.MarkStatus(payment.ID, models.PaymentFailed); markErr != nil {
			logger.Error("Failed to mark payment failed",
				zap.String("payment_id", payment.ID),
				zap.Error(markErr),
			)
		}
		return nil, err
	}

	if err := s.repo.SetGatewayDetails(payment.ID, tx.Reference, tx.CheckoutURL, tx.Method, tx.Fee); err != nil {
		return nil, err
	}

	logger.Info("Checkout created",
		zap.String("payment_id", payment.ID),
		zap.String("user_id", userID),
		zap.String("item_code", req.ItemCode),
		zap.String("reference", tx.Reference),
	)

	return s.repo.GetByID(payment.ID)
}

// Get retrieves a payment, enforcing ownership
func (s *PaymentService) Get(userID, paymentID string) (*models.Payment, error) {
	payment, err := s.repo.GetByID(paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil || payment.UserID != userID {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

// List retrieves a user's payment history
func (s *PaymentService) List(userID string, limit, offset int) ([]*models.Payment, error) {
	return s.repo.ListByUser(userID, limit, offset)
}

// VerifyCallback checks the gateway signature over the raw callback body
func (s *PaymentService) VerifyCallback(rawBody []byte, signature string) bool {
	return s.gw.VerifyCallback(rawBody, signature)
}

// HandleCallback applies a gateway status report. Settling is idempotent:
// the conditional MarkPaid lets exactly one callback fulfill the purchase,
// so gateway retries and replays are safe no-ops.
func (s *PaymentService) HandleCallback(cb *models.PaymentCallback) error {
	if cb == nil {
		return errors.New("callback cannot be nil")
	}

	payment, err := s.repo.GetByMerchantRef(cb.MerchantRef)
	if err != nil {
		return err
	}
	if payment == nil {
		return ErrUnknownCallbackRef
	}

	switch strings.ToUpper(cb.Status) {
	case "PAID":
		paidAt := cb.PaidAt
		if paidAt == 0 {
			paidAt = payment.CreatedAt
		}
		settled, err := s.repo.MarkPaid(payment.ID, paidAt)
		if err != nil {
			return err
		}
		if !settled {
			logger.Info("Callback replay ignored",
				zap.String("payment_id", payment.ID),
				zap.String("merchant_ref", cb.MerchantRef),
			)
			return nil
		}
		return s.fulfill(payment)

	case "EXPIRED":
		return s.repo.MarkStatus(payment.ID, models.PaymentExpired)

	case "FAILED":
		return s.repo.MarkStatus(payment.ID, models.PaymentFailed)

	default:
		return fmt.Errorf("unknown callback status: %s", cb.Status)
	}
}

// fulfill delivers what was bought: a plan activation or an add-on grant
func (s *PaymentService) fulfill(payment *models.Payment) error {
	kind, code, ok := strings.Cut(payment.ItemCode, ":")
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, payment.ItemCode)
	}

	switch kind {
	case "plan":
		if err := s.userSvc.SetPlan(payment.UserID, code, planDurationDays); err != nil {
			return fmt.Errorf("failed to activate plan: %w", err)
		}

	case "addon":
		addon, err := s.addonRepo.GetByCode(code)
		if err != nil {
			return err
		}
		if addon == nil {
			return fmt.Errorf("%w: %s", ErrUnknownItem, payment.ItemCode)
		}
		if err := s.addonRepo.Grant(models.NewUserAddon(payment.UserID, addon)); err != nil {
			return fmt.Errorf("failed to grant addon: %w", err)
		}

	default:
		return fmt.Errorf("%w: %s", ErrUnknownItem, payment.ItemCode)
	}

	logger.Info("Payment fulfilled",
		zap.String("payment_id", payment.ID),
		zap.String("user_id", payment.UserID),
		zap.String("item_code", payment.ItemCode),
	)

	return nil
}

// priceItem resolves an item code to its price and display name
func (s *PaymentService) priceItem(itemCode string) (decimal.Decimal, string, error) {
	kind, code, ok := strings.Cut(itemCode, ":")
	if !ok {
		return decimal.Zero, "", fmt.Errorf("%w: %s", ErrUnknownItem, itemCode)
	}

	switch kind {
	case "plan":
		price, found := planPrices[code]
		if !found {
			return decimal.Zero, "", fmt.Errorf("%w: %s", ErrUnknownItem, itemCode)
		}
		return price, fmt.Sprintf("%s plan (30 days)", code), nil

	case "addon":
		addon, err := s.addonRepo.GetByCode(code)
		if err != nil {
			return decimal.Zero, "", err
		}
		if addon == nil || !addon.Active {
			return decimal.Zero, "", fmt.Errorf("%w: %s", ErrUnknownItem, itemCode)
		}
		return addon.Price, addon.Name, nil

	default:
		return decimal.Zero, "", fmt.Errorf("%w: %s", ErrUnknownItem, itemCode)
	}
}
