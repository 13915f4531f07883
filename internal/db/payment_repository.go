package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/zesbe/hallowa-sub001/internal/models"

	"github.com/shopspring/decimal"
)

// PaymentRepository defines the interface for payment data access
type PaymentRepository interface {
	Create(payment *models.Payment) error
	GetByID(id string) (*models.Payment, error)
	GetByMerchantRef(merchantRef string) (*models.Payment, error)
	ListByUser(userID string, limit, offset int) ([]*models.Payment, error)
	SetGatewayDetails(id, reference, checkoutURL, method string, fee decimal.Decimal) error
	MarkPaid(id string, paidAt int64) (bool, error)
	MarkStatus(id, status string) error
	SumPaid() (decimal.Decimal, error)
}

type paymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db *sql.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

const paymentColumns = `id, user_id, merchant_ref, reference, item_code, method,
	amount, fee, status, checkout_url, paid_at, created_at, updated_at`

func scanPayment(row interface{ Scan(...interface{}) error }) (*models.Payment, error) {
	p := &models.Payment{}
	var amount, fee string
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.MerchantRef,
		&p.Reference,
		&p.ItemCode,
		&p.Method,
		&amount,
		&fee,
		&p.Status,
		&p.CheckoutURL,
		&p.PaidAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount: %w", err)
	}
	p.Fee, err = decimal.NewFromString(fee)
	if err != nil {
		return nil, fmt.Errorf("invalid stored fee: %w", err)
	}

	return p, nil
}

// Create inserts a new payment. Amounts are stored as decimal strings.
func (r *paymentRepository) Create(payment *models.Payment) error {
	if payment == nil {
		return fmt.Errorf("payment cannot be nil")
	}

	query := `
		INSERT INTO payments (id, user_id, merchant_ref, reference, item_code, method,
			amount, fee, status, checkout_url, paid_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		payment.ID,
		payment.UserID,
		payment.MerchantRef,
		payment.Reference,
		payment.ItemCode,
		payment.Method,
		payment.Amount.String(),
		payment.Fee.String(),
		payment.Status,
		payment.CheckoutURL,
		payment.PaidAt,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

// GetByID retrieves a payment by ID
func (r *paymentRepository) GetByID(id string) (*models.Payment, error) {
	if id == "" {
		return nil, fmt.Errorf("payment ID cannot be empty")
	}

	p, err := scanPayment(r.db.QueryRow(
		`SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return p, nil
}

// GetByMerchantRef retrieves a payment by our gateway reference
func (r *paymentRepository) GetByMerchantRef(merchantRef string) (*models.Payment, error) {
	if merchantRef == "" {
		return nil, fmt.Errorf("merchant ref cannot be empty")
	}

	p, err := scanPayment(r.db.QueryRow(
		`SELECT `+paymentColumns+` FROM payments WHERE merchant_ref = ?`, merchantRef))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment by merchant ref: %w", err)
	}

	return p, nil
}

// ListByUser retrieves a user's payments, newest first
func (r *paymentRepository) ListByUser(userID string, limit, offset int) ([]*models.Payment, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(
		`SELECT `+paymentColumns+` FROM payments WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

// SetGatewayDetails stores the gateway's response after checkout creation
func (r *paymentRepository) SetGatewayDetails(id, reference, checkoutURL, method string, fee decimal.Decimal) error {
	if id == "" {
		return fmt.Errorf("payment ID cannot be empty")
	}

	_, err := r.db.Exec(`
		UPDATE payments
		SET reference = ?, checkout_url = ?, method = ?, fee = ?, updated_at = ?
		WHERE id = ?
	`, reference, checkoutURL, method, fee.String(), time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set gateway details: %w", err)
	}
	return nil
}

// MarkPaid settles a pending payment. The conditional UPDATE makes callback
// replays no-ops: only the first report flips the row.
func (r *paymentRepository) MarkPaid(id string, paidAt int64) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("payment ID cannot be empty")
	}

	result, err := r.db.Exec(`
		UPDATE payments
		SET status = ?, paid_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, models.PaymentPaid, paidAt, time.Now().Unix(), id, models.PaymentPending)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment paid: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check payment update: %w", err)
	}

	return rows == 1, nil
}

// MarkStatus moves a pending payment to expired/failed
func (r *paymentRepository) MarkStatus(id, status string) error {
	if id == "" {
		return fmt.Errorf("payment ID cannot be empty")
	}

	_, err := r.db.Exec(`
		UPDATE payments SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, status, time.Now().Unix(), id, models.PaymentPending)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return nil
}

// SumPaid totals settled revenue for the admin dashboard
func (r *paymentRepository) SumPaid() (decimal.Decimal, error) {
	rows, err := r.db.Query(
		"SELECT amount FROM payments WHERE status = ?", models.PaymentPaid)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum payments: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan amount: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid stored amount: %w", err)
		}
		total = total.Add(d)
	}

	if err = rows.Err(); err != nil {
		return decimal.Zero, err
	}

	return total, nil
}
