package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pterodactyl-service/internal/models"
)

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderStatus updates order status
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	return err
}

// CancelOrder marks an order cancelled with the caller-supplied metadata
func (s *Store) CancelOrder(ctx context.Context, orderID int64, cancelledAt time.Time, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, cancelled_at = $2, cancel_reason = $3, updated_at = NOW() WHERE id = $4`,
		models.OrderStatusCancelled, cancelledAt, reason, orderID)
	return err
}

// UncancelOrder reverts a cancelled order to active and clears the
// cancellation metadata.
func (s *Store) UncancelOrder(ctx context.Context, orderID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, cancelled_at = NULL, cancel_reason = NULL, updated_at = NOW() WHERE id = $2`,
		models.OrderStatusActive, orderID)
	return err
}

// ExtendOrderDueDate advances an order's due date by the given number of days
func (s *Store) ExtendOrderDueDate(ctx context.Context, orderID int64, days int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE orders SET due_date = due_date + ($1 * INTERVAL '1 day'), updated_at = NOW() WHERE id = $2`,
		days, orderID)
	return err
}

// CreatePayment creates a new payment record
func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (order_id, user_id, status, amount, description, due_date, options)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, payment, query,
		payment.OrderID, payment.UserID, payment.Status, payment.Amount,
		payment.Description, payment.DueDate, payment.Options)
}

// GetPaymentByID retrieves a payment by ID
func (s *Store) GetPaymentByID(ctx context.Context, id int64) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment, "SELECT * FROM payments WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetUnpaidPaymentByDueDate finds an outstanding payment for an order with
// the given due date. Used to dedupe renewal invoices.
func (s *Store) GetUnpaidPaymentByDueDate(ctx context.Context, orderID int64, dueDate time.Time) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE order_id = $1 AND status = $2 AND due_date = $3 ORDER BY created_at DESC LIMIT 1",
		orderID, models.PaymentStatusUnpaid, dueDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// DeletePayment removes a payment record
func (s *Store) DeletePayment(ctx context.Context, paymentID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM payments WHERE id = $1", paymentID)
	return err
}

// MarkPaymentPaid updates a payment to paid
func (s *Store) MarkPaymentPaid(ctx context.Context, paymentID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE payments SET status = $1, updated_at = NOW() WHERE id = $2",
		models.PaymentStatusPaid, paymentID)
	return err
}

// GetPanelAccount retrieves the panel user link for a billing-host user
func (s *Store) GetPanelAccount(ctx context.Context, userID int64) (*models.PanelAccount, error) {
	var account models.PanelAccount
	err := s.db.GetContext(ctx, &account,
		"SELECT * FROM panel_accounts WHERE user_id = $1", userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// CreatePanelAccount stores a new local-to-panel user link
func (s *Store) CreatePanelAccount(ctx context.Context, account *models.PanelAccount) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO panel_accounts (user_id, external_id, username, password)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET external_id = $2, username = $3`,
		account.UserID, account.ExternalID, account.Username, account.Password)
	return err
}

// UpdatePanelAccountPassword updates the locally stored panel credentials
func (s *Store) UpdatePanelAccountPassword(ctx context.Context, userID int64, password string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE panel_accounts SET password = $1 WHERE user_id = $2",
		password, userID)
	return err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
