package service

import (
	"context"
	"fmt"
	"time"

	"pterodactyl-service/internal/models"
	"pterodactyl-service/internal/util"

	"go.uber.org/zap"
)

const dateFormat = "02 Jan 2006"

// PaymentStore is the slice of the store the payment service needs
type PaymentStore interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetUnpaidPaymentByDueDate(ctx context.Context, orderID int64, dueDate time.Time) (*models.Payment, error)
	DeletePayment(ctx context.Context, paymentID int64) error
}

// PaymentService generates invoices for the billing host to collect.
// Payment collection itself belongs to the host; this service only shapes
// the records.
type PaymentService struct {
	store  PaymentStore
	logger *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(store PaymentStore) *PaymentService {
	return &PaymentService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// GenerateRenewalInvoice creates the renewal payment for an order. Any
// pre-existing unpaid renewal charge for the same due date is removed
// first so a client re-submitting the renewal form cannot stack invoices.
// The description references the current due date and the date the order
// would run to once the invoice settles; the order's own due date is not
// touched here.
func (ps *PaymentService) GenerateRenewalInvoice(ctx context.Context, order *models.Order, amount int64, periodDays int) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.GenerateRenewalInvoice")
	defer span.End()

	existing, err := ps.store.GetUnpaidPaymentByDueDate(ctx, order.ID, order.DueDate)
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicate renewal invoice: %w", err)
	}
	if existing != nil {
		ps.logger.Info("Removing duplicate unpaid renewal invoice",
			zap.Int64("order_id", order.ID),
			zap.Int64("payment_id", existing.ID))
		if err := ps.store.DeletePayment(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("failed to remove duplicate renewal invoice: %w", err)
		}
	}

	extendedTo := order.DueDate.AddDate(0, 0, periodDays)

	payment := &models.Payment{
		OrderID: order.ID,
		UserID:  order.UserID,
		Status:  models.PaymentStatusUnpaid,
		Amount:  amount,
		Description: fmt.Sprintf("Renewal of %s from %s until %s",
			order.Name,
			order.DueDate.Format(dateFormat),
			extendedTo.Format(dateFormat)),
		DueDate: order.DueDate,
		Options: models.JSONMap{"period": fmt.Sprintf("%d", periodDays)},
	}

	if err := ps.store.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create renewal payment: %w", err)
	}

	util.RenewalsInvoicedTotal.Inc()
	ps.logger.Info("Renewal invoice generated",
		zap.Int64("order_id", order.ID),
		zap.Int64("payment_id", payment.ID),
		zap.Int64("amount", amount))

	return payment, nil
}

// GenerateCancellationInvoice creates the cancellation-fee payment for an
// order. The fee is due within six hours; the order stays active until the
// host reports the fee settled.
func (ps *PaymentService) GenerateCancellationInvoice(ctx context.Context, order *models.Order, fee int64, options models.JSONMap) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.GenerateCancellationInvoice")
	defer span.End()

	payment := &models.Payment{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Status:      models.PaymentStatusUnpaid,
		Amount:      fee,
		Description: fmt.Sprintf("Cancellation: %s", order.Name),
		DueDate:     time.Now().Add(6 * time.Hour),
		Options:     options,
	}

	if err := ps.store.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create cancellation payment: %w", err)
	}

	ps.logger.Info("Cancellation fee invoice generated",
		zap.Int64("order_id", order.ID),
		zap.Int64("payment_id", payment.ID),
		zap.Int64("amount", fee))

	return payment, nil
}
