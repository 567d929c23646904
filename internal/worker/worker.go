package worker

import (
	"context"
	"errors"
	"strconv"
	"time"

	"pterodactyl-service/internal/broker"
	"pterodactyl-service/internal/models"
	"pterodactyl-service/internal/service"
	"pterodactyl-service/internal/store"
	"pterodactyl-service/internal/util"

	"go.uber.org/zap"
)

// OrderWorker reacts to billing-host order events: first payment triggers
// provisioning, overdue orders are suspended, settled invoices extend the
// due date or finalize a fee-deferred cancellation.
type OrderWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	lifecycle    *service.LifecycleService
	store        *store.Store
	logger       *zap.Logger
}

// NewOrderWorker creates a new order worker
func NewOrderWorker(
	consumer *broker.Consumer,
	lifecycle *service.LifecycleService,
	store *store.Store,
) *OrderWorker {
	w := &OrderWorker{
		consumer:  consumer,
		lifecycle: lifecycle,
		store:     store,
		logger:    util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderPaid(w.handleOrderPaid)
	eventHandler.OnOrderOverdue(w.handleOrderOverdue)
	eventHandler.OnPaymentSettled(w.handlePaymentSettled)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *OrderWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting order worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *OrderWorker) Stop() error {
	w.logger.Info("Stopping order worker")
	return w.consumer.Close()
}

// alreadyProcessed consumes the event exactly once across redeliveries
func (w *OrderWorker) alreadyProcessed(ctx context.Context, eventID string) (bool, error) {
	processed, err := w.store.IsEventProcessed(ctx, eventID)
	if err != nil {
		return false, err
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", eventID))
	}
	return processed, nil
}

func (w *OrderWorker) handleOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	if done, err := w.alreadyProcessed(ctx, event.EventID); err != nil || done {
		return err
	}

	info := service.UserInfo{
		Email:     event.Email,
		FirstName: event.FirstName,
		LastName:  event.LastName,
	}

	if _, err := w.lifecycle.Provision(ctx, event.OrderID, info); err != nil {
		var conflict *service.StateConflictError
		if !errors.As(err, &conflict) {
			return err
		}
		// A server already exists; the event is stale or a replay.
		w.logger.Info("Skipping provision, server already exists",
			zap.Int64("order_id", event.OrderID))
	}

	return w.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

func (w *OrderWorker) handleOrderOverdue(ctx context.Context, event *models.OrderOverdueEvent) error {
	if done, err := w.alreadyProcessed(ctx, event.EventID); err != nil || done {
		return err
	}

	if err := w.lifecycle.Suspend(ctx, event.OrderID); err != nil {
		return err
	}
	if err := w.store.UpdateOrderStatus(ctx, event.OrderID, models.OrderStatusSuspended); err != nil {
		return err
	}

	return w.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

// handlePaymentSettled routes a settled invoice by what it was for: a
// renewal extends the due date, a cancellation fee finalizes the deferred
// cancellation.
func (w *OrderWorker) handlePaymentSettled(ctx context.Context, event *models.PaymentSettledEvent) error {
	if done, err := w.alreadyProcessed(ctx, event.EventID); err != nil || done {
		return err
	}

	payment, err := w.store.GetPaymentByID(ctx, event.PaymentID)
	if err != nil {
		return err
	}

	if err := w.store.MarkPaymentPaid(ctx, payment.ID); err != nil {
		return err
	}

	if raw, ok := payment.Options["period"]; ok {
		days, err := strconv.Atoi(raw)
		if err != nil {
			w.logger.Error("Invalid period on renewal payment",
				zap.Int64("payment_id", payment.ID),
				zap.String("period", raw))
		} else if err := w.lifecycle.ExtendDueDate(ctx, payment.OrderID, days); err != nil {
			return err
		}
	} else if raw, ok := payment.Options["cancelled_at"]; ok {
		cancelledAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			cancelledAt = time.Now()
		}
		reason := payment.Options["cancel_reason"]
		if err := w.lifecycle.FinalizeCancellation(ctx, payment.OrderID, cancelledAt, reason); err != nil {
			var conflict *service.StateConflictError
			if !errors.As(err, &conflict) {
				return err
			}
		}
	}

	return w.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}
