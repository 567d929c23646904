package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"pterodactyl-service/internal/models"
	"pterodactyl-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher publishes lifecycle events for the billing host
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishServerProvisioned publishes a ServerProvisioned event
func (ep *EventPublisher) PublishServerProvisioned(ctx context.Context, event *models.ServerProvisionedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishProvisionFailed publishes a ProvisionFailed event
func (ep *EventPublisher) PublishProvisionFailed(ctx context.Context, event *models.ProvisionFailedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishServerState publishes a suspend/unsuspend/terminate event
func (ep *EventPublisher) PublishServerState(ctx context.Context, event *models.ServerStateEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderCancelled publishes an OrderCancelled event
func (ep *EventPublisher) PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishRenewalInvoiced publishes a RenewalInvoiced event
func (ep *EventPublisher) PublishRenewalInvoiced(ctx context.Context, event *models.RenewalInvoicedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

func orderKey(orderID int64) string {
	return fmt.Sprintf("order-%d", orderID)
}

// EventHandler routes inbound billing-host events to registered handlers
type EventHandler struct {
	onOrderPaid      func(context.Context, *models.OrderPaidEvent) error
	onOrderOverdue   func(context.Context, *models.OrderOverdueEvent) error
	onPaymentSettled func(context.Context, *models.PaymentSettledEvent) error
	logger           *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnOrderPaid registers a handler for OrderPaid events
func (eh *EventHandler) OnOrderPaid(handler func(context.Context, *models.OrderPaidEvent) error) {
	eh.onOrderPaid = handler
}

// OnOrderOverdue registers a handler for OrderOverdue events
func (eh *EventHandler) OnOrderOverdue(handler func(context.Context, *models.OrderOverdueEvent) error) {
	eh.onOrderOverdue = handler
}

// OnPaymentSettled registers a handler for PaymentSettled events
func (eh *EventHandler) OnPaymentSettled(handler func(context.Context, *models.PaymentSettledEvent) error) {
	eh.onPaymentSettled = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderPaid:
		if eh.onOrderPaid != nil {
			var event models.OrderPaidEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderPaid event: %w", err)
			}
			return eh.onOrderPaid(ctx, &event)
		}

	case models.EventTypeOrderOverdue:
		if eh.onOrderOverdue != nil {
			var event models.OrderOverdueEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderOverdue event: %w", err)
			}
			return eh.onOrderOverdue(ctx, &event)
		}

	case models.EventTypePaymentSettled:
		if eh.onPaymentSettled != nil {
			var event models.PaymentSettledEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentSettled event: %w", err)
			}
			return eh.onPaymentSettled(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
