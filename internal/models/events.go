package models

import "time"

// Event types consumed from the billing host
const (
	EventTypeOrderPaid      = "ORDER_PAID"
	EventTypeOrderOverdue   = "ORDER_OVERDUE"
	EventTypePaymentSettled = "PAYMENT_SETTLED"
)

// Event types published by this service
const (
	EventTypeServerProvisioned   = "SERVER_PROVISIONED"
	EventTypeProvisionFailed     = "PROVISION_FAILED"
	EventTypeServerSuspended     = "SERVER_SUSPENDED"
	EventTypeServerUnsuspended   = "SERVER_UNSUSPENDED"
	EventTypeServerTerminated    = "SERVER_TERMINATED"
	EventTypeOrderCancelled      = "ORDER_CANCELLED"
	EventTypeRenewalInvoiced     = "RENEWAL_INVOICED"
	EventTypeCancellationCharged = "CANCELLATION_CHARGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPaidEvent arrives when the billing host settles the first invoice
// for an order. It triggers provisioning.
type OrderPaidEvent struct {
	BaseEvent
	OrderID   int64  `json:"order_id"`
	UserID    int64  `json:"user_id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// OrderOverdueEvent arrives when an order passes its due date unpaid
type OrderOverdueEvent struct {
	BaseEvent
	OrderID int64 `json:"order_id"`
}

// PaymentSettledEvent arrives when a renewal or cancellation-fee invoice
// generated by this service is paid.
type PaymentSettledEvent struct {
	BaseEvent
	OrderID   int64 `json:"order_id"`
	PaymentID int64 `json:"payment_id"`
}

// ServerProvisionedEvent published after a remote server exists for an order
type ServerProvisionedEvent struct {
	BaseEvent
	OrderID    int64 `json:"order_id"`
	UserID     int64 `json:"user_id"`
	ServerID   int64 `json:"server_id"`
	LocationID int64 `json:"location_id"`
}

// ProvisionFailedEvent published when provisioning could not complete
type ProvisionFailedEvent struct {
	BaseEvent
	OrderID int64  `json:"order_id"`
	Reason  string `json:"reason"`
}

// ServerStateEvent published on suspend/unsuspend/terminate
type ServerStateEvent struct {
	BaseEvent
	OrderID  int64 `json:"order_id"`
	ServerID int64 `json:"server_id"`
}

// OrderCancelledEvent published when an order transitions to cancelled
type OrderCancelledEvent struct {
	BaseEvent
	OrderID int64  `json:"order_id"`
	Reason  string `json:"reason"`
}

// RenewalInvoicedEvent published when a renewal payment is generated
type RenewalInvoicedEvent struct {
	BaseEvent
	OrderID    int64 `json:"order_id"`
	PaymentID  int64 `json:"payment_id"`
	Amount     int64 `json:"amount"`
	PeriodDays int   `json:"period_days"`
}
