package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ServersProvisionedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "servers_provisioned_total",
		Help: "Total number of game servers provisioned on the panel",
	})

	ProvisionFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provision_failed_total",
		Help: "Total number of failed provisioning attempts",
	}, []string{"reason"})

	ServersTerminatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "servers_terminated_total",
		Help: "Total number of servers deleted from the panel",
	})

	ServersSuspendedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "servers_suspended_total",
		Help: "Total number of server suspensions",
	})

	ServersUpgradedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "servers_upgraded_total",
		Help: "Total number of server resource upgrades",
	})

	RenewalsInvoicedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "renewals_invoiced_total",
		Help: "Total number of renewal invoices generated",
	})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	})

	StockReservationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_reservations_failed_total",
		Help: "Total number of failed location stock reservations",
	}, []string{"reason"})

	StockReserveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_reserve_latency_seconds",
		Help:    "Latency of location stock reservations",
		Buckets: prometheus.DefBuckets,
	})

	PanelRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "panel_request_duration_seconds",
		Help:    "Latency of requests to the panel API",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	SSOLoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sso_logins_total",
		Help: "Total number of panel SSO login attempts",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
