package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PaymentsTotal counts payment operations by kind (full, partial,
	// bulk_full, bulk_partial) and status (ok, rejected, conflict, error).
	PaymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "synagogue_payments_total",
		Help: "Payment operations applied to aliyot",
	}, []string{"kind", "status"})

	// PaymentAmountTotal sums the money recorded by successful payments.
	PaymentAmountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "synagogue_payment_amount_total",
		Help: "Total amount recorded by payments",
	}, []string{"kind"})

	AuthzDenialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "synagogue_authz_denials_total",
		Help: "Requests denied by the authorization gate",
	}, []string{"reason"})

	CalendarRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "synagogue_calendar_requests_total",
		Help: "Requests to the Hebrew calendar provider",
	}, []string{"endpoint", "source"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "synagogue_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
