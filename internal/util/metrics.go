package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	}, []string{"checkout_type", "phase"})

	OrdersPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_paid_total",
		Help: "Total number of orders whose payment was verified",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order operations",
	}, []string{"reason"})

	StockDecrementFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_decrement_failed_total",
		Help: "Total number of stock decrements refused for insufficient quantity",
	})

	PaymentNotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_notifications_total",
		Help: "Gateway notifications by outcome",
	}, []string{"outcome"})

	PaymentVerifyLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_verify_latency_seconds",
		Help:    "Latency of payment verification",
		Buckets: prometheus.DefBuckets,
	})

	AuthorizationDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authorization_denied_total",
		Help: "Total number of requests denied by the access control resolver",
	}, []string{"permission"})

	NotificationMailFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_mail_failed_total",
		Help: "Total number of best-effort mails that could not be delivered",
	}, []string{"kind"})

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
