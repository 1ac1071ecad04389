// Package metrics registers the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersCreated counts successfully placed orders.
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "orders_created_total",
		Help:      "Number of orders successfully placed.",
	})

	// PaymentsInitiated counts payment intents created per provider.
	PaymentsInitiated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "payments_initiated_total",
		Help:      "Number of payment intents created.",
	}, []string{"provider"})

	// PaymentsVerified counts verification outcomes per provider.
	PaymentsVerified = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "payments_verified_total",
		Help:      "Number of payment verification calls by outcome.",
	}, []string{"provider", "status"})

	// EmailsSent counts transactional emails handed to the mail API.
	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "emails_sent_total",
		Help:      "Number of transactional emails sent.",
	}, []string{"kind"})
)
