package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pay_webhooks_total",
			Help: "Webhook deliveries by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	SettlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pay_settlements_total",
			Help: "Settlement attempts by category and outcome",
		},
		[]string{"category", "outcome"},
	)

	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pay_gateway_request_seconds",
			Help:    "Duration of outbound gateway calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	EventsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pay_booking_events_published_total",
			Help: "Booking events published to the broker",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pay_rate_limit_exceeded_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)
