package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bts_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bts_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bts_bookings_total",
			Help: "Total number of ticket booking attempts by result",
		},
		[]string{"result"},
	)

	ReferenceCollisionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bts_reference_collisions_total",
			Help: "Generated booking or payment references rejected as duplicates",
		},
	)

	RedemptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bts_redemptions_total",
			Help: "Total number of ticket redemption attempts by outcome",
		},
		[]string{"outcome"},
	)

	WalletMovementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bts_wallet_movements_total",
			Help: "Ledger entries written by kind and source",
		},
		[]string{"kind", "source"},
	)

	PaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bts_payments_total",
			Help: "Payment intents by resulting status",
		},
		[]string{"status"},
	)

	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bts_gateway_request_duration_seconds",
			Help:    "Payment gateway round trip in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "result"},
	)

	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bts_emails_sent_total",
			Help: "Total number of emails sent",
		},
		[]string{"type", "status"},
	)

	EmailQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bts_email_queue_length",
			Help: "Current length of email queue",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordBooking(result string) {
	BookingsTotal.WithLabelValues(result).Inc()
}

func RecordReferenceCollision() {
	ReferenceCollisionsTotal.Inc()
}

func RecordRedemption(outcome string) {
	RedemptionsTotal.WithLabelValues(outcome).Inc()
}

func RecordWalletMovement(kind, source string) {
	WalletMovementsTotal.WithLabelValues(kind, source).Inc()
}

func RecordPayment(status string) {
	PaymentsTotal.WithLabelValues(status).Inc()
}

func RecordGatewayRequest(operation, result string, duration float64) {
	GatewayRequestDuration.WithLabelValues(operation, result).Observe(duration)
}

func RecordEmail(emailType, status string) {
	EmailsSentTotal.WithLabelValues(emailType, status).Inc()
}

func SetEmailQueueLength(n int64) {
	EmailQueueLength.Set(float64(n))
}
